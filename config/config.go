// Package config loads service configuration.
//
// Sources, later ones winning:
//  1. built-in defaults
//  2. a YAML file named by CONFIG_FILE (optional)
//  3. environment variables, with a .env file loaded first when present
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go-storefront/logging"
)

// DefaultJWTSecret is used when JWT_SECRET is unset; fine for local runs only
const DefaultJWTSecret = "fallback-secret"

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MongoConfig struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	DataDir          string        `yaml:"data_dir"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"-"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"-"`
	AdminName     string `yaml:"admin_name"`
}

type UploadConfig struct {
	Dir       string `yaml:"dir"`
	URLPrefix string `yaml:"url_prefix"`
	S3Bucket  string `yaml:"s3_bucket"`
	AWSRegion string `yaml:"aws_region"`
}

type MailConfig struct {
	Provider      string `yaml:"provider"` // postmark, sendgrid or empty to only log
	PostmarkToken string `yaml:"-"`
	SendGridKey   string `yaml:"-"`
	Sender        string `yaml:"sender"`
	SenderName    string `yaml:"sender_name"`
}

type PaymentConfig struct {
	StripeSecretKey string `yaml:"-"`
	Currency        string `yaml:"currency"`
}

// Config is the full service configuration
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Mongo   MongoConfig    `yaml:"mongo"`
	Storage StorageConfig  `yaml:"storage"`
	Auth    AuthConfig     `yaml:"auth"`
	Upload  UploadConfig   `yaml:"upload"`
	Mail    MailConfig     `yaml:"mail"`
	Payment PaymentConfig  `yaml:"payment"`
	Log     logging.Config `yaml:"log"`
}

// Default returns the built-in defaults
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: "8000", ShutdownTimeout: 10 * time.Second},
		Mongo:   MongoConfig{Database: "ecommerce", Timeout: 5 * time.Second},
		Storage: StorageConfig{DataDir: "data", BreakerThreshold: 3, BreakerCooldown: 30 * time.Second},
		Auth:    AuthConfig{AdminName: "Admin User"},
		Upload:  UploadConfig{Dir: "public/uploads", URLPrefix: "/uploads"},
		Mail:    MailConfig{SenderName: "Storefront"},
		Payment: PaymentConfig{Currency: "inr"},
		Log:     logging.Config{Level: "info", Format: "text"},
	}
}

// Load reads .env, the optional YAML file and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Proceeding with environment variables.")
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = DefaultJWTSecret
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Mongo.URI, "MONGODB_URI")
	setString(&c.Mongo.Database, "MONGODB_DATABASE")
	setString(&c.Storage.DataDir, "DATA_DIR")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.AdminEmail, "ADMIN_EMAIL")
	setString(&c.Auth.AdminPassword, "ADMIN_PASSWORD")
	setString(&c.Auth.AdminName, "ADMIN_NAME")
	setString(&c.Upload.Dir, "UPLOAD_DIR")
	setString(&c.Upload.URLPrefix, "UPLOAD_URL_PREFIX")
	setString(&c.Upload.S3Bucket, "S3_BUCKET")
	setString(&c.Upload.AWSRegion, "AWS_REGION")
	setString(&c.Mail.Provider, "MAIL_PROVIDER")
	setString(&c.Mail.PostmarkToken, "POSTMARK_API_TOKEN")
	setString(&c.Mail.SendGridKey, "SENDGRID_API_KEY")
	setString(&c.Mail.Sender, "EMAIL_SENDER")
	setString(&c.Payment.StripeSecretKey, "STRIPE_SECRET_KEY")
	setString(&c.Payment.Currency, "PAYMENT_CURRENCY")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Log.Output, "LOG_OUTPUT")

	if err := setDuration(&c.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Mongo.Timeout, "MONGODB_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Storage.BreakerCooldown, "BREAKER_COOLDOWN"); err != nil {
		return err
	}
	return setInt(&c.Storage.BreakerThreshold, "BREAKER_THRESHOLD")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
