package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/mongo"

	"go-storefront/config"
	"go-storefront/controllers"
	"go-storefront/logging"
	"go-storefront/metrics"
	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/routes"
	"go-storefront/storage"
	"go-storefront/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.Log.Component = "storefront"
	logger := logging.New(cfg.Log)
	slog.SetDefault(logger)
	m := metrics.New("storefront")

	// Set the JWT secret key
	utils.JwtKey = []byte(cfg.Auth.JWTSecret)
	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		logger.Warn("JWT_SECRET not set, using the built-in development secret")
	}

	// Connect to MongoDB; the file store serves alone when it is unavailable
	var db *mongo.Database
	var ping func(context.Context) error
	if cfg.Mongo.URI != "" {
		client, err := utils.ConnectDB(cfg.Mongo.URI, cfg.Mongo.Timeout)
		if err != nil {
			logger.Warn("MongoDB unavailable, using file store until it recovers", "error", err)
		}
		if client != nil {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Disconnect(ctx); err != nil {
					logger.Error("disconnect mongodb", "error", err)
				}
			}()
			db = client.Database(cfg.Mongo.Database)
			ping = func(ctx context.Context) error {
				return utils.PingDB(ctx, client, cfg.Mongo.Timeout)
			}
			if err == nil {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
				if err := storage.EnsureIndexes(ctx, db); err != nil {
					logger.Warn("failed to create indexes", "error", err)
				}
				cancel()
			}
		}
	} else {
		logger.Info("MONGODB_URI not set, using file store only", "dir", cfg.Storage.DataDir)
	}

	users, err := openCollection[models.User](db, storage.ColUsers, "user", cfg, logger, m, "email")
	if err != nil {
		log.Fatalf("Failed to open users store: %v", err)
	}
	products, err := openCollection[models.Product](db, storage.ColProducts, "product", cfg, logger, m)
	if err != nil {
		log.Fatalf("Failed to open products store: %v", err)
	}
	orders, err := openCollection[models.Order](db, storage.ColOrders, "order", cfg, logger, m)
	if err != nil {
		log.Fatalf("Failed to open orders store: %v", err)
	}
	stores := storage.Stores{Users: users, Products: products, Orders: orders}

	// Initialize EmailService
	emailService, err := utils.NewEmailService(cfg.Mail, logger.With("component", "mail"))
	if err != nil {
		log.Fatalf("Failed to configure email: %v", err)
	}

	blobs, err := newBlobStore(cfg.Upload)
	if err != nil {
		log.Fatalf("Failed to configure uploads: %v", err)
	}

	var payments utils.PaymentGateway
	if cfg.Payment.StripeSecretKey != "" {
		payments = utils.NewStripeGateway(cfg.Payment.StripeSecretKey, cfg.Payment.Currency)
	}

	// Initialize controllers
	userController := controllers.NewUserController(stores.Users, emailService, cfg.Auth, logger)
	productController := controllers.NewProductController(stores.Products, logger)
	orderController := controllers.NewOrderController(stores, emailService, payments, m, logger)
	uploadController := controllers.NewUploadController(blobs, logger)
	healthController := controllers.NewHealthController(map[string]controllers.PrimaryReporter{
		storage.ColUsers:    users,
		storage.ColProducts: products,
		storage.ColOrders:   orders,
	})
	healthController.Ping = ping

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Mongo.Timeout)
	if _, err := userController.EnsureAdmin(ctx); err != nil {
		logger.Error("admin bootstrap failed", "error", err)
	}
	cancel()

	// Set up the router
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(logger, m))
	routes.RegisterRoutes(router, routes.Controllers{
		Users:    userController,
		Products: productController,
		Orders:   orderController,
		Uploads:  uploadController,
		Health:   healthController,
	}, routes.Options{
		Metrics:   m.Handler(),
		UploadDir: cfg.Upload.Dir,
		UploadURL: cfg.Upload.URLPrefix,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           middleware.CORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server is running", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// openCollection opens <DataDir>/<name>.json and, when db is set, puts the Mongo
// collection of the same name in front of it.
func openCollection[T any, PT storage.RecordPtr[T]](db *mongo.Database, name, prefix string, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, unique ...string) (*storage.Fallback[T], error) {
	file, err := storage.NewFileCollection[T, PT](filepath.Join(cfg.Storage.DataDir, name+".json"), prefix)
	if err != nil {
		return nil, err
	}
	file.Unique(unique...)

	var primary storage.Collection[T]
	if db != nil {
		primary = storage.NewMongoCollection[T, PT](db.Collection(name), cfg.Mongo.Timeout)
	}
	breaker := storage.NewBreaker(cfg.Storage.BreakerThreshold, cfg.Storage.BreakerCooldown)
	return storage.NewFallback[T](name, primary, file, breaker, logger.With("component", "storage"), m), nil
}

func newBlobStore(cfg config.UploadConfig) (utils.BlobStore, error) {
	if cfg.S3Bucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return utils.NewS3BlobStore(ctx, cfg.S3Bucket, cfg.AWSRegion)
	}
	return utils.NewLocalBlobStore(cfg.Dir, cfg.URLPrefix)
}
