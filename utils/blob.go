package utils

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BlobStore stores uploaded bytes and returns the path clients use to fetch them
type BlobStore interface {
	Save(ctx context.Context, data []byte, filename string) (string, error)
}

// GenerateUniqueFileName prefixes a cleaned file name with a millisecond timestamp
func GenerateUniqueFileName(originalName string, now time.Time) string {
	clean := strings.ToLower(strings.ReplaceAll(filepath.Base(originalName), " ", "_"))
	return fmt.Sprintf("%d-%s", now.UnixMilli(), clean)
}

// LocalBlobStore writes files into a directory served under URLPrefix
type LocalBlobStore struct {
	Dir       string
	URLPrefix string
}

// NewLocalBlobStore ensures the uploads directory exists
func NewLocalBlobStore(dir, urlPrefix string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &LocalBlobStore{Dir: dir, URLPrefix: urlPrefix}, nil
}

func (s *LocalBlobStore) Save(_ context.Context, data []byte, filename string) (string, error) {
	name := filepath.Base(filename)
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return path.Join(s.URLPrefix, name), nil
}

// S3BlobStore uploads files to an S3 bucket
type S3BlobStore struct {
	client *s3.Client
	bucket string
	region string
}

// NewS3BlobStore loads the default AWS credential chain for region
func NewS3BlobStore(ctx context.Context, bucket, region string) (*S3BlobStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &S3BlobStore{client: s3.NewFromConfig(cfg), bucket: bucket, region: region}, nil
}

func (s *S3BlobStore) Save(ctx context.Context, data []byte, filename string) (string, error) {
	key := "uploads/" + filepath.Base(filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(http.DetectContentType(data)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}
