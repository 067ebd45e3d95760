// Package artifact provides durable object storage for submitted images on
// an S3-compatible backend (AWS S3 or MinIO). Keys map to object keys
// directly; uploads return a publicly resolvable URL.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/cattle-scans/backend/internal/errors"
	"github.com/cattle-scans/backend/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("artifact")
}

// Store is the contract the pipeline and moderation engine upload through.
type Store interface {
	// Upload stores data under key and returns the public URL of the object.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// PublicURL returns the public URL for a key. Pure, never fails for an
	// uploaded object.
	PublicURL(key string) string
	// Delete removes an object. Administrative side action.
	Delete(ctx context.Context, key string) error
}

// Config holds construction parameters for the S3 store.
type Config struct {
	Bucket        string
	Region        string
	Endpoint      string // optional; if set enables custom endpoint (e.g. MinIO)
	PathStyle     bool
	PublicBaseURL string // optional explicit base for public object links
	KeyPrefix     string
}

// S3Store implements Store using an S3-compatible backend.
type S3Store struct {
	client  *s3.Client
	config  Config
	baseURL *url.URL
}

// New creates an S3 artifact store from Config.
func New(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.Newf("artifact store bucket is required").
			Category(errors.CategoryConfiguration).
			Component("artifact").
			Build()
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
		cfg.Region = region
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Newf("loading AWS config: %w", err).
			Category(errors.CategoryConfiguration).
			Component("artifact").
			Build()
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	var base *url.URL
	if cfg.PublicBaseURL != "" {
		if u, err := url.Parse(cfg.PublicBaseURL); err == nil {
			base = u
		}
	}

	logger.Info("artifact store initialized",
		"bucket", cfg.Bucket,
		"region", region,
		"custom_endpoint", cfg.Endpoint != "",
		"path_style", cfg.PathStyle)

	return &S3Store{client: client, config: cfg, baseURL: base}, nil
}

// Upload stores data under key and returns the public URL of the object.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Newf("uploading object %s: %w", key, err).
			Category(errors.CategoryImageStore).
			Component("artifact").
			Context("bucket", s.config.Bucket).
			Timing("upload", time.Since(start)).
			Build()
	}

	logger.Debug("object uploaded",
		"key", key,
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())

	return s.PublicURL(key), nil
}

// PublicURL returns the public URL for a key.
func (s *S3Store) PublicURL(key string) string {
	if s.baseURL != nil {
		return strings.TrimSuffix(s.baseURL.String(), "/") + "/" + key
	}
	if s.config.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.config.Endpoint, "/"), s.config.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.Bucket, s.config.Region, key)
}

// Delete removes an object from the bucket.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Newf("deleting object %s: %w", key, err).
			Category(errors.CategoryImageStore).
			Component("artifact").
			Context("bucket", s.config.Bucket).
			Build()
	}
	return nil
}

// ScanKey derives a collision-free object key for a submitted image from the
// submission time and an opaque suffix.
func ScanKey(prefix string, submittedAt time.Time) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	if prefix == "" {
		prefix = "scans"
	}
	return fmt.Sprintf("%s/%d-%s.jpg", strings.Trim(prefix, "/"), submittedAt.Unix(), suffix)
}
