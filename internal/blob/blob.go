// Package blob stores and serves generated image bytes against an
// S3-compatible object store (Tigris, R2, MinIO, ...).
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/guitaripod/pixie/internal/config"
)

// Store handles object storage operations for generated images.
type Store struct {
	client        *s3.Client
	bucket        string
	enabled       bool
	publicURLBase string
	logger        *slog.Logger
}

// New creates a new blob store. If storage isn't configured, the store
// stays in a disabled state: Put and Get return an error, while Delete and
// DeleteExpired do nothing and report success, so callers can still run (e.g. against a dev database) without object storage wired up.
func New(cfg *appconfig.Config, logger *slog.Logger) (*Store, error) {
	if !cfg.StorageEnabled {
		logger.Warn("blob storage disabled - no bucket configured")
		return &Store{enabled: false, logger: logger}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.StorageRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true
	})

	logger.Info("blob storage initialized", "bucket", cfg.StorageBucket, "endpoint", cfg.StorageEndpoint)

	return &Store{
		client:        client,
		bucket:        cfg.StorageBucket,
		enabled:       true,
		publicURLBase: strings.TrimRight(cfg.BlobPublicURLBase, "/"),
		logger:        logger,
	}, nil
}

// IsEnabled returns whether blob storage is configured and available.
func (s *Store) IsEnabled() bool {
	return s.enabled
}

// Key builds the canonical object key for one stored image.
func Key(userID, imageID string) string {
	return fmt.Sprintf("%s/%s.png", userID, imageID)
}

// PublicURL returns the externally-reachable URL for a key, served through
// the gateway's own /r2/{user_id}/{image_id} route.
func (s *Store) PublicURL(key string) string {
	return s.publicURLBase + "/" + key
}

// Put uploads PNG image bytes under key.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if !s.enabled {
		return fmt.Errorf("blob storage is not enabled")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String("image/png"),
		CacheControl: aws.String("public, max-age=86400"),
	})
	if err != nil {
		return fmt.Errorf("failed to store image %s: %w", key, err)
	}

	s.logger.Info("stored image", "key", key, "size_bytes", len(data))
	return nil
}

// Get fetches image bytes for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.enabled {
		return nil, fmt.Errorf("blob storage is not enabled")
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get image %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	return io.ReadAll(out.Body)
}

// Delete removes the object at key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if !s.enabled {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image %s: %w", key, err)
	}
	s.logger.Info("deleted image", "key", key)
	return nil
}

// DeleteExpired scans the bucket for objects older than maxAge and removes
// them. Expiry here is a retention hint, not an authoritative TTL: rows in
// stored_images are never deleted by this sweep, only the backing blobs.
func (s *Store) DeleteExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	if !s.enabled {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(s.bucket),
					Key:    obj.Key,
				}); err != nil {
					s.logger.Warn("failed to delete expired image", "key", *obj.Key, "error", err)
					continue
				}
				deleted++
			}
		}
	}

	s.logger.Info("expired image sweep complete", "deleted_count", deleted, "max_age", maxAge.String())
	return deleted, nil
}
