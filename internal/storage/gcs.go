package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	gcs "cloud.google.com/go/storage"
)

// GCSSink uploads archives to a Google Cloud Storage bucket. Credentials
// come from Application Default Credentials.
type GCSSink struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSSink creates a GCS sink for cfg.Bucket.
func NewGCSSink(ctx context.Context, cfg Config) (*GCSSink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs sink requires a bucket")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSSink{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *GCSSink) Name() string { return "gcs" }

func (s *GCSSink) Upload(ctx context.Context, localPath, destName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	key := destName
	if s.prefix != "" {
		key = path.Join(s.prefix, destName)
	}

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()

		return fmt.Errorf("failed to upload to gs://%s/%s: %w", s.bucket, key, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize gs://%s/%s: %w", s.bucket, key, err)
	}

	return nil
}
