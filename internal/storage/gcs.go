package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore stores objects in Google Cloud Storage.
type GCSStore struct {
	client *gcs.Client
	prefix string
}

// NewGCSStore uses the service account key at credentialsFile, or application
// default credentials when it is empty.
func NewGCSStore(ctx context.Context, credentialsFile, prefix string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSStore{client: client, prefix: prefix}, nil
}

var _ ObjectStore = (*GCSStore)(nil)

func (s *GCSStore) Get(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	p, err := cleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(bucketName(s.prefix, bucket)).Object(p).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucketName(s.prefix, bucket), p)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open gs://%s/%s: %w", bucketName(s.prefix, bucket), p, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("storage: read gs://%s/%s: %w", bucketName(s.prefix, bucket), p, err)
	}
	return data, nil
}

func (s *GCSStore) Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error {
	p, err := cleanPath(objectPath)
	if err != nil {
		return err
	}
	w := s.client.Bucket(bucketName(s.prefix, bucket)).Object(p).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("storage: write gs://%s/%s: %w", bucketName(s.prefix, bucket), p, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", p, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
