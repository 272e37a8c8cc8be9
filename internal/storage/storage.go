// Package storage provides the object storage used for project attachments and
// stored backup archives.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/teamboard/engine/pkg/config"
)

// Logical buckets used by the application.
const (
	BucketSubmissions = "task-submissions"
	BucketNotes       = "note-attachments"
	BucketResources   = "project-resources"
)

var (
	// ErrObjectNotFound is returned when the requested object does not exist.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrInvalidPath is returned for empty or escaping object paths.
	ErrInvalidPath = errors.New("storage: invalid object path")
)

// ObjectStore reads and writes whole objects addressed by (bucket, path).
type ObjectStore interface {
	Get(ctx context.Context, bucket, objectPath string) ([]byte, error)
	Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error
}

// New builds the ObjectStore selected by STORAGE_DRIVER.
func New(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case "fs":
		return NewFSStore(cfg.StorageRoot, cfg.BucketPrefix)
	case "gcs":
		return NewGCSStore(ctx, cfg.GCSCredentialsFile, cfg.BucketPrefix)
	case "s3":
		return NewS3Store(ctx, cfg.S3Region, cfg.S3Endpoint, cfg.BucketPrefix)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.StorageDriver)
	}
}

// ContentType guesses a content type from the object name.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func bucketName(prefix, bucket string) string {
	return prefix + bucket
}

// cleanPath normalises an object path and rejects anything that would escape the bucket.
func cleanPath(p string) (string, error) {
	p = strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return cleaned, nil
}
