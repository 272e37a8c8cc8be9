package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FSStore keeps objects on the local filesystem as <root>/<prefix+bucket>/<path>.
type FSStore struct {
	root   string
	prefix string
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root, prefix string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", root, err)
	}
	return &FSStore{root: root, prefix: prefix}, nil
}

var _ ObjectStore = (*FSStore)(nil)

func (s *FSStore) resolve(bucket, objectPath string) (string, error) {
	p, err := cleanPath(objectPath)
	if err != nil {
		return "", err
	}
	if bucket == "" {
		return "", fmt.Errorf("%w: empty bucket", ErrInvalidPath)
	}
	return filepath.Join(s.root, bucketName(s.prefix, bucket), filepath.FromSlash(p)), nil
}

func (s *FSStore) Get(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	full, err := s.resolve(bucket, objectPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, objectPath)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s/%s: %w", bucket, objectPath, err)
	}
	return data, nil
}

func (s *FSStore) Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error {
	full, err := s.resolve(bucket, objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for %s/%s: %w", bucket, objectPath, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("storage: write %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}
