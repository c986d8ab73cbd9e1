// Package storage provides access to goldstandard files kept on
// local disk or in an S3 bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openchallenges/harness/config"
)

// Store provides read access to goldstandard files.
type Store interface {
	// Open opens object with given key for reading.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// NewStore creates store from config.
func NewStore(cfg config.Storage) (Store, error) {
	switch options := cfg.Options.(type) {
	case config.LocalStorageOptions:
		return &localStore{dir: options.Dir}, nil
	case config.S3StorageOptions:
		return newS3Store(options)
	default:
		return nil, fmt.Errorf("unsupported driver: %q", cfg.Options.Driver())
	}
}

// Fetch copies object with given key into dst path.
//
// Used to materialise goldstandards into local files before scoring
// callables run.
func Fetch(ctx context.Context, store Store, key, dst string) error {
	src, err := store.Open(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	file, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()
	if _, err := io.Copy(file, src); err != nil {
		return err
	}
	return file.Sync()
}

type localStore struct {
	dir string
}

func (s *localStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.dir, filepath.FromSlash(key)))
}
