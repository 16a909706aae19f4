package localfs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/kirillkom/fitscore/internal/core/domain"
)

// Storage keeps uploads on the local filesystem. Intended for development
// and single-node deployments.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/reports"
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: abs}, nil
}

// Put writes the object once; an existing key is an error since stored
// reports are never replaced.
func (s *Storage) Put(ctx context.Context, key string, data []byte, _ string) (domain.StoredObject, error) {
	path, err := s.path(key)
	if err != nil {
		return domain.StoredObject{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.StoredObject{}, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return domain.StoredObject{}, fmt.Errorf("create file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return domain.StoredObject{}, fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return domain.StoredObject{}, fmt.Errorf("close file: %w", err)
	}

	uri := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return domain.StoredObject{Key: key, URI: uri.String()}, nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (s *Storage) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || filepath.Base(key) != key {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.basePath, key), nil
}
