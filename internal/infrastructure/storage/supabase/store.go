package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	storage "github.com/supabase-community/storage-go"

	"github.com/kirillkom/fitscore/internal/core/domain"
)

// Store writes report uploads to a Supabase storage bucket. The client has
// no context support, so cancellation is only checked before each call.
type Store struct {
	// uploadMu serializes uploads: the client keeps per-upload options in
	// shared request headers.
	uploadMu sync.Mutex
	client   *storage.Client
	bucket   string
	baseURL  string
}

func New(supabaseURL, serviceRoleKey, bucket string) *Store {
	baseURL := strings.TrimRight(supabaseURL, "/")
	return &Store{
		client:  storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil),
		bucket:  bucket,
		baseURL: baseURL,
	}
}

func (s *Store) Put(ctx context.Context, key string, data []byte, mimeType string) (domain.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoredObject{}, err
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	upsert := false
	s.uploadMu.Lock()
	_, err := s.client.UploadFile(s.bucket, key, bytes.NewReader(data), storage.FileOptions{
		ContentType: &mimeType,
		Upsert:      &upsert,
	})
	s.uploadMu.Unlock()
	if err != nil {
		return domain.StoredObject{}, fmt.Errorf("upload %s to bucket %s: %w", key, s.bucket, err)
	}
	return domain.StoredObject{Key: key, URI: s.PublicURL(key)}, nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.client.DownloadFile(s.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("download %s from bucket %s: %w", key, s.bucket, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key)
}
