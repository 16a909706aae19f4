package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kirillkom/fitscore/internal/core/domain"
)

type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// PublicBaseURL overrides the endpoint in returned URIs, e.g. a CDN.
	PublicBaseURL string
}

// Store writes report uploads to an S3-compatible bucket.
type Store struct {
	client     *minio.Client
	bucketName string
	publicBase string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	publicBase := strings.TrimRight(cfg.PublicBaseURL, "/")
	if publicBase == "" {
		publicBase = cli.EndpointURL().String()
	}
	return &Store{client: cli, bucketName: cfg.Bucket, publicBase: publicBase}, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte, mimeType string) (domain.StoredObject, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return domain.StoredObject{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return domain.StoredObject{Key: key, URI: objectURL(s.publicBase, s.bucketName, key)}, nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return obj, nil
}

func objectURL(base, bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), url.PathEscape(bucket), url.PathEscape(key))
}
