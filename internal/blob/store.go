// Package blob stores evidence files in an S3-compatible bucket.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config addresses the bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base under which objects are served. It defaults to
	// the endpoint followed by the bucket.
	PublicURL string
}

type objectClient interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
}

// Store implements domain.BlobStore on MinIO or any S3 API.
type Store struct {
	client  objectClient
	bucket  string
	baseURL string
}

// New connects to the bucket, creating it when missing.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return newStore(client, cfg), nil
}

func newStore(client objectClient, cfg Config) *Store {
	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &Store{client: client, bucket: cfg.Bucket, baseURL: base}
}

// Upload stores body under path and returns its public URL.
func (s *Store) Upload(ctx context.Context, path, contentType string, body io.Reader, size int64) (string, error) {
	key := strings.TrimLeft(path, "/")
	if key == "" {
		return "", fmt.Errorf("blob: empty object path")
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("blob: put %s: %w", key, err)
	}
	return s.urlFor(key), nil
}

// Delete removes the object addressed by a URL returned from Upload.
func (s *Store) Delete(ctx context.Context, objectURL string) error {
	key, err := s.keyFor(objectURL)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("blob: remove %s: %w", key, err)
	}
	return nil
}

func (s *Store) urlFor(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

func (s *Store) keyFor(objectURL string) (string, error) {
	rest, ok := strings.CutPrefix(objectURL, s.baseURL+"/")
	if !ok || rest == "" {
		return "", fmt.Errorf("blob: %q is not served by bucket %s", objectURL, s.bucket)
	}
	key, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("blob: decode %q: %w", objectURL, err)
	}
	return key, nil
}
