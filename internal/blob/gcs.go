package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore writes portraits to a Google Cloud Storage bucket. The bucket is
// expected to be publicly readable (or fronted by a CDN via BaseURL).
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewGCSStore connects a storage client. baseURL overrides the default
// storage.googleapis.com public URL when set (e.g. a CDN domain).
func NewGCSStore(ctx context.Context, bucket, baseURL string, opts ...option.ClientOption) (*GCSStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("blob: gcs bucket name is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(wctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("blob: write %s to gcs: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("blob: close gcs writer: %w", err)
	}
	return nil
}

func (s *GCSStore) PublicURL(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.baseURL != "" {
		return s.baseURL + "/" + key
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func contentTypeForKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(k, ".png"):
		return "image/png"
	case strings.HasSuffix(k, ".jpg"), strings.HasSuffix(k, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(k, ".webp"):
		return "image/webp"
	default:
		return ""
	}
}
