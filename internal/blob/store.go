package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists portrait binaries under deterministic keys and resolves
// the public URL clients load them from. Put is overwrite-safe: a retry
// after a partial failure reuses the same key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	PublicURL(key string) string
}

// LocalStore writes under a directory served as static files by the API
// process.
type LocalStore struct {
	Dir     string
	BaseURL string
}

func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{Dir: dir, BaseURL: baseURL}
}

func (s *LocalStore) Put(_ context.Context, key string, data []byte) error {
	path := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("blob: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("blob: write %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) PublicURL(key string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(key, "/")
}
