package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// AllowGenerate applies a fixed-window counter per user to NPC generation
// (each request costs up to three completion calls plus an image call).
// Returns true while the caller is within limit for the current window.
func (s *Store) AllowGenerate(ctx context.Context, userID uint64, limit int, window time.Duration) (bool, error) {
	bucket := time.Now().Unix() / int64(window.Seconds())
	key := fmt.Sprintf("ratelimit:generate:%d:%d", userID, bucket)

	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		// First hit in the window owns the expiry.
		if err := s.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}
