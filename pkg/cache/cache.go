package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Store is the key/value and capped-list surface the status store needs.
type Store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Append(ctx context.Context, key string, value interface{}, maxLen int64, expiration time.Duration) error
	Tail(ctx context.Context, key string, n int64) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
}
