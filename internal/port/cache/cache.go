package cache

import (
	"context"
	"time"
)

// Cache stores byte payloads under string keys until their TTL runs out.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
