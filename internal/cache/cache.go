package cache

import (
	"context"
	"time"
)

// Cache is a small JSON blob cache (video metadata lookups).
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
}
