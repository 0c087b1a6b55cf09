package cache

import (
	"context"
	"time"
)

// TTLs for the hot read paths. Anything a mutation cannot enumerate simply
// ages out.
const (
	DefaultTTL  = 5 * time.Minute
	CategoryTTL = 30 * time.Minute
)

// Cache is a read-through TTL key-value cache. Get unmarshals into dest and
// reports whether the key was present; a miss is not an error.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// GetOrLoad returns the cached value for key, or loads it, caches it and
// returns it. Cache failures degrade to a plain load; only the loader's error
// is surfaced.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if ok, err := c.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	loaded, err := load(ctx)
	if err != nil {
		return loaded, err
	}

	// best-effort fill; a failed Set only costs the next reader a load
	_ = c.Set(ctx, key, loaded, ttl)
	return loaded, nil
}
