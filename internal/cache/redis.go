package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"auction-house/internal/auctionerrors"
)

// RedisCache implements Cache on a shared redis instance so every API process
// reads and invalidates the same keys.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: %w - connect to redis at %s: %v", auctionerrors.ErrInfrastructure, addr, err)
	}

	return &RedisCache{client: rdb}, nil
}

// NewRedisCacheFromClient wraps an existing client, sharing the connection
// with the realtime bridge.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: %w - get %s: %v", auctionerrors.ErrInfrastructure, key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		// a corrupt entry behaves like a miss; the next Set repairs it
		return false, nil
	}
	return true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache: %w - set %s: %v", auctionerrors.ErrInfrastructure, key, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: %w - delete %d keys: %v", auctionerrors.ErrInfrastructure, len(keys), err)
	}
	return nil
}

// Client exposes the underlying connection for components that share it,
// such as the realtime bridge.
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

// Close closes the underlying redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
