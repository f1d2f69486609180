// Package cache is the optional Redis layer: a JSON read-through cache for
// store lookups and a lock that keeps two archive runs off one cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch is both the SCAN count hint and the UNLINK batch size.
const scanBatch = 200

// Redis is a connection to the Redis serving one archive cache.
type Redis struct {
	client *redis.Client
}

// New builds a client for rawURL ("redis://host:6379/0"). Nothing is dialled
// until first use; call Ping to fail fast.
func New(rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(c *redis.Client) *Redis {
	return &Redis{client: c}
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Lookup decodes the JSON value at key. ok is false on a miss, which is
// not an error.
func Lookup[T any](ctx context.Context, r *Redis, key string) (v T, ok bool, err error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return v, false, nil
	case err != nil:
		return v, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return v, true, nil
}

// Save stores v as JSON under key until ttl passes.
func Save(ctx context.Context, r *Redis, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Forget drops keys. Keys that do not exist are ignored.
func Forget(ctx context.Context, r *Redis, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache unlink: %w", err)
	}
	return nil
}

// ForgetMatching drops every key matching the glob pattern, walking the
// keyspace with SCAN.
func ForgetMatching(ctx context.Context, r *Redis, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := Forget(ctx, r, batch...); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %s: %w", pattern, err)
	}
	return Forget(ctx, r, batch...)
}
