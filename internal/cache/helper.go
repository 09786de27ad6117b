package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"breaksphere/internal/middleware"
	"breaksphere/internal/observability"

	"github.com/redis/go-redis/v9"
)

// GetJSON decodes the value at key into dest. A missing key, or no Redis at
// all, reports false without error.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v as JSON under key for ttl. No-op without Redis.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, raw, ttl).Err()
}

// Aside serves dest from Redis when possible. On a miss fetch fills dest and
// the result is written back with ttl. Cache errors never fail the read.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	space := keyspace(key)
	hit, err := GetJSON(ctx, key, dest)
	switch {
	case err != nil:
		observability.CacheLookups.WithLabelValues(space, "error").Inc()
		middleware.Logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	case hit:
		observability.CacheLookups.WithLabelValues(space, "hit").Inc()
		return nil
	default:
		observability.CacheLookups.WithLabelValues(space, "miss").Inc()
	}

	if err := fetch(); err != nil {
		return err
	}
	if err := SetJSON(ctx, key, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return nil
}

// keyspace is the prefix of key before its first colon.
func keyspace(key string) string {
	space, _, _ := strings.Cut(key, ":")
	return space
}
