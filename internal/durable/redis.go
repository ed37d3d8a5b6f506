package durable

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records as plain string keys under a prefix. A server
// running out of maxmemory answers writes with an OOM error, which is
// reported as ErrQuotaExceeded.
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

func NewRedisStore(client redis.UniversalClient, prefix string, opTimeout time.Duration) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &RedisStore{client: client, prefix: prefix, opTimeout: opTimeout}
}

// OpenRedis parses a redis:// URL and verifies connectivity.
func OpenRedis(redisURL string, prefix string, opTimeout time.Duration) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		redisURL = "redis://localhost:6379"
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	store := NewRedisStore(client, prefix, opTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), store.opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return store, nil
}

func (r *RedisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *RedisStore) Get(key string) (string, bool, error) {
	if r == nil || r.client == nil {
		return "", false, errors.New("redis store not initialized")
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opTimeout)
	defer cancel()

	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

func (r *RedisStore) Set(key string, value string) error {
	if r == nil || r.client == nil {
		return errors.New("redis store not initialized")
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return classifyRedisError(key, err)
	}
	return nil
}

func (r *RedisStore) Remove(key string) error {
	if r == nil || r.client == nil {
		return errors.New("redis store not initialized")
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opTimeout)
	defer cancel()

	if err := r.client.Unlink(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

func classifyRedisError(key string, err error) error {
	if err == nil {
		return nil
	}
	if strings.HasPrefix(err.Error(), "OOM ") {
		return fmt.Errorf("set %q: %w: %v", key, ErrQuotaExceeded, err)
	}
	return fmt.Errorf("set %q: %w", key, err)
}
