package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTier implements the backing tier against a Redis-compatible service.
type redisTier struct {
	client *redis.Client
}

// newRedisTier builds a client from cfg and verifies liveness with PING.
func newRedisTier(ctx context.Context, addr, password string, db int, pingTimeout time.Duration) (*redisTier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return &redisTier{client: client}, nil
}

func (t *redisTier) get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := t.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (t *redisTier) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (t *redisTier) invalidate(ctx context.Context, pattern string) error {
	match := keyPrefix + ":*"
	if pattern != "" {
		match = keyPrefix + ":*" + pattern + "*"
	}
	keys, err := t.client.Keys(ctx, match).Result()
	if err != nil {
		return fmt.Errorf("redis keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := t.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (t *redisTier) name() string { return "redis" }

func (t *redisTier) close() error { return t.client.Close() }
