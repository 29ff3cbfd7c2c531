package idempotency

import (
	"context"
	"errors"
	"fmt"
	"storefront/apperror"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "storefront:idempotency:"
	pendingMarker = "-"
)

// abandonScript deletes a key only while it still holds the pending marker.
var abandonScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisStore struct {
	client     *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

func NewRedisStore(redisURL string, ttl, pendingTTL time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTTL
	}
	return &RedisStore{client: client, ttl: ttl, pendingTTL: pendingTTL}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Claim(ctx context.Context, key string) (string, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, pendingMarker, s.pendingTTL).Result()
	if err != nil {
		return "", fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return "", nil
	}

	val, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		return s.claimAgain(ctx, key)
	}
	if err != nil {
		return "", fmt.Errorf("read idempotency key: %w", err)
	}
	if val == pendingMarker {
		return "", apperror.ErrIdempotencyInProgress
	}
	return val, nil
}

func (s *RedisStore) claimAgain(ctx context.Context, key string) (string, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, pendingMarker, s.pendingTTL).Result()
	if err != nil {
		return "", fmt.Errorf("claim idempotency key: %w", err)
	}
	if !ok {
		return "", apperror.ErrIdempotencyInProgress
	}
	return "", nil
}

func (s *RedisStore) Complete(ctx context.Context, key, orderID string) error {
	if err := s.client.Set(ctx, keyPrefix+key, orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("bind idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) Abandon(ctx context.Context, key string) error {
	if err := abandonScript.Run(ctx, s.client, []string{keyPrefix + key}, pendingMarker).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
