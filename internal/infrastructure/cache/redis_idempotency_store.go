package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"retailledger/internal/domain/ledger"
)

// pendingMarker is stored while the first request holding a key is still running.
const pendingMarker = "\x00pending"

// RedisIdempotencyStore shares idempotency keys between instances.
type RedisIdempotencyStore struct {
	client     redis.UniversalClient
	keyPrefix  string
	pendingTTL time.Duration
	resultTTL  time.Duration
}

var _ ledger.IdempotencyStore = (*RedisIdempotencyStore)(nil)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisIdempotencyStore creates a store on an existing client.
// pendingTTL bounds how long a crashed request can hold a key;
// resultTTL is how long a completed result is replayed.
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string, pendingTTL, resultTTL time.Duration) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "retail:idempotency:"
	}
	return &RedisIdempotencyStore{
		client:     client,
		keyPrefix:  keyPrefix,
		pendingTTL: pendingTTL,
		resultTTL:  resultTTL,
	}
}

// Acquire claims key with SETNX. When the key is already held, the stored
// result is returned, or "" while the holder is still in flight.
func (s *RedisIdempotencyStore) Acquire(ctx context.Context, key string) (string, bool, error) {
	k := s.keyPrefix + key

	ok, err := s.client.SetNX(ctx, k, pendingMarker, s.pendingTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if ok {
		return "", true, nil
	}

	val, err := s.client.Get(ctx, k).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// expired between SETNX and GET; report in flight and let the caller retry
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("get %s: %w", key, err)
	case val == pendingMarker:
		return "", false, nil
	default:
		return val, false, nil
	}
}

// Complete stores the result of the request holding key.
func (s *RedisIdempotencyStore) Complete(ctx context.Context, key, result string) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, result, s.resultTTL).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Release frees key after a failed request so it can be retried.
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}
