package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "turnpike:idem:"

// RedisStore implements Store on Redis. Suitable for multi-node
// deployments: SETNX provides the atomic check-and-reserve, and the
// reservation TTL is the crash-recovery grace period.
type RedisStore struct {
	client *redis.Client
	prefix string

	// reservationTTL bounds how long an uncompleted reservation blocks
	// the key before it becomes re-reservable.
	reservationTTL time.Duration

	// resultTTL bounds how long completed results are replayable
	// (0 = keep forever).
	resultTTL time.Duration
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix (default "turnpike:idem:").
	Prefix string
	// ReservationTTL is the reservation grace period (default 30s).
	ReservationTTL time.Duration
	// ResultTTL is the completed-result retention (0 = never expire).
	ResultTTL time.Duration
	// PoolSize is the connection pool size (default 10).
	PoolSize int
}

// NewRedisStore creates a Redis-backed idempotency store and verifies
// connectivity.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newRedisStore(client, cfg), nil
}

// NewRedisStoreFromClient creates a store from an existing client.
// Useful for testing with miniredis.
func NewRedisStoreFromClient(client *redis.Client, cfg RedisConfig) *RedisStore {
	return newRedisStore(client, cfg)
}

func newRedisStore(client *redis.Client, cfg RedisConfig) *RedisStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	reservationTTL := cfg.ReservationTTL
	if reservationTTL <= 0 {
		reservationTTL = 30 * time.Second
	}
	return &RedisStore{
		client:         client,
		prefix:         prefix,
		reservationTTL: reservationTTL,
		resultTTL:      cfg.ResultTTL,
	}
}

// Key helpers
func (s *RedisStore) resultKey(key Key) string {
	return s.prefix + "result:" + key.Tenant + ":" + key.Session + ":" + key.Client
}

func (s *RedisStore) pendingKey(key Key) string {
	return s.prefix + "pending:" + key.Tenant + ":" + key.Session + ":" + key.Client
}

// CheckOrReserve resolves the key atomically. The SETNX on the pending key
// closes the lost-update window; its TTL is the reservation grace period.
func (s *RedisStore) CheckOrReserve(ctx context.Context, key Key) (Reservation, []byte, error) {
	stored, err := s.client.Get(ctx, s.resultKey(key)).Bytes()
	if err == nil {
		return Found, stored, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := s.client.SetNX(ctx, s.pendingKey(key), time.Now().UTC().Format(time.RFC3339Nano), s.reservationTTL).Result()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ok {
		return Reserved, nil, nil
	}

	// Lost the race. The owner may have completed between our GET and
	// SETNX; re-check before reporting the conflict.
	stored, err = s.client.Get(ctx, s.resultKey(key)).Bytes()
	if err == nil {
		return Found, stored, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return AlreadyReserved, nil, nil
}

// Complete stores the result and clears the reservation.
func (s *RedisStore) Complete(ctx context.Context, key Key, result []byte) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.resultKey(key), result, s.resultTTL)
	pipe.Del(ctx, s.pendingKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Release clears the reservation without storing a result.
func (s *RedisStore) Release(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, s.pendingKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping checks store connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
