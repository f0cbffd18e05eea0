package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixelhunt/pixelhunt/diff"
)

// defaultTTL bounds how long an unclaimed detection result survives. Entries
// are normally claimed within seconds; the TTL is a backstop against clients
// that vanish between detection and game creation.
const defaultTTL = 24 * time.Hour

// RedisStore provides a Redis-backed implementation of the Store interface.
// Values are stored as JSON; unclaimed entries expire after the configured
// TTL so abandoned jobs cannot accumulate.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live for unclaimed detection results.
// Set to 0 for no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for Redis keys. Default is "pixelhunt".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed difference cache.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(time.Hour),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    defaultTTL,
		prefix: "pixelhunt",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) key(jobID string) string {
	return fmt.Sprintf("%s:job:%s", s.prefix, jobID)
}

// Store caches the detection result under its job ID. SETNX makes the
// duplicate check atomic across processes.
func (s *RedisStore) Store(ctx context.Context, jobID string, info *diff.Info) error {
	if jobID == "" {
		return ErrInvalidID
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal detection result: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(jobID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return ErrDuplicateJob
	}
	return nil
}

// Take atomically retrieves and removes the detection result via GETDEL.
func (s *RedisStore) Take(ctx context.Context, jobID string) (*diff.Info, error) {
	if jobID == "" {
		return nil, ErrInvalidID
	}

	data, err := s.client.GetDel(ctx, s.key(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis getdel failed: %w", err)
	}

	var info diff.Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal detection result: %w", err)
	}
	return &info, nil
}
