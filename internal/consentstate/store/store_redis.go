package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"consentstate/pkg/platform/sentinel"
)

const redisKeyPrefix = "consentstate:"

// RedisStore persists records in Redis. A positive TTL expires records that
// are not rewritten, so a visitor who never returns is eventually forgotten.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed store. A ttl of zero keeps records forever.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Get loads the raw record stored under key.
//
// Errors: returns sentinel.ErrNotFound on a miss; wraps Redis errors.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, redisKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("get consent record: %w", err)
	}
	return value, nil
}

// Set overwrites the record under key and refreshes its TTL.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, redisKey(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("set consent record: %w", err)
	}
	return nil
}

// Delete removes the record under key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("delete consent record: %w", err)
	}
	return nil
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}
