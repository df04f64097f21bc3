package api

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotency stores idempotency keys of create requests in Redis so a
// retried POST returns the task created by the first attempt.
type RedisIdempotency struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotency creates a store using the provided Redis client and TTL.
func NewRedisIdempotency(client *redis.Client, ttl time.Duration) *RedisIdempotency {
	return &RedisIdempotency{client: client, ttl: ttl}
}

func (r *RedisIdempotency) key(key string) string {
	return "idempotency:create-task:" + key
}

// Lookup returns the task id stored under key.
func (r *RedisIdempotency) Lookup(ctx context.Context, key string) (string, bool, error) {
	id, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Remember records taskID under key if the key is not already set.
func (r *RedisIdempotency) Remember(ctx context.Context, key, taskID string) error {
	return r.client.SetNX(ctx, r.key(key), taskID, r.ttl).Err()
}

// Replace points key at taskID, used when the recorded task no longer exists.
func (r *RedisIdempotency) Replace(ctx context.Context, key, taskID string) error {
	return r.client.Set(ctx, r.key(key), taskID, r.ttl).Err()
}
