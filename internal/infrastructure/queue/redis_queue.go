package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/config"
)

// RedisQueue implements pipeline.Queue on a Redis list plus SETNX keys.
// This is the backend for distributed deployments where the webhook gateway
// and the queue worker run in separate instances.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue connects to Redis and returns a queue backed by it
func NewRedisQueue(cfg config.RedisConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisQueue{client: client}, nil
}

// NewRedisQueueWithClient wraps an existing Redis client
// This is useful for testing or when sharing a client across components
func NewRedisQueueWithClient(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Push appends value to the tail of the list at key
func (q *RedisQueue) Push(ctx context.Context, key, value string) error {
	if err := q.client.RPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("failed to push to queue: %w", err)
	}
	return nil
}

// Pop removes and returns the head of the list at key, or "" when empty
func (q *RedisQueue) Pop(ctx context.Context, key string) (string, error) {
	value, err := q.client.LPop(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to pop from queue: %w", err)
	}
	return value, nil
}

// Length returns the number of entries in the list at key
func (q *RedisQueue) Length(ctx context.Context, key string) (int64, error) {
	length, err := q.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return length, nil
}

// SetIfAbsent atomically sets key to value with a TTL
// Returns true if the key was newly set, false if it already existed
func (q *RedisQueue) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	set, err := q.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set dedup key: %w", err)
	}
	return set, nil
}

// Close closes the Redis client
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ensure RedisQueue implements pipeline.Queue
var _ pipeline.Queue = (*RedisQueue)(nil)
