package pipeline

import (
	"context"
	"time"
)

// Queue is the durable work queue capability. Ordering is strict FIFO per
// key; delivery is at-least-once. SetIfAbsent is the atomic
// create-if-missing-with-expiry primitive used for webhook deduplication.
//
// Two implementations share this contract (redis-backed and in-process); the
// active one is selected once at startup and callers are agnostic to which is
// in use.
type Queue interface {
	// Push appends a value to the tail of the list stored at key.
	Push(ctx context.Context, key, value string) error

	// Pop removes and returns the head of the list, or "" when the list is
	// empty.
	Pop(ctx context.Context, key string) (string, error)

	// Length returns the number of entries in the list.
	Length(ctx context.Context, key string) (int64, error)

	// SetIfAbsent atomically creates key with the given TTL. It returns true
	// when the key was newly set, false when it already existed.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}
