package queue

import (
	"context"
	"sync"
	"time"

	"github.com/ordersync/backend/internal/domain/pipeline"
)

// kvEntry represents a stored dedup key with expiration
type kvEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryQueue implements pipeline.Queue on in-process maps and slices.
// This is the fallback backend for single-instance deployments and testing;
// queued envelopes do not survive a restart.
type MemoryQueue struct {
	mu        sync.RWMutex
	lists     map[string][]string
	entries   map[string]kvEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryQueue creates an in-memory queue
// It starts a background goroutine to clean up expired dedup keys
func NewMemoryQueue() *MemoryQueue {
	q := &MemoryQueue{
		lists:    make(map[string][]string),
		entries:  make(map[string]kvEntry),
		stopChan: make(chan struct{}),
	}

	q.wg.Add(1)
	go q.cleanupLoop()

	return q
}

// Push appends value to the tail of the list at key
func (q *MemoryQueue) Push(ctx context.Context, key, value string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.lists[key] = append(q.lists[key], value)
	return nil
}

// Pop removes and returns the head of the list at key, or "" when empty
func (q *MemoryQueue) Pop(ctx context.Context, key string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.lists[key]
	if len(list) == 0 {
		return "", nil
	}

	value := list[0]
	q.lists[key] = list[1:]
	return value, nil
}

// Length returns the number of entries in the list at key
func (q *MemoryQueue) Length(ctx context.Context, key string) (int64, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return int64(len(q.lists[key])), nil
}

// SetIfAbsent sets key to value with a TTL
// Returns true if the key was newly set, false if it already existed
func (q *MemoryQueue) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, exists := q.entries[key]; exists {
		if time.Now().Before(e.expiresAt) {
			return false, nil
		}
		// Entry exists but expired, will be overwritten
	}

	q.entries[key] = kvEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}

	return true, nil
}

// Close stops the cleanup goroutine and releases resources
// Safe to call multiple times
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.stopChan)
		q.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired dedup keys
func (q *MemoryQueue) cleanupLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopChan:
			return
		case <-ticker.C:
			q.cleanup()
		}
	}
}

// cleanup removes expired dedup keys
func (q *MemoryQueue) cleanup() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for key, e := range q.entries {
		if now.After(e.expiresAt) {
			delete(q.entries, key)
		}
	}
}

// Size returns the number of dedup keys in the store (for testing/monitoring)
func (q *MemoryQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// Ensure MemoryQueue implements pipeline.Queue
var _ pipeline.Queue = (*MemoryQueue)(nil)
