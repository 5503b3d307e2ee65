package pipeline

import (
	"context"
	"time"
)

// TaskStatus is the lifecycle state of a sync task.
type TaskStatus string

const (
	// TaskStatusReady marks a task eligible for the next sync sweep.
	TaskStatusReady TaskStatus = "READY"
	// TaskStatusProcessing marks a task claimed by a running sweep.
	TaskStatusProcessing TaskStatus = "PROCESSING"
	// TaskStatusDone marks a task synced to the target system.
	TaskStatusDone TaskStatus = "DONE"
	// TaskStatusSyncFailed marks a task whose mapping or upsert failed.
	TaskStatusSyncFailed TaskStatus = "SYNC_FAILED"
	// TaskStatusFailed marks a task whose source fetch exhausted the queue
	// attempt ceiling.
	TaskStatusFailed TaskStatus = "FAILED"
	// TaskStatusQueued marks a replayed task whose envelope is back on the
	// queue.
	TaskStatusQueued TaskStatus = "QUEUED"
)

// SyncTask is the unit of outbound-sync work for one entity, uniquely keyed
// by (source, sourceGuid, type). The queue worker creates it and advances it
// to READY or FAILED; the sync processor advances READY → PROCESSING →
// DONE/SYNC_FAILED; operator actions move terminal tasks back to QUEUED or
// READY.
type SyncTask struct {
	ID         uint
	Source     string
	SourceGuid string
	Type       string
	Status     TaskStatus
	Attempts   int
	LastError  string
	EventType  string
	StagingID  uint
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TaskCounts aggregates task totals for the pipeline dashboard.
type TaskCounts struct {
	Processing int64
	Ready      int64
	Failed24h  int64
	Done24h    int64
}

// TaskUpsert carries the fields written by the queue worker's upsert of a
// task by natural key.
type TaskUpsert struct {
	Source     string
	SourceGuid string
	Type       string
	Status     TaskStatus
	Attempts   int
	LastError  string
	EventType  string
	StagingID  uint
}

// ReadyTask pairs a READY task with its staged payload for the sync sweep.
type ReadyTask struct {
	Task    SyncTask
	Payload string
}

// SyncTaskRepository persists sync tasks. Writes are upserts by natural key;
// state transitions out of READY use a conditional update so concurrent
// sweeps do not both claim the same task.
type SyncTaskRepository interface {
	// Upsert creates or updates the task identified by
	// (source, sourceGuid, type).
	Upsert(ctx context.Context, u TaskUpsert) (*SyncTask, error)

	// FindByID returns the task with the given id, or ErrTaskNotFound.
	FindByID(ctx context.Context, id uint) (*SyncTask, error)

	// FindReady returns up to limit READY tasks, newest first, each joined
	// with its staged payload.
	FindReady(ctx context.Context, limit int) ([]ReadyTask, error)

	// UpdateStatus unconditionally sets status and last error for a task.
	UpdateStatus(ctx context.Context, id uint, status TaskStatus, lastError string) error

	// TransitionStatus sets status only when the task is still in the
	// expected prior state. It returns false when another worker got there
	// first.
	TransitionStatus(ctx context.Context, id uint, from, to TaskStatus) (bool, error)

	// ResetForRetry moves a task to the given status with attempts zeroed and
	// the last error cleared, for operator replay/retry actions.
	ResetForRetry(ctx context.Context, id uint, status TaskStatus) error

	// Counts returns aggregate totals for the dashboard; the 24h windows are
	// measured against updated_at.
	Counts(ctx context.Context, now time.Time) (*TaskCounts, error)

	// CountByStatusSince counts tasks in status updated at or after since.
	CountByStatusSince(ctx context.Context, status TaskStatus, since time.Time) (int64, error)

	// Recent returns the most recently updated tasks, up to limit.
	Recent(ctx context.Context, limit int) ([]SyncTask, error)
}
