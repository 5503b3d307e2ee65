// Package pipeline exposes the operator's view of the sync pipeline: queue
// and task counts, the traffic-light health rollup, the recent task list and
// the replay/retry actions.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/pipeline"
)

// Service aggregates pipeline state for the dashboard and applies operator
// actions to individual tasks.
type Service struct {
	queueKey string
	queue    pipeline.Queue
	tasks    pipeline.SyncTaskRepository
	logger   *zap.Logger
}

// NewService creates a Service.
func NewService(queueKey string, queue pipeline.Queue, tasks pipeline.SyncTaskRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		queueKey: queueKey,
		queue:    queue,
		tasks:    tasks,
		logger:   logger.Named("pipeline"),
	}
}

// Counts is the dashboard's headline numbers.
type Counts struct {
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Ready      int64 `json:"ready"`
	Failed24h  int64 `json:"failed24h"`
	Done24h    int64 `json:"done24h"`
}

// Status pairs the counts with the health rollup.
type Status struct {
	Counts Counts               `json:"counts"`
	Health pipeline.StatusColor `json:"health"`
}

// Counts returns the queue depth plus the task totals.
func (s *Service) Counts(ctx context.Context) (*Counts, error) {
	queued, err := s.queue.Length(ctx, s.queueKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue depth: %w", err)
	}

	totals, err := s.tasks.Counts(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	return &Counts{
		Queued:     queued,
		Processing: totals.Processing,
		Ready:      totals.Ready,
		Failed24h:  totals.Failed24h,
		Done24h:    totals.Done24h,
	}, nil
}

// HealthColor rolls the last hour of terminal fetch failures into a traffic
// light: no FAILED tasks is GREEN, failures alongside completed work is
// ORANGE, failures with nothing completing is RED.
func (s *Service) HealthColor(ctx context.Context) (pipeline.StatusColor, error) {
	since := time.Now().UTC().Add(-time.Hour)

	failed, err := s.tasks.CountByStatusSince(ctx, pipeline.TaskStatusFailed, since)
	if err != nil {
		return "", fmt.Errorf("failed to count failed tasks: %w", err)
	}
	if failed == 0 {
		return pipeline.StatusGreen, nil
	}

	done, err := s.tasks.CountByStatusSince(ctx, pipeline.TaskStatusDone, since)
	if err != nil {
		return "", fmt.Errorf("failed to count done tasks: %w", err)
	}
	if done > 0 {
		return pipeline.StatusOrange, nil
	}
	return pipeline.StatusRed, nil
}

// Status returns counts and health in one call for the dashboard endpoint.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	counts, err := s.Counts(ctx)
	if err != nil {
		return nil, err
	}
	health, err := s.HealthColor(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Counts: *counts, Health: health}, nil
}

// Recent returns the most recently updated tasks.
func (s *Service) Recent(ctx context.Context, limit int) ([]pipeline.SyncTask, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.tasks.Recent(ctx, limit)
}

// ReplayTask pushes a fresh envelope rebuilt from the task back onto the
// queue and moves the task to QUEUED with its counters reset. The replayed
// envelope starts from attempt zero; the original delivery body is gone, the
// worker re-fetches the full record anyway.
func (s *Service) ReplayTask(ctx context.Context, id uint) error {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return err
	}

	envelope := pipeline.NewQueueEnvelope(
		task.EventType,
		task.Type,
		task.SourceGuid,
		task.CreatedAt.UTC().Format(time.RFC3339),
		nil,
	)
	encoded, err := envelope.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode replay envelope: %w", err)
	}
	if err := s.queue.Push(ctx, s.queueKey, encoded); err != nil {
		return fmt.Errorf("failed to enqueue replay envelope: %w", err)
	}

	if err := s.tasks.ResetForRetry(ctx, id, pipeline.TaskStatusQueued); err != nil {
		return err
	}

	s.logger.Info("task replayed",
		zap.Uint("taskId", id),
		zap.String("sourceGuid", task.SourceGuid),
		zap.String("envelopeId", envelope.ID),
	)
	return nil
}

// RetryTask moves a task straight back to READY for the next sync sweep,
// reusing its staged payload.
func (s *Service) RetryTask(ctx context.Context, id uint) error {
	if _, err := s.tasks.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.tasks.ResetForRetry(ctx, id, pipeline.TaskStatusReady); err != nil {
		return err
	}

	s.logger.Info("task marked for retry", zap.Uint("taskId", id))
	return nil
}
