package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/pipeline"
)

// supportedEvents lists the event types the worker processes; everything else
// is skipped
var supportedEvents = map[string]struct{}{
	"salesorder.created": {},
	"salesorder.updated": {},
}

// SalesOrderFetcher fetches the full source record for a staged entity
type SalesOrderFetcher interface {
	FetchSalesOrderRaw(ctx context.Context, guid string) (json.RawMessage, error)
}

// WorkerConfig holds the queue worker's tunables
type WorkerConfig struct {
	QueueKey    string
	BatchSize   int
	MaxAttempts int
}

// QueueWorker drains the queue in bounded batches, fetches full source
// records, stages them and derives sync tasks
type QueueWorker struct {
	cfg     WorkerConfig
	queue   pipeline.Queue
	fetcher SalesOrderFetcher
	staging pipeline.StagingRepository
	tasks   pipeline.SyncTaskRepository
	logger  *zap.Logger
}

// NewQueueWorker creates a QueueWorker
func NewQueueWorker(
	cfg WorkerConfig,
	queue pipeline.Queue,
	fetcher SalesOrderFetcher,
	staging pipeline.StagingRepository,
	tasks pipeline.SyncTaskRepository,
	logger *zap.Logger,
) *QueueWorker {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 25
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueWorker{
		cfg:     cfg,
		queue:   queue,
		fetcher: fetcher,
		staging: staging,
		tasks:   tasks,
		logger:  logger.Named("worker"),
	}
}

// WorkerFailure is one envelope retired to terminal failure during a drain
type WorkerFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// WorkerReport summarizes one drain run
type WorkerReport struct {
	Processed []string        `json:"processed"`
	Requeued  []string        `json:"requeued"`
	Skipped   []string        `json:"skipped"`
	Failures  []WorkerFailure `json:"failures"`
}

// Drain pops up to the batch size of envelopes and processes each one
// independently, so a bad envelope does not block the rest. An absent staging
// record at the attempt ceiling is a broken invariant and aborts the run.
func (w *QueueWorker) Drain(ctx context.Context) (*WorkerReport, error) {
	report := &WorkerReport{
		Processed: []string{},
		Requeued:  []string{},
		Skipped:   []string{},
		Failures:  []WorkerFailure{},
	}

	for i := 0; i < w.cfg.BatchSize; i++ {
		raw, err := w.queue.Pop(ctx, w.cfg.QueueKey)
		if err != nil {
			return report, fmt.Errorf("failed to pop envelope: %w", err)
		}
		if raw == "" {
			break
		}

		envelope, err := pipeline.DecodeQueueEnvelope(raw)
		if err != nil {
			w.logger.Error("failed to parse envelope, dropping", zap.Error(err))
			continue
		}

		if _, ok := supportedEvents[envelope.EventType]; !ok {
			report.Skipped = append(report.Skipped, envelope.ID)
			w.logger.Info("unsupported event skipped",
				zap.String("envelopeId", envelope.ID),
				zap.String("eventType", envelope.EventType),
			)
			continue
		}

		if err := w.process(ctx, envelope); err == nil {
			report.Processed = append(report.Processed, envelope.ID)
			continue
		} else if handleErr := w.handleFetchFailure(ctx, envelope, err, report); handleErr != nil {
			return report, handleErr
		}
	}

	return report, nil
}

// process fetches the full record and advances staging and task state
func (w *QueueWorker) process(ctx context.Context, envelope *pipeline.QueueEnvelope) error {
	payload, err := w.fetcher.FetchSalesOrderRaw(ctx, envelope.ResourceGuid)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return fmt.Errorf("sales order %s not found", envelope.ResourceGuid)
	}

	staging, err := w.staging.Upsert(ctx,
		pipeline.SourceUnleashed, envelope.ResourceType, envelope.ResourceGuid, string(payload))
	if err != nil {
		return err
	}

	if _, err := w.tasks.Upsert(ctx, pipeline.TaskUpsert{
		Source:     pipeline.SourceUnleashed,
		SourceGuid: envelope.ResourceGuid,
		Type:       envelope.ResourceType,
		Status:     pipeline.TaskStatusReady,
		Attempts:   0,
		LastError:  "",
		EventType:  envelope.EventType,
		StagingID:  staging.ID,
	}); err != nil {
		return err
	}

	w.logger.Info("envelope processed",
		zap.String("envelopeId", envelope.ID),
		zap.String("resourceGuid", envelope.ResourceGuid),
	)
	return nil
}

// handleFetchFailure applies the retry policy: below the ceiling the envelope
// goes back to the tail with a placeholder staging record and a retryable
// READY task; at the ceiling the task is retired to FAILED.
func (w *QueueWorker) handleFetchFailure(ctx context.Context, envelope *pipeline.QueueEnvelope, cause error, report *WorkerReport) error {
	envelope.Attempts++
	message := cause.Error()

	if envelope.Attempts < w.cfg.MaxAttempts {
		encoded, err := envelope.Encode()
		if err != nil {
			return fmt.Errorf("failed to re-encode envelope: %w", err)
		}
		if err := w.queue.Push(ctx, w.cfg.QueueKey, encoded); err != nil {
			return fmt.Errorf("failed to re-queue envelope: %w", err)
		}

		staging, err := w.staging.UpsertPlaceholder(ctx,
			pipeline.SourceUnleashed, envelope.ResourceType, envelope.ResourceGuid)
		if err != nil {
			return err
		}

		if _, err := w.tasks.Upsert(ctx, pipeline.TaskUpsert{
			Source:     pipeline.SourceUnleashed,
			SourceGuid: envelope.ResourceGuid,
			Type:       envelope.ResourceType,
			Status:     pipeline.TaskStatusReady,
			Attempts:   envelope.Attempts,
			LastError:  message,
			EventType:  envelope.EventType,
			StagingID:  staging.ID,
		}); err != nil {
			return err
		}

		report.Requeued = append(report.Requeued, envelope.ID)
		w.logger.Warn("fetch failed, envelope re-queued",
			zap.String("envelopeId", envelope.ID),
			zap.Int("attempts", envelope.Attempts),
			zap.String("error", message),
		)
		return nil
	}

	staging, err := w.staging.FindBySourceGuid(ctx, envelope.ResourceGuid)
	if err != nil {
		return fmt.Errorf("%w: %s", pipeline.ErrStagingMissing, envelope.ResourceGuid)
	}

	if _, err := w.tasks.Upsert(ctx, pipeline.TaskUpsert{
		Source:     pipeline.SourceUnleashed,
		SourceGuid: envelope.ResourceGuid,
		Type:       envelope.ResourceType,
		Status:     pipeline.TaskStatusFailed,
		Attempts:   envelope.Attempts,
		LastError:  message,
		EventType:  envelope.EventType,
		StagingID:  staging.ID,
	}); err != nil {
		return err
	}

	report.Failures = append(report.Failures, WorkerFailure{ID: envelope.ID, Error: message})
	w.logger.Error("attempt ceiling reached, task retired",
		zap.String("envelopeId", envelope.ID),
		zap.Int("attempts", envelope.Attempts),
		zap.String("error", message),
	)
	return nil
}
