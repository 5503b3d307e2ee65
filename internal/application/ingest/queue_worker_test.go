package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/persistence"
	"github.com/ordersync/backend/internal/infrastructure/queue"
)

// fakeFetcher serves canned payloads and errors per guid
type fakeFetcher struct {
	payloads map[string]string
	errs     map[string]error
	calls    int
}

func (f *fakeFetcher) FetchSalesOrderRaw(ctx context.Context, guid string) (json.RawMessage, error) {
	f.calls++
	if err, ok := f.errs[guid]; ok {
		return nil, err
	}
	if payload, ok := f.payloads[guid]; ok {
		return json.RawMessage(payload), nil
	}
	return nil, errors.New("sales order not found")
}

type workerFixture struct {
	worker  *QueueWorker
	queue   *queue.MemoryQueue
	staging pipeline.StagingRepository
	tasks   pipeline.SyncTaskRepository
	fetcher *fakeFetcher
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, persistence.Migrate(db))

	q := queue.NewMemoryQueue()
	t.Cleanup(func() { q.Close() })

	fetcher := &fakeFetcher{payloads: map[string]string{}, errs: map[string]error{}}
	staging := persistence.NewGormStagingRepository(db)
	tasks := persistence.NewGormSyncTaskRepository(db)

	return &workerFixture{
		worker: NewQueueWorker(WorkerConfig{
			QueueKey:    testQueueKey,
			BatchSize:   25,
			MaxAttempts: 8,
		}, q, fetcher, staging, tasks, zap.NewNop()),
		queue:   q,
		staging: staging,
		tasks:   tasks,
		fetcher: fetcher,
	}
}

func (f *workerFixture) push(t *testing.T, envelope *pipeline.QueueEnvelope) {
	t.Helper()
	encoded, err := envelope.Encode()
	require.NoError(t, err)
	require.NoError(t, f.queue.Push(context.Background(), testQueueKey, encoded))
}

func envelopeFor(guid, eventType string, attempts int) *pipeline.QueueEnvelope {
	e := pipeline.NewQueueEnvelope(eventType, pipeline.ResourceTypeSalesOrder, guid, "", nil)
	e.Attempts = attempts
	return e
}

func TestQueueWorker_ProcessesSupportedEvent(t *testing.T) {
	f := newWorkerFixture(t)
	f.fetcher.payloads["guid-1"] = `{"Guid":"guid-1","OrderNumber":"SO-1"}`
	f.push(t, envelopeFor("guid-1", "salesorder.created", 0))

	report, err := f.worker.Drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Processed, 1)
	assert.Empty(t, report.Requeued)
	assert.Empty(t, report.Failures)

	staged, err := f.staging.FindBySourceGuid(context.Background(), "guid-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"Guid":"guid-1","OrderNumber":"SO-1"}`, staged.Payload)

	ready, err := f.tasks.FindReady(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "guid-1", ready[0].Task.SourceGuid)
	assert.Zero(t, ready[0].Task.Attempts)
}

func TestQueueWorker_SkipsUnsupportedEvent(t *testing.T) {
	f := newWorkerFixture(t)
	f.push(t, envelopeFor("guid-1", "invoice.created", 0))

	report, err := f.worker.Drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Skipped, 1)
	assert.Zero(t, f.fetcher.calls)
}

func TestQueueWorker_DropsUnparseableEnvelope(t *testing.T) {
	f := newWorkerFixture(t)
	require.NoError(t, f.queue.Push(context.Background(), testQueueKey, "{broken"))
	f.fetcher.payloads["guid-1"] = `{"Guid":"guid-1"}`
	f.push(t, envelopeFor("guid-1", "salesorder.updated", 0))

	report, err := f.worker.Drain(context.Background())
	require.NoError(t, err)
	// The bad envelope is dropped, the rest of the batch still runs
	assert.Len(t, report.Processed, 1)
}

func TestQueueWorker_RequeuesTransientFailureToTail(t *testing.T) {
	f := newWorkerFixture(t)
	f.fetcher.errs["guid-1"] = errors.New("upstream timeout")
	f.push(t, envelopeFor("guid-1", "salesorder.created", 0))

	report, err := f.worker.Drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Requeued, 1)

	// Envelope went back to the tail with the attempt counted
	raw, err := f.queue.Pop(context.Background(), testQueueKey)
	require.NoError(t, err)
	envelope, err := pipeline.DecodeQueueEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, envelope.Attempts)

	// Placeholder staging and a retryable READY task carrying the error
	staged, err := f.staging.FindBySourceGuid(context.Background(), "guid-1")
	require.NoError(t, err)
	assert.False(t, staged.HasPayload())

	ready, err := f.tasks.FindReady(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, 1, ready[0].Task.Attempts)
	assert.Equal(t, "upstream timeout", ready[0].Task.LastError)
}

func TestQueueWorker_PlaceholderKeepsEarlierPayload(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	_, err := f.staging.Upsert(ctx, pipeline.SourceUnleashed, pipeline.ResourceTypeSalesOrder, "guid-1", `{"Guid":"guid-1"}`)
	require.NoError(t, err)

	f.fetcher.errs["guid-1"] = errors.New("upstream timeout")
	f.push(t, envelopeFor("guid-1", "salesorder.updated", 0))

	_, err = f.worker.Drain(ctx)
	require.NoError(t, err)

	staged, err := f.staging.FindBySourceGuid(ctx, "guid-1")
	require.NoError(t, err)
	assert.True(t, staged.HasPayload())
}

func TestQueueWorker_RetiresAtAttemptCeiling(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	_, err := f.staging.Upsert(ctx, pipeline.SourceUnleashed, pipeline.ResourceTypeSalesOrder, "guid-1", `{"Guid":"guid-1"}`)
	require.NoError(t, err)

	f.fetcher.errs["guid-1"] = errors.New("still down")
	// Seventh failure re-queues, eighth is terminal
	f.push(t, envelopeFor("guid-1", "salesorder.created", 7))

	report, err := f.worker.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "still down", report.Failures[0].Error)

	// Not re-queued
	length, _ := f.queue.Length(ctx, testQueueKey)
	assert.Zero(t, length)

	tasks, err := f.tasks.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, pipeline.TaskStatusFailed, tasks[0].Status)
	assert.Equal(t, 8, tasks[0].Attempts)
}

func TestQueueWorker_StagingMissingAtCeilingAbortsRun(t *testing.T) {
	f := newWorkerFixture(t)
	f.fetcher.errs["guid-1"] = errors.New("still down")
	f.push(t, envelopeFor("guid-1", "salesorder.created", 7))

	_, err := f.worker.Drain(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrStagingMissing)
}

func TestQueueWorker_HonorsBatchSize(t *testing.T) {
	f := newWorkerFixture(t)
	f.worker.cfg.BatchSize = 2
	for _, guid := range []string{"a", "b", "c"} {
		f.fetcher.payloads[guid] = `{"Guid":"x"}`
		f.push(t, envelopeFor(guid, "salesorder.created", 0))
	}

	report, err := f.worker.Drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Processed, 2)

	length, _ := f.queue.Length(context.Background(), testQueueKey)
	assert.Equal(t, int64(1), length)
}

func TestQueueWorker_StopsWhenQueueEmpty(t *testing.T) {
	f := newWorkerFixture(t)

	report, err := f.worker.Drain(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Processed)
	assert.Empty(t, report.Requeued)
}
