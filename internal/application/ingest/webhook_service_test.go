package ingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/queue"
)

const testQueueKey = "queue:unleashed"

func sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func validBody() []byte {
	return []byte(`{
		"eventType": "salesorder.created",
		"occurredAt": "2026-08-27T10:15:30.000Z",
		"data": "{\"salesOrderGuid\":\"guid-1\"}"
	}`)
}

func newWebhookService(t *testing.T, secret string) (*WebhookService, *queue.MemoryQueue) {
	t.Helper()
	q := queue.NewMemoryQueue()
	t.Cleanup(func() { q.Close() })
	svc := NewWebhookService(WebhookConfig{
		Secret:   secret,
		QueueKey: testQueueKey,
		DedupTTL: time.Minute,
	}, q, zap.NewNop())
	return svc, q
}

func TestWebhookService_AcceptsValidSignature(t *testing.T) {
	svc, q := newWebhookService(t, "whsec")
	body := validBody()

	result, err := svc.Handle(context.Background(), body, sign("whsec", "1756290000", body), "1756290000")
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.False(t, result.Deduped)

	length, err := q.Length(context.Background(), testQueueKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	raw, err := q.Pop(context.Background(), testQueueKey)
	require.NoError(t, err)
	envelope, err := pipeline.DecodeQueueEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, result.ID, envelope.ID)
	assert.Equal(t, "salesorder.created", envelope.EventType)
	assert.Equal(t, "guid-1", envelope.ResourceGuid)
	assert.Equal(t, pipeline.ResourceTypeSalesOrder, envelope.ResourceType)
	assert.Zero(t, envelope.Attempts)
}

func TestWebhookService_RejectsBadSignature(t *testing.T) {
	svc, q := newWebhookService(t, "whsec")
	body := validBody()

	_, err := svc.Handle(context.Background(), body, sign("wrong-secret", "1756290000", body), "1756290000")
	assert.ErrorIs(t, err, pipeline.ErrSignatureMismatch)

	length, _ := q.Length(context.Background(), testQueueKey)
	assert.Zero(t, length)
}

func TestWebhookService_RejectsMissingSignature(t *testing.T) {
	svc, _ := newWebhookService(t, "whsec")

	_, err := svc.Handle(context.Background(), validBody(), "", "1756290000")
	assert.ErrorIs(t, err, pipeline.ErrSignatureMismatch)
}

func TestWebhookService_BypassesVerificationWithoutSecret(t *testing.T) {
	svc, q := newWebhookService(t, "")

	result, err := svc.Handle(context.Background(), validBody(), "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)

	length, _ := q.Length(context.Background(), testQueueKey)
	assert.Equal(t, int64(1), length)
}

func TestWebhookService_RejectsMalformedJSON(t *testing.T) {
	svc, _ := newWebhookService(t, "")

	_, err := svc.Handle(context.Background(), []byte("{not json"), "", "")
	assert.ErrorIs(t, err, pipeline.ErrInvalidPayload)
}

func TestWebhookService_RejectsMissingEventType(t *testing.T) {
	svc, _ := newWebhookService(t, "")

	_, err := svc.Handle(context.Background(), []byte(`{"data":"{}"}`), "", "")
	assert.ErrorIs(t, err, pipeline.ErrInvalidPayload)
}

func TestWebhookService_RejectsMalformedDataField(t *testing.T) {
	svc, _ := newWebhookService(t, "")

	body := []byte(`{"eventType":"salesorder.created","data":"not json"}`)
	_, err := svc.Handle(context.Background(), body, "", "")
	assert.ErrorIs(t, err, pipeline.ErrInvalidPayload)
}

func TestWebhookService_DeduplicatesRepeatedDelivery(t *testing.T) {
	svc, q := newWebhookService(t, "")
	ctx := context.Background()

	first, err := svc.Handle(ctx, validBody(), "", "")
	require.NoError(t, err)
	assert.False(t, first.Deduped)

	second, err := svc.Handle(ctx, validBody(), "", "")
	require.NoError(t, err)
	assert.True(t, second.Deduped)

	length, _ := q.Length(ctx, testQueueKey)
	assert.Equal(t, int64(1), length)
}

func TestWebhookService_DistinctMinutesAreNotDuplicates(t *testing.T) {
	svc, q := newWebhookService(t, "")
	ctx := context.Background()

	a := []byte(`{"eventType":"salesorder.created","occurredAt":"2026-08-27T10:15:30.000Z","data":"{\"salesOrderGuid\":\"guid-1\"}"}`)
	b := []byte(`{"eventType":"salesorder.created","occurredAt":"2026-08-27T10:16:02.000Z","data":"{\"salesOrderGuid\":\"guid-1\"}"}`)

	_, err := svc.Handle(ctx, a, "", "")
	require.NoError(t, err)
	_, err = svc.Handle(ctx, b, "", "")
	require.NoError(t, err)

	length, _ := q.Length(ctx, testQueueKey)
	assert.Equal(t, int64(2), length)
}

func TestWebhookService_MissingGuidFallsBackToUnknown(t *testing.T) {
	svc, q := newWebhookService(t, "")

	body := []byte(`{"eventType":"salesorder.created","data":"{}"}`)
	_, err := svc.Handle(context.Background(), body, "", "")
	require.NoError(t, err)

	raw, err := q.Pop(context.Background(), testQueueKey)
	require.NoError(t, err)
	envelope, err := pipeline.DecodeQueueEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, "unknown", envelope.ResourceGuid)
}
