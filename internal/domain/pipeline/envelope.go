package pipeline

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Source and target system codes used across staging, tasks and identifier
// mappings.
const (
	SourceUnleashed = "unleashed"
	TargetRoar      = "roar"
)

// ResourceTypeSalesOrder is the only resource type flowing through the
// pipeline today.
const ResourceTypeSalesOrder = "SalesOrder"

// QueueEnvelope is one unit of webhook-triggered work. It is created by the
// webhook gateway (attempts=0) or a manual replay, carries its own retry
// counter, and is destroyed by successful processing or by exceeding the
// attempt ceiling.
type QueueEnvelope struct {
	ID           string          `json:"id"`
	ReceivedAt   time.Time       `json:"receivedAt"`
	EventType    string          `json:"eventType"`
	ResourceType string          `json:"resourceType"`
	ResourceGuid string          `json:"resourceGuid"`
	OccurredAt   string          `json:"occurredAt,omitempty"`
	Body         json.RawMessage `json:"body"`
	Attempts     int             `json:"attempts"`
}

// NewQueueEnvelope creates a fresh envelope with a generated id and a zeroed
// attempt counter.
func NewQueueEnvelope(eventType, resourceType, resourceGuid, occurredAt string, body json.RawMessage) *QueueEnvelope {
	if body == nil {
		body = json.RawMessage("{}")
	}
	return &QueueEnvelope{
		ID:           uuid.NewString(),
		ReceivedAt:   time.Now().UTC(),
		EventType:    eventType,
		ResourceType: resourceType,
		ResourceGuid: resourceGuid,
		OccurredAt:   occurredAt,
		Body:         body,
		Attempts:     0,
	}
}

// Encode serializes the envelope for queue storage.
func (e *QueueEnvelope) Encode() (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeQueueEnvelope parses an envelope previously stored with Encode.
func DecodeQueueEnvelope(raw string) (*QueueEnvelope, error) {
	var e QueueEnvelope
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DedupKey builds the deduplication key for a delivery: resource, guid, event
// type and the occurrence time truncated to the minute, so repeated deliveries
// of the same event within the dedup TTL collapse to one envelope.
func (e *QueueEnvelope) DedupKey() string {
	occurred := e.OccurredAt
	if len(occurred) >= 16 {
		occurred = occurred[:16]
	} else if occurred == "" {
		occurred = "unknown"
	}
	return "dedupe:" + e.ResourceType + ":" + e.ResourceGuid + ":" + e.EventType + ":" + occurred
}
