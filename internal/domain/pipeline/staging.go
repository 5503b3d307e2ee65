package pipeline

import (
	"context"
	"time"
)

// EmptyPayload is the placeholder stored while a source fetch is pending
// retry.
const EmptyPayload = "{}"

// StagingRecord is the durable cache of the last successfully fetched (or
// pending) full source record for one entity. Exactly one record exists per
// (source, type, sourceGuid); it is never deleted, only overwritten by the
// next successful fetch.
type StagingRecord struct {
	ID         uint
	Source     string
	Type       string
	SourceGuid string
	Payload    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasPayload reports whether a real source record has been staged, as opposed
// to the placeholder written while a fetch is retrying.
func (r *StagingRecord) HasPayload() bool {
	return r.Payload != "" && r.Payload != EmptyPayload
}

// StagingRepository persists staging records. All writes are upserts keyed by
// the natural key so concurrent and duplicate triggers collapse onto one row.
type StagingRepository interface {
	// Upsert writes the payload for (source, entityType, sourceGuid),
	// creating the row if absent, and returns the stored record.
	Upsert(ctx context.Context, source, entityType, sourceGuid, payload string) (*StagingRecord, error)

	// UpsertPlaceholder writes the empty placeholder payload, creating the
	// row if absent.
	UpsertPlaceholder(ctx context.Context, source, entityType, sourceGuid string) (*StagingRecord, error)

	// FindBySourceGuid returns the record for sourceGuid, or
	// ErrStagingNotFound.
	FindBySourceGuid(ctx context.Context, sourceGuid string) (*StagingRecord, error)
}
