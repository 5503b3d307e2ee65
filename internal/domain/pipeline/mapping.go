package pipeline

import (
	"context"
	"time"
)

// IdentifierMapping is the persisted correspondence between a source-system
// GUID and the identifier the target system assigned on sync. It forms the
// audit trail and the future de-dup key for re-sync; nothing in the core
// reads it back today.
type IdentifierMapping struct {
	ID           uint
	Source       string
	SourceGuid   string
	Target       string
	TargetID     string
	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdentifierMappingRepository persists identifier mappings.
type IdentifierMappingRepository interface {
	// Record writes the mapping for a successfully synced entity, updating
	// last_synced_at when the pair already exists.
	Record(ctx context.Context, source, sourceGuid, target, targetID string) error

	// FindBySourceGuid returns all mappings recorded for a source GUID.
	FindBySourceGuid(ctx context.Context, source, sourceGuid string) ([]IdentifierMapping, error)
}
