package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
)

// GormIdentifierMappingRepository implements IdentifierMappingRepository
// using GORM
type GormIdentifierMappingRepository struct {
	db *gorm.DB
}

// NewGormIdentifierMappingRepository creates a new GormIdentifierMappingRepository
func NewGormIdentifierMappingRepository(db *gorm.DB) *GormIdentifierMappingRepository {
	return &GormIdentifierMappingRepository{db: db}
}

// Record writes the mapping for a successfully synced entity. Re-syncing the
// same pair refreshes target_id and last_synced_at instead of stacking rows.
func (r *GormIdentifierMappingRepository) Record(ctx context.Context, source, sourceGuid, target, targetID string) error {
	model := models.IdentifierMappingModel{
		Source:       source,
		SourceGuid:   sourceGuid,
		Target:       target,
		TargetID:     targetID,
		LastSyncedAt: time.Now().UTC(),
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "source_guid"}, {Name: "target"}},
			DoUpdates: clause.AssignmentColumns([]string{"target_id", "last_synced_at", "updated_at"}),
		}).
		Create(&model).Error
}

// FindBySourceGuid returns all mappings recorded for a source GUID
func (r *GormIdentifierMappingRepository) FindBySourceGuid(ctx context.Context, source, sourceGuid string) ([]pipeline.IdentifierMapping, error) {
	var mappingModels []models.IdentifierMappingModel
	if err := r.db.WithContext(ctx).
		Where("source = ? AND source_guid = ?", source, sourceGuid).
		Order("last_synced_at DESC").
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]pipeline.IdentifierMapping, len(mappingModels))
	for i, model := range mappingModels {
		mappings[i] = *model.ToDomain()
	}
	return mappings, nil
}

// Ensure GormIdentifierMappingRepository implements IdentifierMappingRepository
var _ pipeline.IdentifierMappingRepository = (*GormIdentifierMappingRepository)(nil)
