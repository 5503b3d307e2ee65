package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
)

// GormStagingRepository implements StagingRepository using GORM
type GormStagingRepository struct {
	db *gorm.DB
}

// NewGormStagingRepository creates a new GormStagingRepository
func NewGormStagingRepository(db *gorm.DB) *GormStagingRepository {
	return &GormStagingRepository{db: db}
}

// Upsert writes the payload for the natural key, creating the row if absent
func (r *GormStagingRepository) Upsert(ctx context.Context, source, entityType, sourceGuid, payload string) (*pipeline.StagingRecord, error) {
	model := models.StagingModel{
		Source:     source,
		Type:       entityType,
		SourceGuid: sourceGuid,
		Payload:    payload,
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_guid"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "type", "updated_at"}),
		}).
		Create(&model).Error; err != nil {
		return nil, err
	}

	return r.FindBySourceGuid(ctx, sourceGuid)
}

// UpsertPlaceholder creates the row with the empty placeholder payload when
// no record exists yet; an existing payload is left untouched.
func (r *GormStagingRepository) UpsertPlaceholder(ctx context.Context, source, entityType, sourceGuid string) (*pipeline.StagingRecord, error) {
	model := models.StagingModel{
		Source:     source,
		Type:       entityType,
		SourceGuid: sourceGuid,
		Payload:    pipeline.EmptyPayload,
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_guid"}},
			DoNothing: true,
		}).
		Create(&model).Error; err != nil {
		return nil, err
	}

	return r.FindBySourceGuid(ctx, sourceGuid)
}

// FindBySourceGuid returns the record for sourceGuid
func (r *GormStagingRepository) FindBySourceGuid(ctx context.Context, sourceGuid string) (*pipeline.StagingRecord, error) {
	var model models.StagingModel
	if err := r.db.WithContext(ctx).First(&model, "source_guid = ?", sourceGuid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pipeline.ErrStagingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormStagingRepository implements StagingRepository
var _ pipeline.StagingRepository = (*GormStagingRepository)(nil)
