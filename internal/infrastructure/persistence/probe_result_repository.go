package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
)

// GormProbeResultRepository implements ProbeResultRepository using GORM
type GormProbeResultRepository struct {
	db *gorm.DB
}

// NewGormProbeResultRepository creates a new GormProbeResultRepository
func NewGormProbeResultRepository(db *gorm.DB) *GormProbeResultRepository {
	return &GormProbeResultRepository{db: db}
}

// Record appends one probe result
func (r *GormProbeResultRepository) Record(ctx context.Context, result *pipeline.ProbeResult) error {
	model := models.ProbeResultModel{
		Resource:       result.Resource,
		OK:             result.OK,
		Status:         result.Status,
		Message:        result.Message,
		ResponseTimeMs: result.ResponseTimeMs,
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}

	result.ID = model.ID
	result.CreatedAt = model.CreatedAt
	return nil
}

// RecentByResource returns the newest probe results for a resource, up to
// limit, newest first
func (r *GormProbeResultRepository) RecentByResource(ctx context.Context, resource string, limit int) ([]pipeline.ProbeResult, error) {
	var resultModels []models.ProbeResultModel
	if err := r.db.WithContext(ctx).
		Where("resource = ?", resource).
		Order("created_at DESC").
		Limit(limit).
		Find(&resultModels).Error; err != nil {
		return nil, err
	}

	results := make([]pipeline.ProbeResult, len(resultModels))
	for i, model := range resultModels {
		results[i] = *model.ToDomain()
	}
	return results, nil
}

// Ensure GormProbeResultRepository implements ProbeResultRepository
var _ pipeline.ProbeResultRepository = (*GormProbeResultRepository)(nil)
