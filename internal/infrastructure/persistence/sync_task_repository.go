package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
)

// GormSyncTaskRepository implements SyncTaskRepository using GORM
type GormSyncTaskRepository struct {
	db *gorm.DB
}

// NewGormSyncTaskRepository creates a new GormSyncTaskRepository
func NewGormSyncTaskRepository(db *gorm.DB) *GormSyncTaskRepository {
	return &GormSyncTaskRepository{db: db}
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// Upsert creates or updates the task identified by (source, sourceGuid, type)
func (r *GormSyncTaskRepository) Upsert(ctx context.Context, u pipeline.TaskUpsert) (*pipeline.SyncTask, error) {
	model := models.SyncTaskModel{
		Source:     u.Source,
		SourceGuid: u.SourceGuid,
		Type:       u.Type,
		Status:     string(u.Status),
		Attempts:   u.Attempts,
		LastError:  u.LastError,
		EventType:  u.EventType,
		StagingID:  u.StagingID,
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "source"}, {Name: "source_guid"}, {Name: "type"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "attempts", "last_error", "event_type", "staging_id", "updated_at",
			}),
		}).
		Create(&model).Error; err != nil {
		return nil, err
	}

	return r.findByKey(ctx, u.Source, u.SourceGuid, u.Type)
}

// UpdateStatus unconditionally sets status and last error for a task
func (r *GormSyncTaskRepository) UpdateStatus(ctx context.Context, id uint, status pipeline.TaskStatus, lastError string) error {
	result := r.db.WithContext(ctx).
		Model(&models.SyncTaskModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"last_error": lastError,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pipeline.ErrTaskNotFound
	}
	return nil
}

// TransitionStatus sets status only when the task is still in the expected
// prior state, so concurrent sweeps cannot both claim the same task
func (r *GormSyncTaskRepository) TransitionStatus(ctx context.Context, id uint, from, to pipeline.TaskStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SyncTaskModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ResetForRetry moves a task to the given status with attempts zeroed and the
// last error cleared
func (r *GormSyncTaskRepository) ResetForRetry(ctx context.Context, id uint, status pipeline.TaskStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.SyncTaskModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"attempts":   0,
			"last_error": "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pipeline.ErrTaskNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// FindByID returns the task with the given id
func (r *GormSyncTaskRepository) FindByID(ctx context.Context, id uint) (*pipeline.SyncTask, error) {
	var model models.SyncTaskModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pipeline.ErrTaskNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormSyncTaskRepository) findByKey(ctx context.Context, source, sourceGuid, entityType string) (*pipeline.SyncTask, error) {
	var model models.SyncTaskModel
	if err := r.db.WithContext(ctx).
		First(&model, "source = ? AND source_guid = ? AND type = ?", source, sourceGuid, entityType).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pipeline.ErrTaskNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// readyRow carries a task row joined with its staged payload
type readyRow struct {
	models.SyncTaskModel
	Payload string
}

// FindReady returns up to limit READY tasks, newest first, each joined with
// its staged payload
func (r *GormSyncTaskRepository) FindReady(ctx context.Context, limit int) ([]pipeline.ReadyTask, error) {
	var rows []readyRow
	if err := r.db.WithContext(ctx).
		Table("sync_tasks").
		Select("sync_tasks.*, staging_records.payload AS payload").
		Joins("LEFT JOIN staging_records ON staging_records.id = sync_tasks.staging_id").
		Where("sync_tasks.status = ?", string(pipeline.TaskStatusReady)).
		Order("sync_tasks.created_at DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	tasks := make([]pipeline.ReadyTask, len(rows))
	for i, row := range rows {
		tasks[i] = pipeline.ReadyTask{
			Task:    *row.SyncTaskModel.ToDomain(),
			Payload: row.Payload,
		}
	}
	return tasks, nil
}

// Recent returns the most recently updated tasks, up to limit
func (r *GormSyncTaskRepository) Recent(ctx context.Context, limit int) ([]pipeline.SyncTask, error) {
	var taskModels []models.SyncTaskModel
	if err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Find(&taskModels).Error; err != nil {
		return nil, err
	}

	tasks := make([]pipeline.SyncTask, len(taskModels))
	for i, model := range taskModels {
		tasks[i] = *model.ToDomain()
	}
	return tasks, nil
}

// ---------------------------------------------------------------------------
// Aggregates
// ---------------------------------------------------------------------------

// Counts returns aggregate totals for the dashboard
func (r *GormSyncTaskRepository) Counts(ctx context.Context, now time.Time) (*pipeline.TaskCounts, error) {
	counts := &pipeline.TaskCounts{}
	dayAgo := now.Add(-24 * time.Hour)

	if err := r.countWhere(ctx, &counts.Processing, "status = ?", string(pipeline.TaskStatusProcessing)); err != nil {
		return nil, err
	}
	if err := r.countWhere(ctx, &counts.Ready, "status = ?", string(pipeline.TaskStatusReady)); err != nil {
		return nil, err
	}
	if err := r.countWhere(ctx, &counts.Failed24h, "status IN ? AND updated_at >= ?",
		[]string{string(pipeline.TaskStatusFailed), string(pipeline.TaskStatusSyncFailed)}, dayAgo); err != nil {
		return nil, err
	}
	if err := r.countWhere(ctx, &counts.Done24h, "status = ? AND updated_at >= ?",
		string(pipeline.TaskStatusDone), dayAgo); err != nil {
		return nil, err
	}

	return counts, nil
}

// CountByStatusSince counts tasks in status updated at or after since
func (r *GormSyncTaskRepository) CountByStatusSince(ctx context.Context, status pipeline.TaskStatus, since time.Time) (int64, error) {
	var count int64
	if err := r.countWhere(ctx, &count, "status = ? AND updated_at >= ?", string(status), since); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormSyncTaskRepository) countWhere(ctx context.Context, out *int64, query string, args ...any) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncTaskModel{}).
		Where(query, args...).
		Count(out).Error
}

// Ensure GormSyncTaskRepository implements SyncTaskRepository
var _ pipeline.SyncTaskRepository = (*GormSyncTaskRepository)(nil)
