package models

import (
	"time"

	"github.com/ordersync/backend/internal/domain/pipeline"
)

// StagingModel is the persistence model for staged source records
type StagingModel struct {
	ID         uint      `gorm:"primaryKey"`
	Source     string    `gorm:"size:32;not null"`
	Type       string    `gorm:"size:64;not null"`
	SourceGuid string    `gorm:"size:64;not null;uniqueIndex"`
	Payload    string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName specifies the table name
func (StagingModel) TableName() string {
	return "staging_records"
}

// ToDomain converts StagingModel to the domain StagingRecord
func (m *StagingModel) ToDomain() *pipeline.StagingRecord {
	return &pipeline.StagingRecord{
		ID:         m.ID,
		Source:     m.Source,
		Type:       m.Type,
		SourceGuid: m.SourceGuid,
		Payload:    m.Payload,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// SyncTaskModel is the persistence model for sync tasks
type SyncTaskModel struct {
	ID         uint      `gorm:"primaryKey"`
	Source     string    `gorm:"size:32;not null;uniqueIndex:idx_sync_tasks_key,priority:1"`
	SourceGuid string    `gorm:"size:64;not null;uniqueIndex:idx_sync_tasks_key,priority:2"`
	Type       string    `gorm:"size:64;not null;uniqueIndex:idx_sync_tasks_key,priority:3"`
	Status     string    `gorm:"size:32;not null;index"`
	Attempts   int       `gorm:"not null;default:0"`
	LastError  string    `gorm:"type:text"`
	EventType  string    `gorm:"size:64"`
	StagingID  uint      `gorm:"index"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null;index"`
}

// TableName specifies the table name
func (SyncTaskModel) TableName() string {
	return "sync_tasks"
}

// ToDomain converts SyncTaskModel to the domain SyncTask
func (m *SyncTaskModel) ToDomain() *pipeline.SyncTask {
	return &pipeline.SyncTask{
		ID:         m.ID,
		Source:     m.Source,
		SourceGuid: m.SourceGuid,
		Type:       m.Type,
		Status:     pipeline.TaskStatus(m.Status),
		Attempts:   m.Attempts,
		LastError:  m.LastError,
		EventType:  m.EventType,
		StagingID:  m.StagingID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// IdentifierMappingModel is the persistence model for cross-system
// identifier mappings
type IdentifierMappingModel struct {
	ID           uint      `gorm:"primaryKey"`
	Source       string    `gorm:"size:32;not null;uniqueIndex:idx_identifier_mappings_key,priority:1"`
	SourceGuid   string    `gorm:"size:64;not null;uniqueIndex:idx_identifier_mappings_key,priority:2"`
	Target       string    `gorm:"size:32;not null;uniqueIndex:idx_identifier_mappings_key,priority:3"`
	TargetID     string    `gorm:"size:64;not null"`
	LastSyncedAt time.Time `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName specifies the table name
func (IdentifierMappingModel) TableName() string {
	return "identifier_mappings"
}

// ToDomain converts IdentifierMappingModel to the domain IdentifierMapping
func (m *IdentifierMappingModel) ToDomain() *pipeline.IdentifierMapping {
	return &pipeline.IdentifierMapping{
		ID:           m.ID,
		Source:       m.Source,
		SourceGuid:   m.SourceGuid,
		Target:       m.Target,
		TargetID:     m.TargetID,
		LastSyncedAt: m.LastSyncedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// ProbeResultModel is the persistence model for health probe results
type ProbeResultModel struct {
	ID             uint      `gorm:"primaryKey"`
	Resource       string    `gorm:"size:64;not null;index:idx_probe_results_resource"`
	OK             bool      `gorm:"column:ok;not null"`
	Status         int       `gorm:"not null"`
	Message        string    `gorm:"type:text"`
	ResponseTimeMs int64     `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

// TableName specifies the table name
func (ProbeResultModel) TableName() string {
	return "probe_results"
}

// ToDomain converts ProbeResultModel to the domain ProbeResult
func (m *ProbeResultModel) ToDomain() *pipeline.ProbeResult {
	return &pipeline.ProbeResult{
		ID:             m.ID,
		Resource:       m.Resource,
		OK:             m.OK,
		Status:         m.Status,
		Message:        m.Message,
		ResponseTimeMs: m.ResponseTimeMs,
		CreatedAt:      m.CreatedAt,
	}
}

// SecretModel is the persistence model for encrypted operator credentials
type SecretModel struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"size:64;not null;uniqueIndex"`
	Value     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name
func (SecretModel) TableName() string {
	return "secrets"
}
