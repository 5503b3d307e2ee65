package persistence

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
)

// Migrate creates or updates the schema for every pipeline table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.StagingModel{},
		&models.SyncTaskModel{},
		&models.IdentifierMappingModel{},
		&models.ProbeResultModel{},
		&models.SecretModel{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
