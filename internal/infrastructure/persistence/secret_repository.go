package persistence

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
	"github.com/ordersync/backend/internal/infrastructure/secrets"
)

// GormSecretStore implements SecretStore on the secrets table, encrypting
// values at rest
type GormSecretStore struct {
	db        *gorm.DB
	encryptor *secrets.Encryptor
	logger    *zap.Logger
}

// NewGormSecretStore creates a new GormSecretStore
func NewGormSecretStore(db *gorm.DB, encryptor *secrets.Encryptor, logger *zap.Logger) *GormSecretStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormSecretStore{db: db, encryptor: encryptor, logger: logger.Named("secrets")}
}

// Get returns the decrypted value for key, or "" when unset. A value that no
// longer decrypts (rotated passphrase) reads as unset rather than failing the
// caller.
func (s *GormSecretStore) Get(ctx context.Context, key string) (string, error) {
	var model models.SecretModel
	if err := s.db.WithContext(ctx).First(&model, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}

	value, err := s.encryptor.Decrypt(model.Value)
	if err != nil {
		s.logger.Error("failed to decrypt stored secret", zap.String("key", key), zap.Error(err))
		return "", nil
	}
	return value, nil
}

// Set stores value under key, overwriting any previous value
func (s *GormSecretStore) Set(ctx context.Context, key, value string) error {
	encrypted, err := s.encryptor.Encrypt(value)
	if err != nil {
		return err
	}

	model := models.SecretModel{Key: key, Value: encrypted}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&model).Error
}

// Has reports whether a value is stored under key
func (s *GormSecretStore) Has(ctx context.Context, key string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.SecretModel{}).
		Where("key = ?", key).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Ensure GormSecretStore implements SecretStore
var _ pipeline.SecretStore = (*GormSecretStore)(nil)
