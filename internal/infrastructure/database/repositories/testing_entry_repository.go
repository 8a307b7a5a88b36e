package repositories

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finetunelab/platform/internal/core/domain"
	apperrors "github.com/finetunelab/platform/internal/pkg/errors"
)

// TestingEntryRepository persists per-model generated outputs for TEST
// entries. Writes are upserts on the (model, entry) pair: generation
// jobs are retried and must stay idempotent.
type TestingEntryRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewTestingEntryRepository creates a new repository instance
func NewTestingEntryRepository(db *gorm.DB, logger *slog.Logger) *TestingEntryRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &TestingEntryRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertOutput stores a successful generation, clearing any earlier error
func (r *TestingEntryRepository) UpsertOutput(ctx context.Context, modelID string, entryID uuid.UUID, cacheKey string, output json.RawMessage) error {
	row := domain.FineTuneTestingEntry{
		ID:             uuid.New(),
		ModelID:        modelID,
		DatasetEntryID: entryID,
		CacheKey:       cacheKey,
		Output:         datatypes.JSON(output),
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "model_id"}, {Name: "dataset_entry_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"cache_key":     cacheKey,
				"output":        datatypes.JSON(output),
				"error_message": nil,
			}),
		}).
		Create(&row).Error
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// SetError records a permanent generation failure
func (r *TestingEntryRepository) SetError(ctx context.Context, modelID string, entryID uuid.UUID, message string) error {
	row := domain.FineTuneTestingEntry{
		ID:             uuid.New(),
		ModelID:        modelID,
		DatasetEntryID: entryID,
		ErrorMessage:   &message,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "model_id"}, {Name: "dataset_entry_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"error_message": message,
			}),
		}).
		Create(&row).Error
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// ForEntries loads one model's outputs for a set of entry versions
func (r *TestingEntryRepository) ForEntries(ctx context.Context, modelID string, entryIDs []uuid.UUID) ([]domain.FineTuneTestingEntry, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}

	var rows []domain.FineTuneTestingEntry
	err := r.db.WithContext(ctx).
		Where("model_id = ? AND dataset_entry_id IN ?", modelID, entryIDs).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return rows, nil
}
