package repositories

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finetunelab/platform/internal/core/domain"
	"github.com/finetunelab/platform/internal/core/services/filters"
	apperrors "github.com/finetunelab/platform/internal/pkg/errors"
)

// DatasetEntryRepository loads and updates dataset entry versions
type DatasetEntryRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewDatasetEntryRepository creates a new repository instance
func NewDatasetEntryRepository(db *gorm.DB, logger *slog.Logger) *DatasetEntryRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &DatasetEntryRepository{
		db:     db,
		logger: logger,
	}
}

// GetEntry loads one entry version by row id
func (r *DatasetEntryRepository) GetEntry(ctx context.Context, id uuid.UUID) (*domain.DatasetEntry, error) {
	var entry domain.DatasetEntry
	err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("dataset entry not found")
		}
		return nil, apperrors.DatabaseError(err)
	}
	return &entry, nil
}

// LiveEntryByPersistentID loads the single non-outdated version of a
// logical entry
func (r *DatasetEntryRepository) LiveEntryByPersistentID(ctx context.Context, persistentID uuid.UUID) (*domain.DatasetEntry, error) {
	var entry domain.DatasetEntry
	err := r.db.WithContext(ctx).
		Where("persistent_id = ? AND outdated = ?", persistentID, false).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("dataset entry not found")
		}
		return nil, apperrors.DatabaseError(err)
	}
	return &entry, nil
}

// UpdateTokenCounts stores recomputed token counts for one entry version
func (r *DatasetEntryRepository) UpdateTokenCounts(ctx context.Context, id uuid.UUID, inputTokens, outputTokens int) error {
	err := r.db.WithContext(ctx).
		Model(&domain.DatasetEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
		}).Error
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// List returns one page of live entries matching the filter clauses,
// ordered by sortKey so versions keep their predecessor's position, plus
// the total match count from the same compiled query
func (r *DatasetEntryRepository) List(
	ctx context.Context,
	datasetID uuid.UUID,
	clauses []filters.Clause,
	limit, offset int,
) ([]domain.DatasetEntry, int64, error) {
	compiled := func() *gorm.DB {
		return filters.Compile(
			filters.BaseDatasetEntryQuery(r.db.WithContext(ctx), datasetID),
			filters.DatasetEntrySchema(),
			clauses,
		)
	}

	var total int64
	if err := compiled().Distinct("dataset_entries.id").Count(&total).Error; err != nil {
		return nil, 0, apperrors.DatabaseError(err)
	}

	var entries []domain.DatasetEntry
	err := r.db.WithContext(ctx).
		Model(&domain.DatasetEntry{}).
		Where("id IN (?)", compiled().Select("dataset_entries.id")).
		Order("sort_key ASC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, apperrors.DatabaseError(err)
	}

	return entries, total, nil
}

// LiveBySplit returns all live entries of a dataset in one split
func (r *DatasetEntryRepository) LiveBySplit(ctx context.Context, datasetID uuid.UUID, split string) ([]domain.DatasetEntry, error) {
	var entries []domain.DatasetEntry
	err := r.db.WithContext(ctx).
		Where("dataset_id = ? AND outdated = ? AND split = ?", datasetID, false, split).
		Order("sort_key ASC").
		Find(&entries).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return entries, nil
}
