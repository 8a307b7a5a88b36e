package repositories

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finetunelab/platform/internal/core/domain"
	apperrors "github.com/finetunelab/platform/internal/pkg/errors"
)

// RelabelRepository tracks relabel batches and their per-entry status
type RelabelRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRelabelRepository creates a new repository instance
func NewRelabelRepository(db *gorm.DB, logger *slog.Logger) *RelabelRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &RelabelRepository{
		db:     db,
		logger: logger,
	}
}

// SetStatus moves one request through its lifecycle. The row is created
// on the fly if batch creation raced the worker.
func (r *RelabelRepository) SetStatus(ctx context.Context, batchID, persistentID uuid.UUID, status string, errorMessage *string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.RelabelRequest{}).
		Where("batch_id = ? AND persistent_id = ?", batchID, persistentID).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMessage,
		})
	if result.Error != nil {
		return apperrors.DatabaseError(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	request := domain.RelabelRequest{
		ID:           uuid.New(),
		BatchID:      batchID,
		PersistentID: persistentID,
		Status:       status,
		ErrorMessage: errorMessage,
	}
	if err := r.db.WithContext(ctx).Create(&request).Error; err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// BatchStatus returns the per-status request counts for a batch
func (r *RelabelRepository) BatchStatus(ctx context.Context, batchID uuid.UUID) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&domain.RelabelRequest{}).
		Select("status, COUNT(*) as count").
		Where("batch_id = ?", batchID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
