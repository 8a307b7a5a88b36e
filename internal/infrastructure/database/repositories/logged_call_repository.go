package repositories

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finetunelab/platform/internal/core/domain"
	"github.com/finetunelab/platform/internal/core/services/filters"
	apperrors "github.com/finetunelab/platform/internal/pkg/errors"
)

// LoggedCallRepository queries logged calls through the filter compiler
type LoggedCallRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewLoggedCallRepository creates a new repository instance
func NewLoggedCallRepository(db *gorm.DB, logger *slog.Logger) *LoggedCallRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoggedCallRepository{
		db:     db,
		logger: logger,
	}
}

func (r *LoggedCallRepository) compiled(ctx context.Context, projectID uuid.UUID, clauses []filters.Clause) *gorm.DB {
	return filters.Compile(
		filters.BaseLoggedCallQuery(r.db.WithContext(ctx), projectID),
		filters.LoggedCallSchema(),
		clauses,
	)
}

// List returns one page of matching calls plus the total match count.
// Count and page run against the same compiled filter query, so they can
// never disagree about what matches.
func (r *LoggedCallRepository) List(
	ctx context.Context,
	projectID uuid.UUID,
	clauses []filters.Clause,
	limit, offset int,
) ([]domain.LoggedCall, int64, error) {
	var total int64
	if err := r.compiled(ctx, projectID, clauses).
		Distinct("logged_calls.id").
		Count(&total).Error; err != nil {
		return nil, 0, apperrors.DatabaseError(err)
	}

	matchingIDs := r.compiled(ctx, projectID, clauses).
		Select("logged_calls.id")

	var calls []domain.LoggedCall
	err := r.db.WithContext(ctx).
		Model(&domain.LoggedCall{}).
		Where("id IN (?)", matchingIDs).
		Order("requested_at DESC").
		Limit(limit).
		Offset(offset).
		Preload("ModelResponse").
		Preload("Tags").
		Find(&calls).Error
	if err != nil {
		return nil, 0, apperrors.DatabaseError(err)
	}

	return calls, total, nil
}

// ForExport returns the calls selected for dataset export: matching the
// filter clauses and the user's selection, restricted to calls with a
// successful response
func (r *LoggedCallRepository) ForExport(
	ctx context.Context,
	projectID uuid.UUID,
	clauses []filters.Clause,
	selection filters.Selection,
) ([]domain.LoggedCall, error) {
	query := filters.RequireSuccessfulResponse(r.compiled(ctx, projectID, clauses))
	query = filters.ApplySelection(query, "logged_calls.id", selection)

	var calls []domain.LoggedCall
	err := r.db.WithContext(ctx).
		Model(&domain.LoggedCall{}).
		Where("id IN (?)", query.Select("logged_calls.id")).
		Order("requested_at ASC").
		Preload("ModelResponse").
		Find(&calls).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	return calls, nil
}

// TagNames returns the distinct tag names in use for a project, which
// form the dynamic filter fields offered to clients
func (r *LoggedCallRepository) TagNames(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&domain.LoggedCallTag{}).
		Where("project_id = ?", projectID).
		Distinct("name").
		Order("name ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return names, nil
}
