package evals

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/finetunelab/platform/internal/core/domain"
	"github.com/finetunelab/platform/internal/core/services/filters"
)

// EvalStats aggregates one model's results for one evaluation definition
type EvalStats struct {
	DatasetEvalID uuid.UUID `json:"dataset_eval_id"`
	EvalName      string    `json:"eval_name"`
	AverageScore  float64   `json:"average_score"`
	TotalWins     int       `json:"total_wins"`
	TotalTies     int       `json:"total_ties"`
	TotalLosses   int       `json:"total_losses"`
	PendingCount  int       `json:"pending_count"`
	CompleteCount int       `json:"complete_count"`
}

// ModelPerformance is one model's aggregated standing across every
// evaluation definition of a dataset. Evals with zero matching rows are
// omitted rather than reported with misleading zero scores.
type ModelPerformance struct {
	ModelID          string                  `json:"model_id"`
	EvalPerformances map[uuid.UUID]EvalStats `json:"eval_performances"`
	ResultsPending   bool                    `json:"results_pending"`
}

// Aggregator computes per-model evaluation statistics. The number of
// evaluation definitions is dynamic, so it runs one grouped query per
// eval on a bounded worker pool and merges the rows in memory instead of
// assembling N joins into a single statement.
type Aggregator struct {
	db            *gorm.DB
	logger        *slog.Logger
	maxConcurrent int
}

// NewAggregator creates a new evaluation aggregator
func NewAggregator(db *gorm.DB, maxConcurrent int, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrent < 1 {
		maxConcurrent = 4
	}

	return &Aggregator{
		db:            db,
		logger:        logger,
		maxConcurrent: maxConcurrent,
	}
}

// ModelPerformance aggregates win/tie/loss/pending/complete counts and
// mean scores for one candidate model across all evaluation definitions
// of a dataset, restricted to entries matching the filter clauses and to
// comparisons against the currently visible model set.
func (a *Aggregator) ModelPerformance(
	ctx context.Context,
	datasetID uuid.UUID,
	modelID string,
	clauses []filters.Clause,
	visibleModelIDs []string,
) (*ModelPerformance, error) {
	var evalRows []domain.DatasetEval
	if err := a.db.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Find(&evalRows).Error; err != nil {
		return nil, fmt.Errorf("failed to load dataset evals: %w", err)
	}

	perf := &ModelPerformance{
		ModelID:          modelID,
		EvalPerformances: make(map[uuid.UUID]EvalStats, len(evalRows)),
	}

	// The filter-compiled entry subquery is rebuilt per goroutine: GORM
	// statement builders are not safe for concurrent reuse.
	entrySubquery := func() *gorm.DB {
		return filters.Compile(
			filters.BaseDatasetEntryQuery(a.db.WithContext(ctx), datasetID),
			filters.DatasetEntrySchema(),
			clauses,
		).Select("dataset_entries.id")
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.maxConcurrent)

	for _, eval := range evalRows {
		eval := eval
		group.Go(func() error {
			stats, err := a.evalStats(groupCtx, eval, modelID, entrySubquery(), visibleModelIDs)
			if err != nil {
				return fmt.Errorf("failed to aggregate eval %s: %w", eval.ID, err)
			}
			if stats == nil {
				return nil
			}

			mu.Lock()
			perf.EvalPerformances[eval.ID] = *stats
			if stats.PendingCount > 0 {
				perf.ResultsPending = true
			}
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	a.logger.Debug("aggregated model performance",
		slog.String("dataset_id", datasetID.String()),
		slog.String("model_id", modelID),
		slog.Int("eval_count", len(perf.EvalPerformances)),
		slog.Bool("results_pending", perf.ResultsPending),
	)

	return perf, nil
}

type evalStatsRow struct {
	AverageScore  sql.NullFloat64
	TotalWins     int
	TotalTies     int
	TotalLosses   int
	PendingCount  int
	CompleteCount int
	TotalCount    int
}

// evalStats runs the grouped aggregation for one evaluation definition.
// Returns nil when the model has no matching result rows for this eval.
func (a *Aggregator) evalStats(
	ctx context.Context,
	eval domain.DatasetEval,
	modelID string,
	entrySubquery *gorm.DB,
	visibleModelIDs []string,
) (*EvalStats, error) {
	query := a.db.WithContext(ctx).
		Table("dataset_eval_results AS der").
		Joins("JOIN dataset_eval_dataset_entries AS dede ON dede.id = der.dataset_eval_dataset_entry_id").
		Joins("JOIN dataset_eval_output_sources AS deos ON deos.id = der.dataset_eval_output_source_id").
		Where("dede.dataset_eval_id = ?", eval.ID).
		Where("deos.model_id = ?", modelID).
		Where("dede.dataset_entry_id IN (?)", entrySubquery)

	// Field-comparison results have no comparison source; head-to-head
	// results only count against currently visible comparison models.
	if len(visibleModelIDs) > 0 {
		comparisonSources := a.db.
			Table("dataset_eval_output_sources").
			Select("id").
			Where("dataset_eval_id = ?", eval.ID).
			Where("model_id IN ?", visibleModelIDs)
		query = query.Where("der.comparison_output_source_id IS NULL OR der.comparison_output_source_id IN (?)", comparisonSources)
	} else {
		query = query.Where("der.comparison_output_source_id IS NULL")
	}

	var row evalStatsRow
	err := query.Select(`
		AVG(der.score) AS average_score,
		COUNT(*) FILTER (WHERE der.score = 1) AS total_wins,
		COUNT(*) FILTER (WHERE der.score = 0.5) AS total_ties,
		COUNT(*) FILTER (WHERE der.score = 0) AS total_losses,
		COUNT(*) FILTER (WHERE der.status IN ('PENDING','IN_PROGRESS')) AS pending_count,
		COUNT(*) FILTER (WHERE der.status IN ('COMPLETE','ERROR')) AS complete_count,
		COUNT(*) AS total_count`).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	if row.TotalCount == 0 {
		return nil, nil
	}

	stats := &EvalStats{
		DatasetEvalID: eval.ID,
		EvalName:      eval.Name,
		TotalWins:     row.TotalWins,
		TotalTies:     row.TotalTies,
		TotalLosses:   row.TotalLosses,
		PendingCount:  row.PendingCount,
		CompleteCount: row.CompleteCount,
	}
	if row.AverageScore.Valid {
		stats.AverageScore = row.AverageScore.Float64
	}
	return stats, nil
}
