package imports

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/finetunelab/platform/internal/core/domain"
	"github.com/finetunelab/platform/internal/core/services/export"
	"github.com/finetunelab/platform/internal/core/services/filters"
	"github.com/finetunelab/platform/internal/core/services/lineage"
	apperrors "github.com/finetunelab/platform/internal/pkg/errors"
)

// CallSource resolves the logged calls selected for import
type CallSource interface {
	ForExport(ctx context.Context, projectID uuid.UUID, clauses []filters.Clause, selection filters.Selection) ([]domain.LoggedCall, error)
}

// EntryCreator persists a batch of new dataset entries
type EntryCreator interface {
	CreateEntries(ctx context.Context, datasetID uuid.UUID, rows []lineage.NewEntry, provenance string, authoringUserID *uuid.UUID) ([]domain.DatasetEntry, error)
}

// LoggedCallImporter turns selected request-log calls into dataset entries
type LoggedCallImporter struct {
	calls   CallSource
	entries EntryCreator
	logger  *slog.Logger
}

// NewLoggedCallImporter creates a new logged-call importer
func NewLoggedCallImporter(calls CallSource, entries EntryCreator, logger *slog.Logger) *LoggedCallImporter {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoggedCallImporter{
		calls:   calls,
		entries: entries,
		logger:  logger,
	}
}

// ImportParams selects which logged calls become dataset entries
type ImportParams struct {
	ProjectID        uuid.UUID
	DatasetID        uuid.UUID
	Clauses          []filters.Clause
	Selection        filters.Selection
	TestSplitPercent int
	AuthoringUserID  *uuid.UUID
}

// ImportResult summarizes one logged-call import
type ImportResult struct {
	ImportedCount int `json:"imported_count"`
	SkippedCount  int `json:"skipped_count"`
	TestCount     int `json:"test_count"`
	TrainCount    int `json:"train_count"`
}

// Import resolves the selected calls, keeps those with a usable recorded
// request and completion, samples them into TEST and TRAIN splits by the
// requested percentage, and inserts them as new entries with provenance
// REQUEST_LOG. Calls without a usable payload are skipped and counted.
func (i *LoggedCallImporter) Import(ctx context.Context, params ImportParams) (*ImportResult, error) {
	if params.TestSplitPercent < 0 || params.TestSplitPercent > 100 {
		return nil, apperrors.BadRequest("test split percent must be between 0 and 100")
	}

	calls, err := i.calls.ForExport(ctx, params.ProjectID, params.Clauses, params.Selection)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	rows := make([]lineage.NewEntry, 0, len(calls))
	for _, call := range calls {
		row, ok := export.RowFromLoggedCall(call)
		if !ok {
			result.SkippedCount++
			continue
		}
		rows = append(rows, lineage.NewEntry{
			Messages:       datatypes.JSON(row.Input.Messages),
			Functions:      datatypes.JSON(row.Input.Functions),
			FunctionCall:   datatypes.JSON(row.Input.FunctionCall),
			Tools:          datatypes.JSON(row.Input.Tools),
			ToolChoice:     datatypes.JSON(row.Input.ToolChoice),
			ResponseFormat: datatypes.JSON(row.Input.ResponseFormat),
			Output:         datatypes.JSON(row.Output),
			Split:          domain.SplitTrain,
		})
	}

	// Same partition rule as the exporter: the leading slice of the
	// selection order becomes the test split, rounded down.
	result.TestCount = len(rows) * params.TestSplitPercent / 100
	for idx := 0; idx < result.TestCount; idx++ {
		rows[idx].Split = domain.SplitTest
	}
	result.TrainCount = len(rows) - result.TestCount
	result.ImportedCount = len(rows)

	if len(rows) > 0 {
		if _, err := i.entries.CreateEntries(ctx, params.DatasetID, rows, domain.ProvenanceRequestLog, params.AuthoringUserID); err != nil {
			return nil, err
		}
	}

	i.logger.Info("imported logged calls into dataset",
		slog.String("dataset_id", params.DatasetID.String()),
		slog.Int("imported", result.ImportedCount),
		slog.Int("skipped", result.SkippedCount),
		slog.Int("test", result.TestCount),
	)

	return result, nil
}
