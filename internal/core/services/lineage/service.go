package lineage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/finetunelab/platform/internal/core/domain"
	apperrors "github.com/finetunelab/platform/internal/pkg/errors"
)

// Enqueuer hands background units of work to the job orchestrator.
// Enqueue is fire-and-forget: mutations return before the jobs complete.
type Enqueuer interface {
	EnqueueGenerateTestEntry(ctx context.Context, modelID string, datasetEntryID uuid.UUID, numPreviousTries int) error
	EnqueueRelabelEntry(ctx context.Context, batchID, persistentID uuid.UUID, model string) error
	EnqueueCountTokens(ctx context.Context, datasetEntryID uuid.UUID) error
	EnqueueRecomputeMatches(ctx context.Context, datasetID uuid.UUID, datasetEntryIDs []uuid.UUID) error
}

// Service maintains the append-only version chain for dataset entries
// and keeps pruning-rule matches in step with entry mutations
type Service struct {
	db     *gorm.DB
	queue  Enqueuer
	logger *slog.Logger
}

// NewService creates a new lineage service
func NewService(db *gorm.DB, queue Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		db:     db,
		queue:  queue,
		logger: logger,
	}
}

// EntryUpdate carries the new content for a superseding entry version.
// Nil JSON fields keep the previous version's value.
type EntryUpdate struct {
	Messages        datatypes.JSON
	Functions       datatypes.JSON
	FunctionCall    datatypes.JSON
	Tools           datatypes.JSON
	ToolChoice      datatypes.JSON
	ResponseFormat  datatypes.JSON
	Output          datatypes.JSON
	Split           string
	Provenance      string
	AuthoringUserID *uuid.UUID
}

// SupersedeEntry creates a new version of an entry: the current live row
// is marked outdated and a fresh row is inserted carrying the same
// persistentId and sortKey. The outdated flip is conditional on the row
// still being live, so two concurrent editors cannot both supersede the
// same version; the loser gets a CONFLICT error.
func (s *Service) SupersedeEntry(ctx context.Context, entryID uuid.UUID, update EntryUpdate) (*domain.DatasetEntry, error) {
	if update.Provenance == "" {
		return nil, apperrors.BadRequest("provenance is required")
	}
	if update.Split != "" && !domain.IsValidSplit(update.Split) {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid split: %s", update.Split))
	}

	var next domain.DatasetEntry

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev domain.DatasetEntry
		if err := tx.First(&prev, "id = ?", entryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("dataset entry not found")
			}
			return apperrors.DatabaseError(err)
		}

		result := tx.Model(&domain.DatasetEntry{}).
			Where("id = ? AND outdated = ?", entryID, false).
			Update("outdated", true)
		if result.Error != nil {
			return apperrors.DatabaseError(result.Error)
		}
		if result.RowsAffected != 1 {
			return apperrors.Conflict("entry version is no longer live")
		}

		next = nextVersion(prev, update)
		if err := tx.Create(&next).Error; err != nil {
			return apperrors.DatabaseError(err)
		}

		// A new TEST version keeps participating in the evals its
		// predecessor was assigned to.
		if next.Split == domain.SplitTest {
			if err := copyEvalAssignments(tx, prev.ID, next.ID); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.RecomputeMatchesForEntry(ctx, &next); err != nil {
		s.logger.Error("failed to recompute pruning matches after supersede",
			slog.String("entry_id", next.ID.String()),
			slog.Any("error", err))
	}

	if err := s.queue.EnqueueCountTokens(ctx, next.ID); err != nil {
		s.logger.Error("failed to enqueue token count",
			slog.String("entry_id", next.ID.String()),
			slog.Any("error", err))
	}

	if next.Split == domain.SplitTest {
		if err := s.FanOutTestGeneration(ctx, next.DatasetID, next.ID); err != nil {
			s.logger.Error("failed to fan out test generation",
				slog.String("entry_id", next.ID.String()),
				slog.Any("error", err))
		}
	}

	s.logger.Info("entry superseded",
		slog.String("persistent_id", next.PersistentID.String()),
		slog.String("previous_id", entryID.String()),
		slog.String("new_id", next.ID.String()),
		slog.String("provenance", next.Provenance),
	)

	return &next, nil
}

// nextVersion builds the replacement row: same persistentId and sortKey
// so ordering position survives edits, fresh id, updated content
func nextVersion(prev domain.DatasetEntry, update EntryUpdate) domain.DatasetEntry {
	next := domain.DatasetEntry{
		ID:              uuid.New(),
		DatasetID:       prev.DatasetID,
		Messages:        prev.Messages,
		Functions:       prev.Functions,
		FunctionCall:    prev.FunctionCall,
		Tools:           prev.Tools,
		ToolChoice:      prev.ToolChoice,
		ResponseFormat:  prev.ResponseFormat,
		Output:          prev.Output,
		Split:           prev.Split,
		Outdated:        false,
		SortKey:         prev.SortKey,
		PersistentID:    prev.PersistentID,
		Provenance:      update.Provenance,
		ImportID:        prev.ImportID,
		AuthoringUserID: update.AuthoringUserID,
	}

	if update.Messages != nil {
		next.Messages = update.Messages
	}
	if update.Functions != nil {
		next.Functions = update.Functions
	}
	if update.FunctionCall != nil {
		next.FunctionCall = update.FunctionCall
	}
	if update.Tools != nil {
		next.Tools = update.Tools
	}
	if update.ToolChoice != nil {
		next.ToolChoice = update.ToolChoice
	}
	if update.ResponseFormat != nil {
		next.ResponseFormat = update.ResponseFormat
	}
	if update.Output != nil {
		next.Output = update.Output
	}
	if update.Split != "" {
		next.Split = update.Split
	}

	return next
}

func copyEvalAssignments(tx *gorm.DB, prevID, nextID uuid.UUID) error {
	var assignments []domain.DatasetEvalDatasetEntry
	if err := tx.Where("dataset_entry_id = ?", prevID).Find(&assignments).Error; err != nil {
		return apperrors.DatabaseError(err)
	}
	if len(assignments) == 0 {
		return nil
	}

	copies := make([]domain.DatasetEvalDatasetEntry, 0, len(assignments))
	for _, a := range assignments {
		copies = append(copies, domain.DatasetEvalDatasetEntry{
			ID:             uuid.New(),
			DatasetEvalID:  a.DatasetEvalID,
			DatasetEntryID: nextID,
		})
	}
	if err := tx.Create(&copies).Error; err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// FanOutTestGeneration enqueues one generate-test-entry job per DEPLOYED
// fine-tune and per enabled comparison model of the dataset, each
// starting at numPreviousTries 0
func (s *Service) FanOutTestGeneration(ctx context.Context, datasetID, entryID uuid.UUID) error {
	var fineTunes []domain.FineTune
	if err := s.db.WithContext(ctx).
		Where("dataset_id = ? AND status = ?", datasetID, domain.FineTuneStatusDeployed).
		Find(&fineTunes).Error; err != nil {
		return apperrors.DatabaseError(err)
	}

	var dataset domain.Dataset
	if err := s.db.WithContext(ctx).First(&dataset, "id = ?", datasetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("dataset not found")
		}
		return apperrors.DatabaseError(err)
	}

	for _, ft := range fineTunes {
		if err := s.queue.EnqueueGenerateTestEntry(ctx, ft.ID.String(), entryID, 0); err != nil {
			return err
		}
	}
	for _, modelID := range dataset.ComparisonModels() {
		if err := s.queue.EnqueueGenerateTestEntry(ctx, modelID, entryID, 0); err != nil {
			return err
		}
	}

	return nil
}

// NewEntry is one row of an import batch
type NewEntry struct {
	Messages       datatypes.JSON
	Functions      datatypes.JSON
	FunctionCall   datatypes.JSON
	Tools          datatypes.JSON
	ToolChoice     datatypes.JSON
	ResponseFormat datatypes.JSON
	Output         datatypes.JSON
	Split          string
}

// CreateEntries inserts a batch of brand-new entries. Every row gets a
// fresh persistentId, a monotonic sortKey within the shared importId,
// and the given provenance. Match recomputation and token counting run
// as background jobs.
func (s *Service) CreateEntries(ctx context.Context, datasetID uuid.UUID, rows []NewEntry, provenance string, authoringUserID *uuid.UUID) ([]domain.DatasetEntry, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	importID := uuid.New()
	base := time.Now().UTC().UnixMilli()

	entries := make([]domain.DatasetEntry, 0, len(rows))
	for i, row := range rows {
		split := row.Split
		if split == "" {
			split = domain.SplitTrain
		}
		entries = append(entries, domain.DatasetEntry{
			ID:              uuid.New(),
			DatasetID:       datasetID,
			Messages:        row.Messages,
			Functions:       row.Functions,
			FunctionCall:    row.FunctionCall,
			Tools:           row.Tools,
			ToolChoice:      row.ToolChoice,
			ResponseFormat:  row.ResponseFormat,
			Output:          row.Output,
			Split:           split,
			SortKey:         fmt.Sprintf("%013d-%08d", base, i),
			PersistentID:    uuid.New(),
			Provenance:      provenance,
			ImportID:        importID,
			AuthoringUserID: authoringUserID,
		})
	}

	if err := s.db.WithContext(ctx).CreateInBatches(entries, 1000).Error; err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	entryIDs := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		entryIDs = append(entryIDs, e.ID)
		if err := s.queue.EnqueueCountTokens(ctx, e.ID); err != nil {
			s.logger.Error("failed to enqueue token count",
				slog.String("entry_id", e.ID.String()),
				slog.Any("error", err))
		}
	}
	if err := s.queue.EnqueueRecomputeMatches(ctx, datasetID, entryIDs); err != nil {
		s.logger.Error("failed to enqueue match recompute",
			slog.String("dataset_id", datasetID.String()),
			slog.Any("error", err))
	}

	s.logger.Info("entries imported",
		slog.String("dataset_id", datasetID.String()),
		slog.String("import_id", importID.String()),
		slog.Int("entry_count", len(entries)),
	)

	return entries, nil
}

// StartRelabelBatch queues a relabel of the given logical entries through
// the given model. One PENDING request row is created per persistentId
// before any task is enqueued, so batch progress is always observable.
func (s *Service) StartRelabelBatch(ctx context.Context, persistentIDs []uuid.UUID, model string) (uuid.UUID, error) {
	if len(persistentIDs) == 0 {
		return uuid.Nil, apperrors.BadRequest("no entries selected for relabeling")
	}
	if model == "" {
		return uuid.Nil, apperrors.BadRequest("relabel model is required")
	}

	batchID := uuid.New()
	requests := make([]domain.RelabelRequest, 0, len(persistentIDs))
	for _, pid := range persistentIDs {
		requests = append(requests, domain.RelabelRequest{
			ID:           uuid.New(),
			BatchID:      batchID,
			PersistentID: pid,
			Status:       domain.StatusPending,
		})
	}
	if err := s.db.WithContext(ctx).CreateInBatches(requests, 500).Error; err != nil {
		return uuid.Nil, apperrors.DatabaseError(err)
	}

	for _, pid := range persistentIDs {
		if err := s.queue.EnqueueRelabelEntry(ctx, batchID, pid, model); err != nil {
			// The PENDING row stays behind as the record of what never ran.
			s.logger.Error("failed to enqueue relabel",
				slog.String("batch_id", batchID.String()),
				slog.String("persistent_id", pid.String()),
				slog.Any("error", err))
		}
	}

	s.logger.Info("relabel batch started",
		slog.String("batch_id", batchID.String()),
		slog.String("model", model),
		slog.Int("entry_count", len(persistentIDs)),
	)

	return batchID, nil
}

// DeleteEntries hard-deletes entry versions and all their children in
// one transaction, children first. This is the only deletion path;
// superseded versions are otherwise kept forever.
func (s *Service) DeleteEntries(ctx context.Context, entryIDs []uuid.UUID) error {
	if len(entryIDs) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dataset_entry_id IN ?", entryIDs).
			Delete(&domain.PruningRuleMatch{}).Error; err != nil {
			return apperrors.DatabaseError(err)
		}

		evalEntryIDs := tx.Model(&domain.DatasetEvalDatasetEntry{}).
			Select("id").
			Where("dataset_entry_id IN ?", entryIDs)
		if err := tx.Where("dataset_eval_dataset_entry_id IN (?)", evalEntryIDs).
			Delete(&domain.DatasetEvalResult{}).Error; err != nil {
			return apperrors.DatabaseError(err)
		}
		if err := tx.Where("dataset_entry_id IN ?", entryIDs).
			Delete(&domain.DatasetEvalDatasetEntry{}).Error; err != nil {
			return apperrors.DatabaseError(err)
		}

		if err := tx.Where("dataset_entry_id IN ?", entryIDs).
			Delete(&domain.FineTuneTestingEntry{}).Error; err != nil {
			return apperrors.DatabaseError(err)
		}
		if err := tx.Where("dataset_entry_id IN ?", entryIDs).
			Delete(&domain.FineTuneTrainingEntry{}).Error; err != nil {
			return apperrors.DatabaseError(err)
		}

		if err := tx.Where("id IN ?", entryIDs).
			Delete(&domain.DatasetEntry{}).Error; err != nil {
			return apperrors.DatabaseError(err)
		}
		return nil
	})
}
