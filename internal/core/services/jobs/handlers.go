package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"

	"github.com/finetunelab/platform/internal/core/domain"
	"github.com/finetunelab/platform/internal/core/services/lineage"
	"github.com/finetunelab/platform/internal/core/services/models"
	apperrors "github.com/finetunelab/platform/internal/pkg/errors"
)

// RetryEnqueuer re-submits generation work after a provider failure
type RetryEnqueuer interface {
	EnqueueGenerateTestEntry(ctx context.Context, modelID string, datasetEntryID uuid.UUID, numPreviousTries int) error
}

// Handlers processes background tasks. Each handler is idempotent:
// tasks may be delivered more than once.
type Handlers struct {
	entries  EntryStore
	testing  TestingEntryStore
	relabels RelabelStore
	lineage  LineageService
	provider CompletionProvider
	cache    OutputCache
	enqueuer RetryEnqueuer
	maxTries int
	logger   *slog.Logger
}

// NewHandlers creates the worker task handlers
func NewHandlers(
	entries EntryStore,
	testing TestingEntryStore,
	relabels RelabelStore,
	lineageSvc LineageService,
	provider CompletionProvider,
	cache OutputCache,
	enqueuer RetryEnqueuer,
	maxTries int,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTries < 1 {
		maxTries = 3
	}

	return &Handlers{
		entries:  entries,
		testing:  testing,
		relabels: relabels,
		lineage:  lineageSvc,
		provider: provider,
		cache:    cache,
		enqueuer: enqueuer,
		maxTries: maxTries,
		logger:   logger,
	}
}

// CompletionCacheKey derives the shared completion cache key for a
// model/entry pair from everything that shapes the model's output.
func CompletionCacheKey(modelID string, entry *domain.DatasetEntry) string {
	h := sha256.New()
	h.Write([]byte(modelID))
	for _, field := range []datatypes.JSON{
		entry.Messages, entry.Functions, entry.FunctionCall,
		entry.Tools, entry.ToolChoice, entry.ResponseFormat,
	} {
		h.Write([]byte{0})
		h.Write(field)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HandleGenerateTestEntry produces one model's output for one TEST entry
// version, consulting the shared completion cache before calling the
// provider. Provider failures re-enqueue with backoff until maxTries,
// then the testing entry row records the error.
func (h *Handlers) HandleGenerateTestEntry(ctx context.Context, task *asynq.Task) error {
	var payload GenerateTestEntryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w: %w", err, asynq.SkipRetry)
	}

	entry, err := h.entries.GetEntry(ctx, payload.DatasetEntryID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			h.logger.Warn("entry deleted before generation ran",
				slog.String("entry_id", payload.DatasetEntryID.String()))
			return nil
		}
		return err
	}
	// Supersession is soft cancellation: an in-flight job for an outdated
	// version still completes, but its output lands on the outdated row
	// where nothing reads it.

	cacheKey := CompletionCacheKey(payload.ModelID, entry)

	if cached, ok, err := h.cache.GetCompletion(ctx, cacheKey); err != nil {
		h.logger.Warn("completion cache read failed",
			slog.String("cache_key", cacheKey),
			slog.Any("error", err))
	} else if ok {
		return h.testing.UpsertOutput(ctx, payload.ModelID, entry.ID, cacheKey, cached)
	}

	result, err := h.provider.Complete(ctx, payload.ModelID, entry)
	if err != nil {
		tries := payload.NumPreviousTries + 1
		if tries < h.maxTries {
			h.logger.Warn("generation failed, re-enqueueing",
				slog.String("model_id", payload.ModelID),
				slog.String("entry_id", entry.ID.String()),
				slog.Int("tries", tries),
				slog.Any("error", err))
			return h.enqueuer.EnqueueGenerateTestEntry(ctx, payload.ModelID, entry.ID, tries)
		}

		if storeErr := h.testing.SetError(ctx, payload.ModelID, entry.ID, err.Error()); storeErr != nil {
			return storeErr
		}
		h.logger.Error("generation failed permanently",
			slog.String("model_id", payload.ModelID),
			slog.String("entry_id", entry.ID.String()),
			slog.Any("error", err))
		return nil
	}

	if err := h.cache.SetCompletion(ctx, cacheKey, result.Output); err != nil {
		h.logger.Warn("completion cache write failed",
			slog.String("cache_key", cacheKey),
			slog.Any("error", err))
	}

	return h.testing.UpsertOutput(ctx, payload.ModelID, entry.ID, cacheKey, result.Output)
}

// HandleRelabelEntry regenerates the output of one logical entry through
// the relabel model and supersedes the live version with the result
func (h *Handlers) HandleRelabelEntry(ctx context.Context, task *asynq.Task) error {
	var payload RelabelEntryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w: %w", err, asynq.SkipRetry)
	}

	if err := h.relabels.SetStatus(ctx, payload.BatchID, payload.PersistentID, domain.StatusInProgress, nil); err != nil {
		return err
	}

	entry, err := h.entries.LiveEntryByPersistentID(ctx, payload.PersistentID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			msg := "no live version for entry"
			return h.relabels.SetStatus(ctx, payload.BatchID, payload.PersistentID, domain.StatusError, &msg)
		}
		return err
	}

	result, err := h.provider.Complete(ctx, payload.Model, entry)
	if err != nil {
		msg := err.Error()
		if statusErr := h.relabels.SetStatus(ctx, payload.BatchID, payload.PersistentID, domain.StatusError, &msg); statusErr != nil {
			return statusErr
		}
		// ERROR is terminal: the batch finishes with the failure recorded on
		// its row instead of a redelivery racing the user's next attempt.
		h.logger.Error("relabel generation failed",
			slog.String("persistent_id", payload.PersistentID.String()),
			slog.String("model", payload.Model),
			slog.Any("error", err))
		return nil
	}

	if _, err := h.lineage.SupersedeEntry(ctx, entry.ID, lineage.EntryUpdate{
		Output:     datatypes.JSON(result.Output),
		Provenance: domain.ProvenanceRelabeledByModel,
	}); err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeConflict) {
			// Someone edited the entry while the model was running; the
			// relabel result is stale and must not clobber their edit.
			msg := "entry changed during relabeling"
			return h.relabels.SetStatus(ctx, payload.BatchID, payload.PersistentID, domain.StatusError, &msg)
		}
		return err
	}

	return h.relabels.SetStatus(ctx, payload.BatchID, payload.PersistentID, domain.StatusComplete, nil)
}

// HandleCountTokens recomputes and stores an entry version's token counts
func (h *Handlers) HandleCountTokens(ctx context.Context, task *asynq.Task) error {
	var payload CountTokensPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w: %w", err, asynq.SkipRetry)
	}

	entry, err := h.entries.GetEntry(ctx, payload.DatasetEntryID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return nil
		}
		return err
	}

	inputTokens := models.EstimateTokenCount(entry.InputText())
	outputTokens := models.EstimateTokenCount(entry.OutputText())

	return h.entries.UpdateTokenCounts(ctx, entry.ID, inputTokens, outputTokens)
}

// HandleRecomputeMatches rebuilds pruning-rule match sets for a batch of
// entry versions, continuing past per-entry failures
func (h *Handlers) HandleRecomputeMatches(ctx context.Context, task *asynq.Task) error {
	var payload RecomputeMatchesPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w: %w", err, asynq.SkipRetry)
	}

	var errs []error
	for _, entryID := range payload.DatasetEntryIDs {
		entry, err := h.entries.GetEntry(ctx, entryID)
		if err != nil {
			if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
				continue
			}
			errs = append(errs, err)
			continue
		}

		if err := h.lineage.RecomputeMatchesForEntry(ctx, entry); err != nil {
			h.logger.Error("match recompute failed for entry",
				slog.String("entry_id", entryID.String()),
				slog.Any("error", err))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Register wires the handlers into a task mux
func (h *Handlers) Register(mux interface {
	HandleFunc(pattern string, handler func(context.Context, *asynq.Task) error)
}) {
	mux.HandleFunc(TaskTypeGenerateTestEntry, h.HandleGenerateTestEntry)
	mux.HandleFunc(TaskTypeRelabelEntry, h.HandleRelabelEntry)
	mux.HandleFunc(TaskTypeCountTokens, h.HandleCountTokens)
	mux.HandleFunc(TaskTypeRecomputeMatches, h.HandleRecomputeMatches)
}
