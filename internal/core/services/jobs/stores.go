package jobs

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/finetunelab/platform/internal/core/domain"
	"github.com/finetunelab/platform/internal/core/services/lineage"
)

// EntryStore loads dataset entry versions for job handlers
type EntryStore interface {
	GetEntry(ctx context.Context, id uuid.UUID) (*domain.DatasetEntry, error)
	LiveEntryByPersistentID(ctx context.Context, persistentID uuid.UUID) (*domain.DatasetEntry, error)
	UpdateTokenCounts(ctx context.Context, id uuid.UUID, inputTokens, outputTokens int) error
}

// TestingEntryStore persists generated model outputs for TEST entries
type TestingEntryStore interface {
	UpsertOutput(ctx context.Context, modelID string, entryID uuid.UUID, cacheKey string, output json.RawMessage) error
	SetError(ctx context.Context, modelID string, entryID uuid.UUID, message string) error
}

// RelabelStore tracks per-entry relabel request status
type RelabelStore interface {
	SetStatus(ctx context.Context, batchID, persistentID uuid.UUID, status string, errorMessage *string) error
}

// CompletionResult is one model completion with its usage accounting
type CompletionResult struct {
	Output       json.RawMessage
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// CompletionProvider produces a model completion for an entry's input
type CompletionProvider interface {
	Complete(ctx context.Context, model string, entry *domain.DatasetEntry) (*CompletionResult, error)
}

// OutputCache is a shared completion cache keyed by input hash, so
// identical inputs never pay for a second provider call
type OutputCache interface {
	GetCompletion(ctx context.Context, key string) (json.RawMessage, bool, error)
	SetCompletion(ctx context.Context, key string, output json.RawMessage) error
}

// LineageService is the slice of the lineage service the handlers need
type LineageService interface {
	SupersedeEntry(ctx context.Context, entryID uuid.UUID, update lineage.EntryUpdate) (*domain.DatasetEntry, error)
	RecomputeMatchesForEntry(ctx context.Context, entry *domain.DatasetEntry) error
}
