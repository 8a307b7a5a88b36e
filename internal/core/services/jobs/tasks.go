package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types processed by the background worker
const (
	TaskTypeGenerateTestEntry = "testset:generate-entry"
	TaskTypeRelabelEntry      = "entry:relabel"
	TaskTypeCountTokens       = "entry:count-tokens"
	TaskTypeRecomputeMatches  = "pruning:recompute-matches"
)

// GenerateTestEntryPayload asks one model to produce output for one TEST
// entry version. NumPreviousTries is carried through re-enqueues so the
// handler can stop retrying.
type GenerateTestEntryPayload struct {
	ModelID          string    `json:"model_id"`
	DatasetEntryID   uuid.UUID `json:"dataset_entry_id"`
	NumPreviousTries int       `json:"num_previous_tries"`
}

// DedupKey identifies the unit of work independent of retry count, so a
// duplicate fan-out collapses onto the queued task while a handler
// re-enqueue is never suppressed by its own still-active predecessor.
func (p GenerateTestEntryPayload) DedupKey() string {
	return fmt.Sprintf("%s:%s:%s", TaskTypeGenerateTestEntry, p.ModelID, p.DatasetEntryID)
}

// RelabelEntryPayload asks the relabel model to regenerate the output of
// one logical entry within a batch
type RelabelEntryPayload struct {
	BatchID      uuid.UUID `json:"batch_id"`
	PersistentID uuid.UUID `json:"persistent_id"`
	Model        string    `json:"model"`
}

func (p RelabelEntryPayload) DedupKey() string {
	return fmt.Sprintf("%s:%s:%s", TaskTypeRelabelEntry, p.BatchID, p.PersistentID)
}

// CountTokensPayload recomputes the stored token counts of one entry version
type CountTokensPayload struct {
	DatasetEntryID uuid.UUID `json:"dataset_entry_id"`
}

func (p CountTokensPayload) DedupKey() string {
	return fmt.Sprintf("%s:%s", TaskTypeCountTokens, p.DatasetEntryID)
}

// RecomputeMatchesPayload rebuilds pruning-rule match sets for a batch
// of entry versions
type RecomputeMatchesPayload struct {
	DatasetID       uuid.UUID   `json:"dataset_id"`
	DatasetEntryIDs []uuid.UUID `json:"dataset_entry_ids"`
}

func (p RecomputeMatchesPayload) DedupKey() string {
	ids := make([]string, 0, len(p.DatasetEntryIDs))
	for _, id := range p.DatasetEntryIDs {
		ids = append(ids, id.String())
	}
	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return fmt.Sprintf("%s:%s:%s", TaskTypeRecomputeMatches, p.DatasetID, hex.EncodeToString(sum[:8]))
}

func newTask(taskType string, payload interface{}) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, data), nil
}
