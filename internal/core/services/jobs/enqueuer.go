package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskClient is the queue client surface the enqueuer depends on,
// satisfied by the asynq client wrapper.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer submits background tasks. First attempts carry a
// deduplication task id derived from the payload identity; a task id
// conflict means an equivalent task is already queued and is not an
// error. Retry attempts skip the id so they are never suppressed by the
// attempt that spawned them.
type Enqueuer struct {
	client     TaskClient
	maxRetries int
	logger     *slog.Logger
}

// NewEnqueuer creates a new task enqueuer
func NewEnqueuer(client TaskClient, maxRetries int, logger *slog.Logger) *Enqueuer {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Enqueuer{
		client:     client,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// queueForTask routes each task type to one of the worker's weighted
// queues. Relabel tasks are user-initiated and gate dataset edits;
// generation feeds eval results the user is watching; bookkeeping tasks
// share the remainder.
func queueForTask(taskType string) string {
	switch taskType {
	case TaskTypeRelabelEntry:
		return "critical"
	case TaskTypeGenerateTestEntry:
		return "high"
	default:
		return "default"
	}
}

func (e *Enqueuer) submit(ctx context.Context, taskType, dedupKey string, payload interface{}, opts ...asynq.Option) error {
	task, err := newTask(taskType, payload)
	if err != nil {
		return err
	}

	if dedupKey != "" {
		opts = append(opts, asynq.TaskID(dedupKey))
	}
	opts = append(opts, asynq.Queue(queueForTask(taskType)), asynq.MaxRetry(e.maxRetries))

	if _, err := e.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			e.logger.Debug("task already queued",
				slog.String("task_type", taskType),
				slog.String("dedup_key", dedupKey))
			return nil
		}
		return err
	}
	return nil
}

// EnqueueGenerateTestEntry submits a test output generation task. Calls
// with numPreviousTries > 0 are handler retries: they bypass
// deduplication and back off exponentially.
func (e *Enqueuer) EnqueueGenerateTestEntry(ctx context.Context, modelID string, datasetEntryID uuid.UUID, numPreviousTries int) error {
	payload := GenerateTestEntryPayload{
		ModelID:          modelID,
		DatasetEntryID:   datasetEntryID,
		NumPreviousTries: numPreviousTries,
	}

	if numPreviousTries > 0 {
		delay := time.Duration(1<<uint(numPreviousTries)) * time.Second
		return e.submit(ctx, TaskTypeGenerateTestEntry, "", payload, asynq.ProcessIn(delay))
	}
	return e.submit(ctx, TaskTypeGenerateTestEntry, payload.DedupKey(), payload)
}

// EnqueueRelabelEntry submits a relabel task for one logical entry of a batch
func (e *Enqueuer) EnqueueRelabelEntry(ctx context.Context, batchID, persistentID uuid.UUID, model string) error {
	payload := RelabelEntryPayload{
		BatchID:      batchID,
		PersistentID: persistentID,
		Model:        model,
	}
	return e.submit(ctx, TaskTypeRelabelEntry, payload.DedupKey(), payload)
}

// EnqueueCountTokens submits a token recount for one entry version
func (e *Enqueuer) EnqueueCountTokens(ctx context.Context, datasetEntryID uuid.UUID) error {
	payload := CountTokensPayload{DatasetEntryID: datasetEntryID}
	return e.submit(ctx, TaskTypeCountTokens, payload.DedupKey(), payload)
}

// EnqueueRecomputeMatches submits a pruning match rebuild for a batch of entries
func (e *Enqueuer) EnqueueRecomputeMatches(ctx context.Context, datasetID uuid.UUID, datasetEntryIDs []uuid.UUID) error {
	payload := RecomputeMatchesPayload{
		DatasetID:       datasetID,
		DatasetEntryIDs: datasetEntryIDs,
	}
	return e.submit(ctx, TaskTypeRecomputeMatches, payload.DedupKey(), payload)
}
