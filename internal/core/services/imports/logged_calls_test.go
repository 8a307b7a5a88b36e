package imports

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/finetunelab/platform/internal/core/domain"
	"github.com/finetunelab/platform/internal/core/services/filters"
	"github.com/finetunelab/platform/internal/core/services/lineage"
	apperrors "github.com/finetunelab/platform/internal/pkg/errors"
)

type mockCallSource struct {
	calls []domain.LoggedCall
	err   error
}

func (m *mockCallSource) ForExport(_ context.Context, _ uuid.UUID, _ []filters.Clause, _ filters.Selection) ([]domain.LoggedCall, error) {
	return m.calls, m.err
}

type createCall struct {
	datasetID  uuid.UUID
	rows       []lineage.NewEntry
	provenance string
}

type mockEntryCreator struct {
	created []createCall
	err     error
}

func (m *mockEntryCreator) CreateEntries(_ context.Context, datasetID uuid.UUID, rows []lineage.NewEntry, provenance string, _ *uuid.UUID) ([]domain.DatasetEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = append(m.created, createCall{datasetID, rows, provenance})
	return make([]domain.DatasetEntry, len(rows)), nil
}

func recordedCall(content string) domain.LoggedCall {
	return domain.LoggedCall{
		ID: uuid.New(),
		ModelResponse: &domain.LoggedCallModelResponse{
			ReqPayload: datatypes.JSON(fmt.Sprintf(
				`{"messages":[{"role":"user","content":%q}]}`, content)),
			RespPayload: datatypes.JSON(
				`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`),
		},
	}
}

func TestLoggedCallImport_SamplesSplitsAndSkipsUnusable(t *testing.T) {
	source := &mockCallSource{}
	for i := 0; i < 10; i++ {
		source.calls = append(source.calls, recordedCall(fmt.Sprintf("q%d", i)))
	}
	// No satellite row and a response without choices: both unusable.
	source.calls = append(source.calls,
		domain.LoggedCall{ID: uuid.New()},
		domain.LoggedCall{ID: uuid.New(), ModelResponse: &domain.LoggedCallModelResponse{
			ReqPayload:  datatypes.JSON(`{"messages":[{"role":"user","content":"x"}]}`),
			RespPayload: datatypes.JSON(`{"choices":[]}`),
		}},
	)

	creator := &mockEntryCreator{}
	importer := NewLoggedCallImporter(source, creator, nil)

	datasetID := uuid.New()
	result, err := importer.Import(context.Background(), ImportParams{
		ProjectID:        uuid.New(),
		DatasetID:        datasetID,
		TestSplitPercent: 20,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, result.ImportedCount)
	assert.Equal(t, 2, result.SkippedCount)
	assert.Equal(t, 2, result.TestCount)
	assert.Equal(t, 8, result.TrainCount)

	require.Len(t, creator.created, 1)
	call := creator.created[0]
	assert.Equal(t, datasetID, call.datasetID)
	assert.Equal(t, domain.ProvenanceRequestLog, call.provenance)
	require.Len(t, call.rows, 10)

	for i, row := range call.rows {
		if i < 2 {
			assert.Equal(t, domain.SplitTest, row.Split)
		} else {
			assert.Equal(t, domain.SplitTrain, row.Split)
		}
		assert.JSONEq(t, `{"role":"assistant","content":"ok"}`, string(row.Output))
	}
}

func TestLoggedCallImport_RoundsTestCountDown(t *testing.T) {
	source := &mockCallSource{calls: []domain.LoggedCall{
		recordedCall("a"), recordedCall("b"), recordedCall("c"),
	}}
	creator := &mockEntryCreator{}
	importer := NewLoggedCallImporter(source, creator, nil)

	result, err := importer.Import(context.Background(), ImportParams{
		DatasetID:        uuid.New(),
		TestSplitPercent: 30,
	})
	require.NoError(t, err)

	assert.Zero(t, result.TestCount)
	assert.Equal(t, 3, result.TrainCount)
}

func TestLoggedCallImport_NothingUsableSkipsInsert(t *testing.T) {
	source := &mockCallSource{calls: []domain.LoggedCall{{ID: uuid.New()}}}
	creator := &mockEntryCreator{}
	importer := NewLoggedCallImporter(source, creator, nil)

	result, err := importer.Import(context.Background(), ImportParams{
		DatasetID:        uuid.New(),
		TestSplitPercent: 50,
	})
	require.NoError(t, err)

	assert.Zero(t, result.ImportedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Empty(t, creator.created)
}

func TestLoggedCallImport_RejectsInvalidSplitPercent(t *testing.T) {
	importer := NewLoggedCallImporter(&mockCallSource{}, &mockEntryCreator{}, nil)

	_, err := importer.Import(context.Background(), ImportParams{TestSplitPercent: 101})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBadRequest))
}
