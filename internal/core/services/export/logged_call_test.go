package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/finetunelab/platform/internal/core/domain"
)

func TestRowFromLoggedCall(t *testing.T) {
	call := domain.LoggedCall{
		ModelResponse: &domain.LoggedCallModelResponse{
			ReqPayload:  datatypes.JSON(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"tools":[{"type":"function"}]}`),
			RespPayload: datatypes.JSON(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`),
		},
	}

	row, ok := RowFromLoggedCall(call)
	require.True(t, ok)
	assert.JSONEq(t, `[{"role":"user","content":"hi"}]`, string(row.Input.Messages))
	assert.JSONEq(t, `[{"type":"function"}]`, string(row.Input.Tools))
	assert.JSONEq(t, `{"role":"assistant","content":"hello"}`, string(row.Output))
}

func TestRowFromLoggedCall_UnusableCalls(t *testing.T) {
	_, ok := RowFromLoggedCall(domain.LoggedCall{})
	assert.False(t, ok, "call without response satellite")

	_, ok = RowFromLoggedCall(domain.LoggedCall{
		ModelResponse: &domain.LoggedCallModelResponse{
			ReqPayload:  datatypes.JSON(`{"model":"gpt-4o"}`),
			RespPayload: datatypes.JSON(`{"choices":[{"message":{"role":"assistant","content":"x"}}]}`),
		},
	})
	assert.False(t, ok, "request without messages")

	_, ok = RowFromLoggedCall(domain.LoggedCall{
		ModelResponse: &domain.LoggedCallModelResponse{
			ReqPayload:  datatypes.JSON(`{"messages":[{"role":"user","content":"hi"}]}`),
			RespPayload: datatypes.JSON(`{"error":"rate limited"}`),
		},
	})
	assert.False(t, ok, "response without choices")
}

func TestRowFromEntry(t *testing.T) {
	entry := domain.DatasetEntry{
		Messages: datatypes.JSON(`[{"role":"user","content":"hi"}]`),
		Output:   datatypes.JSON(`{"role":"assistant","content":"hello"}`),
	}

	row, ok := RowFromEntry(entry)
	require.True(t, ok)
	assert.JSONEq(t, `[{"role":"user","content":"hi"}]`, string(row.Input.Messages))
	assert.JSONEq(t, `{"role":"assistant","content":"hello"}`, string(row.Output))

	_, ok = RowFromEntry(domain.DatasetEntry{Messages: datatypes.JSON(`[]`)})
	assert.False(t, ok)
}
