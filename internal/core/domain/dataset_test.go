package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestDatasetEntry_InputText(t *testing.T) {
	entry := DatasetEntry{
		Messages: datatypes.JSON(`[
			{"role":"system","content":"You are a recipe classifier."},
			{"role":"user","content":"Classify: tomato soup"}
		]`),
	}

	text := entry.InputText()
	assert.Contains(t, text, "You are a recipe classifier.")
	assert.Contains(t, text, "Classify: tomato soup")
}

func TestDatasetEntry_InputText_MalformedJSON(t *testing.T) {
	entry := DatasetEntry{Messages: datatypes.JSON(`not json`)}
	assert.Equal(t, "", entry.InputText())
}

func TestDatasetEntry_OutputText(t *testing.T) {
	entry := DatasetEntry{
		Output: datatypes.JSON(`{"role":"assistant","content":"soup"}`),
	}
	assert.Equal(t, "soup", entry.OutputText())

	empty := DatasetEntry{}
	assert.Equal(t, "", empty.OutputText())
}

func TestDataset_ComparisonModels(t *testing.T) {
	ds := Dataset{
		EnabledComparisonModels: datatypes.JSON(`["gpt-4o","gpt-4o-mini"]`),
	}
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, ds.ComparisonModels())

	none := Dataset{}
	assert.Nil(t, none.ComparisonModels())
}

func TestIsValidSplit(t *testing.T) {
	assert.True(t, IsValidSplit(SplitTrain))
	assert.True(t, IsValidSplit(SplitTest))
	assert.False(t, IsValidSplit("VALIDATION"))
}

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(StatusComplete))
	assert.True(t, IsTerminalStatus(StatusError))
	assert.False(t, IsTerminalStatus(StatusPending))
	assert.False(t, IsTerminalStatus(StatusInProgress))
}
