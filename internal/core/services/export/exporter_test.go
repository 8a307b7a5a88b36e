package export

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRow(content string) Row {
	return Row{
		Input: InputPayload{
			Messages: json.RawMessage(fmt.Sprintf(`[{"role":"user","content":"%s"}]`, content)),
		},
		Output: json.RawMessage(fmt.Sprintf(`{"role":"assistant","content":"re: %s"}`, content)),
	}
}

func readArchive(t *testing.T, data []byte) map[string][]Row {
	t.Helper()

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := make(map[string][]Row)
	for _, f := range reader.File {
		rc, err := f.Open()
		require.NoError(t, err)

		var rows []Row
		scanner := bufio.NewScanner(rc)
		for scanner.Scan() {
			var row Row
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
			rows = append(rows, row)
		}
		require.NoError(t, scanner.Err())
		require.NoError(t, rc.Close())
		files[f.Name] = rows
	}
	return files
}

func TestBuildArchive_SplitsDedupedRows(t *testing.T) {
	rows := make([]Row, 0, 12)
	for i := 0; i < 10; i++ {
		rows = append(rows, makeRow(fmt.Sprintf("example %d", i)))
	}
	// Duplicates of existing rows must not survive deduplication.
	rows = append(rows, makeRow("example 0"), makeRow("example 5"))

	var buf bytes.Buffer
	result, err := NewExporter(nil).BuildArchive(&buf, rows, 20)
	require.NoError(t, err)

	assert.Equal(t, 12, result.TotalRows)
	assert.Equal(t, 10, result.UniqueRows)
	assert.Equal(t, 2, result.TestRows)
	assert.Equal(t, 8, result.TrainRows)

	files := readArchive(t, buf.Bytes())
	require.Contains(t, files, "test.jsonl")
	require.Contains(t, files, "train.jsonl")
	assert.Len(t, files["test.jsonl"], 2)
	assert.Len(t, files["train.jsonl"], 8)

	// Test partition comes from the front of the deduplicated order.
	assert.JSONEq(t, `[{"role":"user","content":"example 0"}]`, string(files["test.jsonl"][0].Input.Messages))
	assert.JSONEq(t, `[{"role":"user","content":"example 1"}]`, string(files["test.jsonl"][1].Input.Messages))
}

func TestBuildArchive_SplitRoundsDown(t *testing.T) {
	rows := []Row{makeRow("a"), makeRow("b"), makeRow("c")}

	var buf bytes.Buffer
	result, err := NewExporter(nil).BuildArchive(&buf, rows, 30)
	require.NoError(t, err)

	// 3 * 30% = 0.9 rows, floored to zero
	assert.Equal(t, 0, result.TestRows)
	assert.Equal(t, 3, result.TrainRows)
}

func TestBuildArchive_EmptyInput(t *testing.T) {
	var buf bytes.Buffer
	result, err := NewExporter(nil).BuildArchive(&buf, nil, 10)
	require.NoError(t, err)

	assert.Zero(t, result.UniqueRows)
	files := readArchive(t, buf.Bytes())
	assert.Empty(t, files["test.jsonl"])
	assert.Empty(t, files["train.jsonl"])
}

func TestBuildArchive_RejectsInvalidSplit(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewExporter(nil).BuildArchive(&buf, nil, 101)
	assert.Error(t, err)

	_, err = NewExporter(nil).BuildArchive(&buf, nil, -1)
	assert.Error(t, err)
}
