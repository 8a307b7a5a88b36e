package export

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// InputPayload is the request side of one exported training example
type InputPayload struct {
	Messages       json.RawMessage `json:"messages"`
	Functions      json.RawMessage `json:"functions,omitempty"`
	FunctionCall   json.RawMessage `json:"function_call,omitempty"`
	Tools          json.RawMessage `json:"tools,omitempty"`
	ToolChoice     json.RawMessage `json:"tool_choice,omitempty"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

// Row is one exported example
type Row struct {
	Input  InputPayload    `json:"input"`
	Output json.RawMessage `json:"output"`
}

// Result summarizes one export run
type Result struct {
	TotalRows  int
	UniqueRows int
	TestRows   int
	TrainRows  int
}

// Exporter writes deduplicated logged calls as a train/test JSONL archive
type Exporter struct {
	logger *slog.Logger
}

// NewExporter creates a new dataset exporter
func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

// BuildArchive deduplicates rows by content hash, splits them into test
// and train partitions, and writes a zip with test.jsonl and train.jsonl
// to w. testSplitPercent of the unique rows (rounded down) land in the
// test partition, taken from the front of the deduplicated order.
func (e *Exporter) BuildArchive(w io.Writer, rows []Row, testSplitPercent int) (*Result, error) {
	if testSplitPercent < 0 || testSplitPercent > 100 {
		return nil, fmt.Errorf("test split percent must be between 0 and 100, got %d", testSplitPercent)
	}

	unique, err := dedupeRows(rows)
	if err != nil {
		return nil, err
	}

	testCount := len(unique) * testSplitPercent / 100

	archive := zip.NewWriter(w)

	if err := writeJSONL(archive, "test.jsonl", unique[:testCount]); err != nil {
		return nil, err
	}
	if err := writeJSONL(archive, "train.jsonl", unique[testCount:]); err != nil {
		return nil, err
	}
	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	result := &Result{
		TotalRows:  len(rows),
		UniqueRows: len(unique),
		TestRows:   testCount,
		TrainRows:  len(unique) - testCount,
	}

	e.logger.Info("export archive built",
		slog.Int("total_rows", result.TotalRows),
		slog.Int("unique_rows", result.UniqueRows),
		slog.Int("test_rows", result.TestRows),
		slog.Int("train_rows", result.TrainRows),
	)

	return result, nil
}

// dedupeRows keeps the first occurrence of each input/output pair,
// preserving order
func dedupeRows(rows []Row) ([]Row, error) {
	seen := make(map[string]bool, len(rows))
	unique := make([]Row, 0, len(rows))

	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("failed to hash row %d: %w", i, err)
		}
		sum := sha256.Sum256(data)
		key := hex.EncodeToString(sum[:])

		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, row)
	}

	return unique, nil
}

func writeJSONL(archive *zip.Writer, name string, rows []Row) error {
	f, err := archive.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}

	enc := json.NewEncoder(f)
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", name, i, err)
		}
	}
	return nil
}
