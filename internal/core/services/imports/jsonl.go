package imports

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gorm.io/datatypes"

	"github.com/finetunelab/platform/internal/core/domain"
	"github.com/finetunelab/platform/internal/core/services/lineage"
)

// uploadLine is one line of an uploaded JSONL dataset file
type uploadLine struct {
	Messages       json.RawMessage `json:"messages"`
	Functions      json.RawMessage `json:"functions"`
	FunctionCall   json.RawMessage `json:"function_call"`
	Tools          json.RawMessage `json:"tools"`
	ToolChoice     json.RawMessage `json:"tool_choice"`
	ResponseFormat json.RawMessage `json:"response_format"`
	Output         json.RawMessage `json:"output"`
	Split          string          `json:"split"`
}

// ParseResult summarizes one parsed upload
type ParseResult struct {
	Rows         []lineage.NewEntry
	TotalLines   int
	SkippedLines int
}

// ParseJSONL reads newline-delimited entry definitions. Empty and
// malformed lines are skipped and counted rather than failing the whole
// upload.
func ParseJSONL(ctx context.Context, r io.Reader) (*ParseResult, error) {
	scanner := bufio.NewScanner(r)
	// Large training examples: allow up to 1MB per line
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	result := &ParseResult{}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := scanner.Bytes()
		result.TotalLines++

		if len(line) == 0 {
			result.SkippedLines++
			continue
		}

		var parsed uploadLine
		if err := json.Unmarshal(line, &parsed); err != nil {
			result.SkippedLines++
			continue
		}
		if len(parsed.Messages) == 0 {
			result.SkippedLines++
			continue
		}
		if parsed.Split != "" && !domain.IsValidSplit(parsed.Split) {
			result.SkippedLines++
			continue
		}

		result.Rows = append(result.Rows, lineage.NewEntry{
			Messages:       datatypes.JSON(parsed.Messages),
			Functions:      datatypes.JSON(parsed.Functions),
			FunctionCall:   datatypes.JSON(parsed.FunctionCall),
			Tools:          datatypes.JSON(parsed.Tools),
			ToolChoice:     datatypes.JSON(parsed.ToolChoice),
			ResponseFormat: datatypes.JSON(parsed.ResponseFormat),
			Output:         datatypes.JSON(parsed.Output),
			Split:          parsed.Split,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading JSONL stream: %w", err)
	}

	return result, nil
}
