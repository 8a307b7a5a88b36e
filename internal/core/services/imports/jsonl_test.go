package imports

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONL_SkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"messages":[{"role":"user","content":"a"}],"output":{"role":"assistant","content":"1"}}`,
		``,
		`not json at all`,
		`{"output":{"role":"assistant","content":"no messages"}}`,
		`{"messages":[{"role":"user","content":"b"}],"split":"TEST"}`,
		`{"messages":[{"role":"user","content":"c"}],"split":"VALIDATION"}`,
	}, "\n")

	result, err := ParseJSONL(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 6, result.TotalLines)
	assert.Equal(t, 4, result.SkippedLines)
	require.Len(t, result.Rows, 2)

	assert.JSONEq(t, `[{"role":"user","content":"a"}]`, string(result.Rows[0].Messages))
	assert.JSONEq(t, `{"role":"assistant","content":"1"}`, string(result.Rows[0].Output))
	assert.Empty(t, result.Rows[0].Split)
	assert.Equal(t, "TEST", result.Rows[1].Split)
}

func TestParseJSONL_ToolFieldsCarriedThrough(t *testing.T) {
	input := `{"messages":[{"role":"user","content":"a"}],"tools":[{"type":"function"}],"tool_choice":"auto"}`

	result, err := ParseJSONL(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	assert.JSONEq(t, `[{"type":"function"}]`, string(result.Rows[0].Tools))
	assert.JSONEq(t, `"auto"`, string(result.Rows[0].ToolChoice))
}

func TestParseJSONL_EmptyStream(t *testing.T) {
	result, err := ParseJSONL(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, result.TotalLines)
	assert.Empty(t, result.Rows)
}

func TestParseJSONL_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ParseJSONL(ctx, strings.NewReader(`{"messages":[{"role":"user","content":"a"}]}`))
	assert.ErrorIs(t, err, context.Canceled)
}
