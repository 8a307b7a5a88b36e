package filters

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPredicate_Equals(t *testing.T) {
	pred, ok := BuildPredicate(ComparatorEquals, TextValue("500"), "logged_call_model_responses.status_code")
	require.True(t, ok)
	assert.Equal(t, "logged_call_model_responses.status_code = ?", pred.Expr)
	assert.Equal(t, []interface{}{"500"}, pred.Args)
}

func TestBuildPredicate_EmptyValueEmitsNothing(t *testing.T) {
	for _, comparator := range []Comparator{
		ComparatorEquals,
		ComparatorNotEquals,
		ComparatorContains,
		ComparatorNotContains,
		ComparatorGreaterThan,
		ComparatorLessThan,
	} {
		_, ok := BuildPredicate(comparator, TextValue(""), "col")
		assert.False(t, ok, "comparator %s must not emit a predicate for an empty value", comparator)

		_, ok = BuildPredicate(comparator, TextValue("   "), "col")
		assert.False(t, ok, "comparator %s must not emit a predicate for a blank value", comparator)
	}
}

func TestBuildPredicate_IsEmptyNeedsNoValue(t *testing.T) {
	pred, ok := BuildPredicate(ComparatorIsEmpty, Value{}, "col")
	require.True(t, ok)
	assert.Equal(t, "(col IS NULL OR col = '')", pred.Expr)
	assert.Empty(t, pred.Args)

	pred, ok = BuildPredicate(ComparatorIsNotEmpty, Value{}, "col")
	require.True(t, ok)
	assert.Equal(t, "(col IS NOT NULL AND col <> '')", pred.Expr)
}

func TestBuildPredicate_ContainsEscapesLikeMetacharacters(t *testing.T) {
	pred, ok := BuildPredicate(ComparatorContains, TextValue("50%_off"), "col")
	require.True(t, ok)
	assert.Equal(t, "col LIKE ?", pred.Expr)
	assert.Equal(t, []interface{}{`%50\%\_off%`}, pred.Args)
}

func TestBuildPredicate_RangeBothBounds(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	pred, ok := BuildPredicate(ComparatorRange, RangeValue(start.UnixMilli(), end.UnixMilli()), "requested_at")
	require.True(t, ok)
	assert.Equal(t, "requested_at >= ? AND requested_at <= ?", pred.Expr)
	require.Len(t, pred.Args, 2)
	assert.Equal(t, start, pred.Args[0])
	assert.Equal(t, end, pred.Args[1])
}

func TestBuildPredicate_RangeOpenEnded(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	pred, ok := BuildPredicate(ComparatorRange, RangeValue(start.UnixMilli(), 0), "requested_at")
	require.True(t, ok)
	assert.Equal(t, "requested_at >= ?", pred.Expr)

	pred, ok = BuildPredicate(ComparatorRange, RangeValue(0, start.UnixMilli()), "requested_at")
	require.True(t, ok)
	assert.Equal(t, "requested_at <= ?", pred.Expr)
}

func TestBuildPredicate_RangeWithoutBoundsEmitsNothing(t *testing.T) {
	_, ok := BuildPredicate(ComparatorRange, RangeValue(0, 0), "requested_at")
	assert.False(t, ok)

	_, ok = BuildPredicate(ComparatorRange, TextValue("2024"), "requested_at")
	assert.False(t, ok)
}

func TestBuildPredicate_UnknownComparator(t *testing.T) {
	_, ok := BuildPredicate(Comparator("BETWIXT"), TextValue("x"), "col")
	assert.False(t, ok)
}

func TestValue_UnmarshalJSON(t *testing.T) {
	var text Clause
	require.NoError(t, json.Unmarshal([]byte(`{"field":"statusCode","comparator":"EQUALS","value":"500"}`), &text))
	assert.Equal(t, "500", text.Value.Text)
	assert.False(t, text.Value.IsEmpty())

	var ranged Clause
	require.NoError(t, json.Unmarshal([]byte(`{"field":"requestedAt","comparator":"RANGE","value":[1709251200000,1709337600000]}`), &ranged))
	require.NotNil(t, ranged.Value.Range)
	assert.Equal(t, int64(1709251200000), ranged.Value.Range[0])

	// A missing value key never touches the zero Value.
	var absent Clause
	require.NoError(t, json.Unmarshal([]byte(`{"field":"model","comparator":"EQUALS"}`), &absent))
	assert.Nil(t, absent.Value.Range)
	assert.True(t, absent.Value.IsEmpty())

	var bad Clause
	assert.Error(t, json.Unmarshal([]byte(`{"field":"x","comparator":"EQUALS","value":{"bad":1}}`), &bad))
}
