package filters

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Comparator is one of the closed set of filter comparison operators
type Comparator string

const (
	ComparatorEquals      Comparator = "EQUALS"
	ComparatorNotEquals   Comparator = "NOT_EQUALS"
	ComparatorContains    Comparator = "CONTAINS"
	ComparatorNotContains Comparator = "NOT_CONTAINS"
	ComparatorGreaterThan Comparator = "GREATER_THAN"
	ComparatorLessThan    Comparator = "LESS_THAN"
	ComparatorIsEmpty     Comparator = "IS_EMPTY"
	ComparatorIsNotEmpty  Comparator = "IS_NOT_EMPTY"

	// ComparatorRange is the date/range comparator; its value is a
	// [startMillis, endMillis] pair where either bound may be absent
	ComparatorRange Comparator = "RANGE"
)

// TextComparators returns the comparators that apply to text columns
func TextComparators() []Comparator {
	return []Comparator{
		ComparatorEquals,
		ComparatorNotEquals,
		ComparatorContains,
		ComparatorNotContains,
		ComparatorGreaterThan,
		ComparatorLessThan,
		ComparatorIsEmpty,
		ComparatorIsNotEmpty,
	}
}

// IsValid reports whether c belongs to the closed comparator set
func (c Comparator) IsValid() bool {
	if c == ComparatorRange {
		return true
	}
	for _, tc := range TextComparators() {
		if c == tc {
			return true
		}
	}
	return false
}

// Negated reports whether the comparator excludes rather than selects.
// Tag-table predicates for negated comparators must also admit rows
// where the tag row is absent (NULL after the left join).
func (c Comparator) Negated() bool {
	return c == ComparatorNotEquals || c == ComparatorNotContains
}

// Value is a filter clause value: a string, a [startMillis, endMillis]
// pair, or absent
type Value struct {
	Text  string
	Range *[2]int64
}

// UnmarshalJSON accepts string, two-element number array, or null
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{Text: s}
		return nil
	}
	var r [2]int64
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("filter value must be a string or [start, end] pair: %w", err)
	}
	*v = Value{Range: &r}
	return nil
}

// MarshalJSON emits the wire shape the UI sends
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Range != nil {
		return json.Marshal(*v.Range)
	}
	if v.Text == "" {
		return []byte("null"), nil
	}
	return json.Marshal(v.Text)
}

// IsEmpty reports whether the value carries nothing to filter on
func (v Value) IsEmpty() bool {
	if v.Range != nil {
		return v.Range[0] == 0 && v.Range[1] == 0
	}
	return strings.TrimSpace(v.Text) == ""
}

// TextValue builds a string value
func TextValue(s string) Value {
	return Value{Text: s}
}

// RangeValue builds a [startMillis, endMillis] value; a zero bound is open
func RangeValue(startMillis, endMillis int64) Value {
	r := [2]int64{startMillis, endMillis}
	return Value{Range: &r}
}

// Clause is one user-authored filter triple. Field is either one of the
// target entity's default fields or an arbitrary tag name.
type Clause struct {
	Field      string     `json:"field"`
	Comparator Comparator `json:"comparator"`
	Value      Value      `json:"value"`
}
