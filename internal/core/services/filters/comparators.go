package filters

import (
	"strings"
	"time"
)

// Predicate is a typed SQL fragment with its bind arguments. Column
// identifiers inside Expr are always internal names or compiler-generated
// aliases; user-supplied values only ever travel through Args.
type Predicate struct {
	Expr string
	Args []interface{}
}

// BuildPredicate translates a (comparator, value) pair into a predicate
// against the named column. Returns false when the clause should emit no
// predicate at all: an unknown comparator, an empty value, or a range
// with both bounds absent. IS_EMPTY / IS_NOT_EMPTY need no value and are
// exempt from the empty-value rule.
func BuildPredicate(comparator Comparator, value Value, column string) (Predicate, bool) {
	switch comparator {
	case ComparatorIsEmpty:
		return Predicate{Expr: "(" + column + " IS NULL OR " + column + " = '')"}, true
	case ComparatorIsNotEmpty:
		return Predicate{Expr: "(" + column + " IS NOT NULL AND " + column + " <> '')"}, true
	case ComparatorRange:
		return buildRangePredicate(value, column)
	}

	if value.IsEmpty() {
		return Predicate{}, false
	}

	switch comparator {
	case ComparatorEquals:
		return Predicate{Expr: column + " = ?", Args: []interface{}{value.Text}}, true
	case ComparatorNotEquals:
		return Predicate{Expr: column + " <> ?", Args: []interface{}{value.Text}}, true
	case ComparatorContains:
		return Predicate{Expr: column + " LIKE ?", Args: []interface{}{"%" + escapeLike(value.Text) + "%"}}, true
	case ComparatorNotContains:
		return Predicate{Expr: column + " NOT LIKE ?", Args: []interface{}{"%" + escapeLike(value.Text) + "%"}}, true
	case ComparatorGreaterThan:
		return Predicate{Expr: column + " > ?", Args: []interface{}{value.Text}}, true
	case ComparatorLessThan:
		return Predicate{Expr: column + " < ?", Args: []interface{}{value.Text}}, true
	}

	return Predicate{}, false
}

// buildRangePredicate handles the [startMillis, endMillis] date
// comparator. A zero bound leaves that side of the interval open.
func buildRangePredicate(value Value, column string) (Predicate, bool) {
	if value.Range == nil {
		return Predicate{}, false
	}

	exprs := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)

	if value.Range[0] > 0 {
		exprs = append(exprs, column+" >= ?")
		args = append(args, time.UnixMilli(value.Range[0]).UTC())
	}
	if value.Range[1] > 0 {
		exprs = append(exprs, column+" <= ?")
		args = append(args, time.UnixMilli(value.Range[1]).UTC())
	}

	if len(exprs) == 0 {
		return Predicate{}, false
	}

	return Predicate{Expr: strings.Join(exprs, " AND "), Args: args}, true
}

// escapeLike escapes LIKE metacharacters in a user-supplied value
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
