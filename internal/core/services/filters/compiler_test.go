package filters

import (
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newTestDB opens GORM over a sqlmock connection; queries are only ever
// built in DryRun sessions, never executed
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db
}

func findSQL(t *testing.T, query *gorm.DB) (string, []interface{}) {
	t.Helper()
	var rows []map[string]interface{}
	stmt := query.Session(&gorm.Session{DryRun: true}).Find(&rows).Statement
	require.NoError(t, stmt.Error)
	return stmt.SQL.String(), stmt.Vars
}

func countSQL(t *testing.T, query *gorm.DB) (string, []interface{}) {
	t.Helper()
	var n int64
	stmt := query.Session(&gorm.Session{DryRun: true}).Count(&n).Statement
	require.NoError(t, stmt.Error)
	return stmt.SQL.String(), stmt.Vars
}

func TestCompile_DefaultFieldPredicate(t *testing.T) {
	db := newTestDB(t)
	projectID := uuid.New()

	query := Compile(BaseLoggedCallQuery(db, projectID), LoggedCallSchema(), []Clause{
		{Field: "statusCode", Comparator: ComparatorEquals, Value: TextValue("500")},
	})

	sql, vars := findSQL(t, query)
	assert.Contains(t, sql, "logged_call_model_responses.status_code = ")
	assert.Contains(t, sql, "LEFT JOIN logged_call_model_responses")
	assert.Contains(t, vars, "500")
}

func TestCompile_EmptyValueClauseIsDropped(t *testing.T) {
	db := newTestDB(t)
	projectID := uuid.New()

	withEmpty := Compile(BaseLoggedCallQuery(db, projectID), LoggedCallSchema(), []Clause{
		{Field: "model", Comparator: ComparatorEquals, Value: TextValue("")},
		{Field: "some.tag", Comparator: ComparatorContains, Value: TextValue("")},
	})
	without := Compile(BaseLoggedCallQuery(db, projectID), LoggedCallSchema(), nil)

	sqlWithEmpty, _ := findSQL(t, withEmpty)
	sqlWithout, _ := findSQL(t, without)
	assert.Equal(t, sqlWithout, sqlWithEmpty)
}

func TestCompile_EachTagClauseGetsItsOwnJoin(t *testing.T) {
	db := newTestDB(t)
	projectID := uuid.New()

	query := Compile(BaseLoggedCallQuery(db, projectID), LoggedCallSchema(), []Clause{
		{Field: "prompt_id", Comparator: ComparatorEquals, Value: TextValue("extract-recipe")},
		{Field: "environment", Comparator: ComparatorEquals, Value: TextValue("production")},
	})

	sql, vars := findSQL(t, query)

	assert.Contains(t, sql, "LEFT JOIN logged_call_tags AS tf0 ON tf0.logged_call_id = logged_calls.id AND tf0.name = ")
	assert.Contains(t, sql, "LEFT JOIN logged_call_tags AS tf1 ON tf1.logged_call_id = logged_calls.id AND tf1.name = ")
	assert.Contains(t, sql, "tf0.value = ")
	assert.Contains(t, sql, "tf1.value = ")

	assert.Contains(t, vars, "prompt_id")
	assert.Contains(t, vars, "environment")
	assert.Contains(t, vars, "extract-recipe")
	assert.Contains(t, vars, "production")
}

func TestCompile_NegatedTagClauseAdmitsMissingTag(t *testing.T) {
	db := newTestDB(t)
	projectID := uuid.New()

	query := Compile(BaseLoggedCallQuery(db, projectID), LoggedCallSchema(), []Clause{
		{Field: "environment", Comparator: ComparatorNotEquals, Value: TextValue("staging")},
	})

	sql, _ := findSQL(t, query)
	assert.Contains(t, sql, "(tf0.value IS NULL OR tf0.value <> ")
}

func TestCompile_CountAndRowsShareOneFilterPath(t *testing.T) {
	db := newTestDB(t)
	projectID := uuid.New()

	clauses := []Clause{
		{Field: "statusCode", Comparator: ComparatorEquals, Value: TextValue("200")},
		{Field: "prompt_id", Comparator: ComparatorContains, Value: TextValue("recipe")},
	}
	compiled := Compile(BaseLoggedCallQuery(db, projectID), LoggedCallSchema(), clauses)

	rowsSQL, rowsVars := findSQL(t, compiled)
	cntSQL, cntVars := countSQL(t, compiled)

	// Identical WHERE clause for both finishers
	rowsWhere := rowsSQL[strings.Index(rowsSQL, "WHERE"):]
	cntWhere := cntSQL[strings.Index(cntSQL, "WHERE"):]
	assert.Equal(t, rowsWhere, cntWhere)
	assert.Equal(t, rowsVars, cntVars)
}

func TestCompile_UnknownFieldWithoutTagTableIsNoOp(t *testing.T) {
	db := newTestDB(t)
	datasetID := uuid.New()

	withUnknown := Compile(BaseDatasetEntryQuery(db, datasetID), DatasetEntrySchema(), []Clause{
		{Field: "no_such_field", Comparator: ComparatorEquals, Value: TextValue("x")},
	})
	without := Compile(BaseDatasetEntryQuery(db, datasetID), DatasetEntrySchema(), nil)

	sqlWithUnknown, _ := findSQL(t, withUnknown)
	sqlWithout, _ := findSQL(t, without)
	assert.Equal(t, sqlWithout, sqlWithUnknown)
}

func TestCompile_EvalResultSchema(t *testing.T) {
	db := newTestDB(t)
	evalID := uuid.New()

	query := Compile(BaseEvalResultQuery(db, evalID), DatasetEvalResultSchema(), []Clause{
		{Field: "status", Comparator: ComparatorEquals, Value: TextValue("COMPLETE")},
		{Field: "modelId", Comparator: ComparatorEquals, Value: TextValue("gpt-4o")},
	})

	sql, vars := findSQL(t, query)
	assert.Contains(t, sql, "LEFT JOIN dataset_eval_dataset_entries")
	assert.Contains(t, sql, "LEFT JOIN dataset_eval_output_sources")
	assert.Contains(t, sql, "dataset_eval_results.status = ")
	assert.Contains(t, sql, "dataset_eval_output_sources.model_id = ")
	assert.Contains(t, vars, "COMPLETE")
	assert.Contains(t, vars, "gpt-4o")
}

func TestCompile_DateRangeClause(t *testing.T) {
	db := newTestDB(t)
	projectID := uuid.New()

	query := Compile(BaseLoggedCallQuery(db, projectID), LoggedCallSchema(), []Clause{
		{Field: "requestedAt", Comparator: ComparatorRange, Value: RangeValue(1709251200000, 0)},
	})

	sql, _ := findSQL(t, query)
	assert.Contains(t, sql, "logged_calls.requested_at >= ")
	assert.NotContains(t, sql, "logged_calls.requested_at <= ")
}

func TestApplySelection(t *testing.T) {
	db := newTestDB(t)
	projectID := uuid.New()
	idA, idB := uuid.New(), uuid.New()

	base := func() *gorm.DB {
		return Compile(BaseLoggedCallQuery(db, projectID), LoggedCallSchema(), nil)
	}

	// defaultToSelected with deselection excludes
	sql, vars := findSQL(t, ApplySelection(base(), "logged_calls.id", Selection{
		DefaultToSelected: true,
		DeselectedIDs:     []uuid.UUID{idA, idB},
	}))
	assert.Contains(t, sql, "logged_calls.id NOT IN ")
	assert.Contains(t, vars, idA)

	// defaultToSelected with no deselection adds nothing
	sqlAll, _ := findSQL(t, ApplySelection(base(), "logged_calls.id", Selection{DefaultToSelected: true}))
	sqlBase, _ := findSQL(t, base())
	assert.Equal(t, sqlBase, sqlAll)

	// explicit selection restricts
	sql, vars = findSQL(t, ApplySelection(base(), "logged_calls.id", Selection{
		SelectedIDs: []uuid.UUID{idA},
	}))
	assert.Contains(t, sql, "logged_calls.id IN ")
	assert.Contains(t, vars, idA)
}

func TestRequireSuccessfulResponse(t *testing.T) {
	db := newTestDB(t)
	projectID := uuid.New()

	sql, vars := findSQL(t, RequireSuccessfulResponse(BaseLoggedCallQuery(db, projectID)))
	assert.Contains(t, sql, "logged_call_model_responses.status_code = ")
	assert.Contains(t, vars, 200)
}
