package filters

import (
	"fmt"

	"gorm.io/gorm"
)

// Schema describes how filter clauses map onto one target entity: which
// fields are fixed columns ("default" fields) and which side table holds
// the open set of dynamic tag fields.
type Schema struct {
	// Table is the target entity's table name
	Table string
	// IDColumn is the qualified primary key column, e.g. "logged_calls.id"
	IDColumn string
	// DefaultFields maps a default field name to its qualified column
	DefaultFields map[string]string
	// TagTable is the key/value side table for dynamic fields; empty when
	// the entity has no tag table, in which case unknown fields are no-ops
	TagTable string
	// TagOwnerColumn is the tag table's foreign key to the target entity
	TagOwnerColumn string
}

// LoggedCallSchema is the filter target for logged calls. Callers must
// start from BaseLoggedCallQuery so the response satellite columns
// resolve.
func LoggedCallSchema() Schema {
	return Schema{
		Table:    "logged_calls",
		IDColumn: "logged_calls.id",
		DefaultFields: map[string]string{
			"requestedAt": "logged_calls.requested_at",
			"model":       "logged_calls.model",
			"statusCode":  "logged_call_model_responses.status_code",
			"durationMs":  "logged_call_model_responses.duration_ms",
			"cost":        "logged_call_model_responses.cost",
		},
		TagTable:       "logged_call_tags",
		TagOwnerColumn: "logged_call_id",
	}
}

// DatasetEntrySchema is the filter target for dataset entries
func DatasetEntrySchema() Schema {
	return Schema{
		Table:    "dataset_entries",
		IDColumn: "dataset_entries.id",
		DefaultFields: map[string]string{
			"createdAt":  "dataset_entries.created_at",
			"split":      "dataset_entries.split",
			"provenance": "dataset_entries.provenance",
			"importId":   "dataset_entries.import_id",
		},
	}
}

// DatasetEvalResultSchema is the filter target for evaluation result
// rows. Results carry no tag table, so unknown fields are no-ops.
func DatasetEvalResultSchema() Schema {
	return Schema{
		Table:    "dataset_eval_results",
		IDColumn: "dataset_eval_results.id",
		DefaultFields: map[string]string{
			"status":    "dataset_eval_results.status",
			"score":     "dataset_eval_results.score",
			"createdAt": "dataset_eval_results.created_at",
			"modelId":   "dataset_eval_output_sources.model_id",
		},
	}
}

// BaseLoggedCallQuery starts a logged-call query with the one-to-one
// response satellite joined, scoped to a project
func BaseLoggedCallQuery(db *gorm.DB, projectID interface{}) *gorm.DB {
	return db.Table("logged_calls").
		Joins("LEFT JOIN logged_call_model_responses ON logged_call_model_responses.logged_call_id = logged_calls.id").
		Where("logged_calls.project_id = ?", projectID)
}

// BaseDatasetEntryQuery starts a dataset-entry query restricted to live
// (non-outdated) rows of one dataset
func BaseDatasetEntryQuery(db *gorm.DB, datasetID interface{}) *gorm.DB {
	return db.Table("dataset_entries").
		Where("dataset_entries.dataset_id = ?", datasetID).
		Where("dataset_entries.outdated = ?", false)
}

// BaseEvalResultQuery starts an eval-result query with its assignment
// and output-source satellites joined, scoped to one evaluation
func BaseEvalResultQuery(db *gorm.DB, datasetEvalID interface{}) *gorm.DB {
	return db.Table("dataset_eval_results").
		Joins("LEFT JOIN dataset_eval_dataset_entries ON dataset_eval_dataset_entries.id = dataset_eval_results.dataset_eval_dataset_entry_id").
		Joins("LEFT JOIN dataset_eval_output_sources ON dataset_eval_output_sources.id = dataset_eval_results.dataset_eval_output_source_id").
		Where("dataset_eval_dataset_entries.dataset_eval_id = ?", datasetEvalID)
}

// Compile folds the ordered clause list into the base query. No
// execution happens here: the result is a composable builder that
// downstream code may further filter, project, count, or paginate, so
// row counts and row pages always share one filter path.
func Compile(base *gorm.DB, schema Schema, clauses []Clause) *gorm.DB {
	query := base
	for i, clause := range clauses {
		query = applyClause(query, schema, clause, i)
	}
	return query
}

func applyClause(query *gorm.DB, schema Schema, clause Clause, position int) *gorm.DB {
	if column, ok := schema.DefaultFields[clause.Field]; ok {
		pred, ok := BuildPredicate(clause.Comparator, clause.Value, column)
		if !ok {
			return query
		}
		return query.Where(pred.Expr, pred.Args...)
	}

	if schema.TagTable == "" {
		return query
	}

	// Every dynamic clause gets its own join alias: one shared join would
	// require a single tag row to satisfy all clauses simultaneously.
	alias := fmt.Sprintf("tf%d", position)
	pred, ok := BuildPredicate(clause.Comparator, clause.Value, alias+".value")
	if !ok {
		return query
	}

	query = query.Joins(
		fmt.Sprintf("LEFT JOIN %s AS %s ON %s.%s = %s AND %s.name = ?",
			schema.TagTable, alias, alias, schema.TagOwnerColumn, schema.IDColumn, alias),
		clause.Field,
	)

	if clause.Comparator.Negated() {
		return query.Where("("+alias+".value IS NULL OR "+pred.Expr+")", pred.Args...)
	}
	return query.Where(pred.Expr, pred.Args...)
}
