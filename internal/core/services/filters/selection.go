package filters

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Selection defines a subset of rows either by explicit inclusion or by
// exclusion from the full filtered set
type Selection struct {
	DefaultToSelected bool        `json:"default_to_selected"`
	SelectedIDs       []uuid.UUID `json:"selected_ids"`
	DeselectedIDs     []uuid.UUID `json:"deselected_ids"`
}

// ApplySelection layers the selection on top of a compiled base query.
// Default-to-selected with no deselection and explicit selection with no
// ids both add no restriction.
func ApplySelection(query *gorm.DB, idColumn string, sel Selection) *gorm.DB {
	if sel.DefaultToSelected {
		if len(sel.DeselectedIDs) > 0 {
			return query.Where(idColumn+" NOT IN ?", sel.DeselectedIDs)
		}
		return query
	}
	if len(sel.SelectedIDs) > 0 {
		return query.Where(idColumn+" IN ?", sel.SelectedIDs)
	}
	return query
}

// RequireSuccessfulResponse restricts a logged-call query to calls whose
// response completed with HTTP 200, so failed calls are never imported
// as training data. The base query must include the response satellite
// join (see BaseLoggedCallQuery).
func RequireSuccessfulResponse(query *gorm.DB) *gorm.DB {
	return query.Where("logged_call_model_responses.status_code = ?", 200)
}
