package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Evaluation definition types
const (
	EvalTypeFieldComparison = "FIELD_COMPARISON"
	EvalTypeHeadToHead      = "HEAD_TO_HEAD"
)

// Async unit states shared by eval results and relabel requests
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusComplete   = "COMPLETE"
	StatusError      = "ERROR"
)

// IsTerminalStatus reports whether a status is a terminal state
func IsTerminalStatus(status string) bool {
	return status == StatusComplete || status == StatusError
}

// DatasetEval is a named evaluation definition scoped to a dataset
type DatasetEval struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	DatasetID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_dataset_evals_name" json:"dataset_id"`
	Name         string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_dataset_evals_name" json:"name"`
	Type         string    `gorm:"type:varchar(50);not null;default:'HEAD_TO_HEAD'" json:"type"`
	Instructions string    `gorm:"type:text" json:"instructions"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	EvalEntries   []DatasetEvalDatasetEntry `gorm:"foreignKey:DatasetEvalID;constraint:OnDelete:CASCADE" json:"eval_entries,omitempty"`
	OutputSources []DatasetEvalOutputSource `gorm:"foreignKey:DatasetEvalID;constraint:OnDelete:CASCADE" json:"output_sources,omitempty"`
}

// TableName specifies the table name for GORM
func (DatasetEval) TableName() string {
	return "dataset_evals"
}

// BeforeCreate GORM hook
func (e *DatasetEval) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// DatasetEvalDatasetEntry marks an entry as in scope for an eval
type DatasetEvalDatasetEntry struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	DatasetEvalID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_eval_entries_pair" json:"dataset_eval_id"`
	DatasetEntryID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_eval_entries_pair;index:idx_eval_entries_entry" json:"dataset_entry_id"`

	// Relations
	Results []DatasetEvalResult `gorm:"foreignKey:DatasetEvalDatasetEntryID;constraint:OnDelete:CASCADE" json:"results,omitempty"`
}

// TableName specifies the table name for GORM
func (DatasetEvalDatasetEntry) TableName() string {
	return "dataset_eval_dataset_entries"
}

// BeforeCreate GORM hook
func (e *DatasetEvalDatasetEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// OutputSourceOriginal marks the dataset's own recorded output as a source
const OutputSourceOriginal = "ORIGINAL"

// DatasetEvalOutputSource names a model (or the original dataset output)
// whose output participates in an eval
type DatasetEvalOutputSource struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	DatasetEvalID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_output_sources_pair" json:"dataset_eval_id"`
	ModelID       string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_output_sources_pair" json:"model_id"`

	// Relations
	Results []DatasetEvalResult `gorm:"foreignKey:DatasetEvalOutputSourceID;constraint:OnDelete:CASCADE" json:"results,omitempty"`
}

// TableName specifies the table name for GORM
func (s DatasetEvalOutputSource) TableName() string {
	return "dataset_eval_output_sources"
}

// BeforeCreate GORM hook
func (s *DatasetEvalOutputSource) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// DatasetEvalResult is the scored outcome of comparing one output
// source's output against another's for one entry. At most one live
// result exists per (entry, output source, comparison source) triple.
type DatasetEvalResult struct {
	ID                        uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	DatasetEvalDatasetEntryID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_eval_results_triple" json:"dataset_eval_dataset_entry_id"`
	DatasetEvalOutputSourceID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_eval_results_triple" json:"dataset_eval_output_source_id"`
	ComparisonOutputSourceID  *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_eval_results_triple" json:"comparison_output_source_id,omitempty"`
	Score                     *float64   `gorm:"type:decimal(5,4)" json:"score,omitempty"`
	Status                    string     `gorm:"type:varchar(50);not null;default:'PENDING';index:idx_eval_results_status" json:"status"`
	ErrorMessage              *string    `gorm:"type:text" json:"error_message,omitempty"`
	Explanation               string     `gorm:"type:text" json:"explanation,omitempty"`
	CreatedAt                 time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (DatasetEvalResult) TableName() string {
	return "dataset_eval_results"
}

// BeforeCreate GORM hook
func (r *DatasetEvalResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
