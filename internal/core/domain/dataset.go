package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Dataset owns entries, evals, pruning rules and fine-tunes
type Dataset struct {
	ID                      uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProjectID               uuid.UUID      `gorm:"type:uuid;not null;index:idx_datasets_project" json:"project_id"`
	Name                    string         `gorm:"type:varchar(255);not null" json:"name"`
	EnabledComparisonModels datatypes.JSON `gorm:"type:jsonb" json:"enabled_comparison_models,omitempty"`
	TrainingRatio           float64        `gorm:"not null;default:0.8" json:"training_ratio"`
	CreatedAt               time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time      `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Entries      []DatasetEntry `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE" json:"entries,omitempty"`
	Evals        []DatasetEval  `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE" json:"evals,omitempty"`
	PruningRules []PruningRule  `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE" json:"pruning_rules,omitempty"`
	FineTunes    []FineTune     `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE" json:"fine_tunes,omitempty"`
}

// TableName specifies the table name for GORM
func (Dataset) TableName() string {
	return "datasets"
}

// BeforeCreate GORM hook
func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// ComparisonModels decodes the enabled comparison model ids
func (d *Dataset) ComparisonModels() []string {
	if len(d.EnabledComparisonModels) == 0 {
		return nil
	}
	var models []string
	if err := json.Unmarshal(d.EnabledComparisonModels, &models); err != nil {
		return nil
	}
	return models
}

// Entry splits
const (
	SplitTrain = "TRAIN"
	SplitTest  = "TEST"
)

// Entry provenance values
const (
	ProvenanceRequestLog       = "REQUEST_LOG"
	ProvenanceUpload           = "UPLOAD"
	ProvenanceRelabeledByModel = "RELABELED_BY_MODEL"
	ProvenanceRelabeledByHuman = "RELABELED_BY_HUMAN"
)

// ValidSplits returns list of valid entry splits
func ValidSplits() []string {
	return []string{SplitTrain, SplitTest}
}

// IsValidSplit checks if a split is valid
func IsValidSplit(split string) bool {
	for _, s := range ValidSplits() {
		if s == split {
			return true
		}
	}
	return false
}

// DatasetEntry is one immutable version of a training/testing example.
// Edits never mutate a row: the live row is marked outdated and a new
// row is inserted carrying the same PersistentID and SortKey.
type DatasetEntry struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	DatasetID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_dataset_entries_dataset" json:"dataset_id"`
	Messages        datatypes.JSON `gorm:"type:jsonb;not null" json:"messages"`
	Functions       datatypes.JSON `gorm:"type:jsonb" json:"functions,omitempty"`
	FunctionCall    datatypes.JSON `gorm:"type:jsonb" json:"function_call,omitempty"`
	Tools           datatypes.JSON `gorm:"type:jsonb" json:"tools,omitempty"`
	ToolChoice      datatypes.JSON `gorm:"type:jsonb" json:"tool_choice,omitempty"`
	ResponseFormat  datatypes.JSON `gorm:"type:jsonb" json:"response_format,omitempty"`
	Output          datatypes.JSON `gorm:"type:jsonb" json:"output,omitempty"`
	InputTokens     *int           `json:"input_tokens,omitempty"`
	OutputTokens    *int           `json:"output_tokens,omitempty"`
	Split           string         `gorm:"type:varchar(10);not null;default:'TRAIN';index:idx_dataset_entries_split" json:"split"`
	Outdated        bool           `gorm:"not null;default:false;index:idx_dataset_entries_outdated" json:"outdated"`
	SortKey         string         `gorm:"type:varchar(255);not null;index:idx_dataset_entries_sort_key" json:"sort_key"`
	PersistentID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_dataset_entries_persistent" json:"persistent_id"`
	Provenance      string         `gorm:"type:varchar(50);not null" json:"provenance"`
	ImportID        uuid.UUID      `gorm:"type:uuid;index:idx_dataset_entries_import" json:"import_id"`
	AuthoringUserID *uuid.UUID     `gorm:"type:uuid" json:"authoring_user_id,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (DatasetEntry) TableName() string {
	return "dataset_entries"
}

// BeforeCreate GORM hook
func (e *DatasetEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.PersistentID == uuid.Nil {
		e.PersistentID = uuid.New()
	}
	return nil
}

// InputText renders the entry's message contents as plain text. Pruning
// rules match against this rendering, and the token estimator consumes it.
func (e *DatasetEntry) InputText() string {
	if len(e.Messages) == 0 {
		return ""
	}
	var messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(e.Messages, &messages); err != nil {
		return ""
	}
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// OutputText renders the entry's output message content as plain text
func (e *DatasetEntry) OutputText() string {
	if len(e.Output) == 0 {
		return ""
	}
	var output struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(e.Output, &output); err != nil {
		return ""
	}
	return output.Content
}
