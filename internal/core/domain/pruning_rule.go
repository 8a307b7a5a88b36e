package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PruningRule is a text span stripped from training inputs to reduce
// token cost; scoped to a dataset or to a fine-tune
type PruningRule struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	DatasetID    *uuid.UUID `gorm:"type:uuid;index:idx_pruning_rules_dataset" json:"dataset_id,omitempty"`
	FineTuneID   *uuid.UUID `gorm:"type:uuid;index:idx_pruning_rules_fine_tune" json:"fine_tune_id,omitempty"`
	TextToMatch  string     `gorm:"type:text;not null" json:"text_to_match"`
	TokensInText int        `gorm:"not null;default:0" json:"tokens_in_text"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Matches []PruningRuleMatch `gorm:"foreignKey:PruningRuleID;constraint:OnDelete:CASCADE" json:"matches,omitempty"`
}

// TableName specifies the table name for GORM
func (PruningRule) TableName() string {
	return "pruning_rules"
}

// BeforeCreate GORM hook
func (r *PruningRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// PruningRuleMatch records that a rule matches a specific entry version.
// Match sets are recomputed wholesale, never patched incrementally.
type PruningRuleMatch struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PruningRuleID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_pruning_rule_matches_pair" json:"pruning_rule_id"`
	DatasetEntryID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_pruning_rule_matches_pair;index:idx_pruning_rule_matches_entry" json:"dataset_entry_id"`
}

// TableName specifies the table name for GORM
func (PruningRuleMatch) TableName() string {
	return "pruning_rule_matches"
}

// BeforeCreate GORM hook
func (m *PruningRuleMatch) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
