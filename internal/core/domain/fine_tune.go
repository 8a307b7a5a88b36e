package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Fine-tune lifecycle states
const (
	FineTuneStatusPending      = "PENDING"
	FineTuneStatusTransferring = "TRANSFERRING_TRAINING_DATA"
	FineTuneStatusTraining     = "TRAINING"
	FineTuneStatusDeployed     = "DEPLOYED"
	FineTuneStatusError        = "ERROR"
)

// ValidFineTuneStatuses returns list of valid fine-tune states
func ValidFineTuneStatuses() []string {
	return []string{
		FineTuneStatusPending,
		FineTuneStatusTransferring,
		FineTuneStatusTraining,
		FineTuneStatusDeployed,
		FineTuneStatusError,
	}
}

// IsValidFineTuneStatus checks if a fine-tune status is valid
func IsValidFineTuneStatus(status string) bool {
	for _, s := range ValidFineTuneStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// FineTune is a trained model artifact
type FineTune struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProjectID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_fine_tunes_project" json:"project_id"`
	DatasetID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_fine_tunes_dataset" json:"dataset_id"`
	Slug         string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_fine_tunes_slug" json:"slug"`
	BaseModel    string     `gorm:"type:varchar(255);not null" json:"base_model"`
	Status       string     `gorm:"type:varchar(50);not null;default:'PENDING';index:idx_fine_tunes_status" json:"status"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message,omitempty"`
	TrainedAt    *time.Time `json:"trained_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	TrainingEntries []FineTuneTrainingEntry `gorm:"foreignKey:FineTuneID;constraint:OnDelete:CASCADE" json:"training_entries,omitempty"`
}

// TableName specifies the table name for GORM
func (FineTune) TableName() string {
	return "fine_tunes"
}

// BeforeCreate GORM hook
func (ft *FineTune) BeforeCreate(tx *gorm.DB) error {
	if ft.ID == uuid.Nil {
		ft.ID = uuid.New()
	}
	return nil
}

// FineTuneTrainingEntry snapshots an entry used to train a fine-tune
type FineTuneTrainingEntry struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	FineTuneID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_training_entries_pair" json:"fine_tune_id"`
	DatasetEntryID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_training_entries_pair;index:idx_training_entries_entry" json:"dataset_entry_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for GORM
func (FineTuneTrainingEntry) TableName() string {
	return "fine_tune_training_entries"
}

// BeforeCreate GORM hook
func (te *FineTuneTrainingEntry) BeforeCreate(tx *gorm.DB) error {
	if te.ID == uuid.Nil {
		te.ID = uuid.New()
	}
	return nil
}

// FineTuneTestingEntry holds one model's generated output for one TEST
// entry. ModelID covers both fine-tune ids and fixed comparison models.
// Its output/score/errorMessage columns are the only externally
// observable progress signal for test generation jobs.
type FineTuneTestingEntry struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ModelID        string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_testing_entries_pair" json:"model_id"`
	DatasetEntryID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_testing_entries_pair;index:idx_testing_entries_entry" json:"dataset_entry_id"`
	CacheKey       string         `gorm:"type:varchar(64);index:idx_testing_entries_cache_key" json:"cache_key"`
	Output         datatypes.JSON `gorm:"type:jsonb" json:"output,omitempty"`
	Score          *float64       `gorm:"type:decimal(5,4)" json:"score,omitempty"`
	ErrorMessage   *string        `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (FineTuneTestingEntry) TableName() string {
	return "fine_tune_testing_entries"
}

// BeforeCreate GORM hook
func (te *FineTuneTestingEntry) BeforeCreate(tx *gorm.DB) error {
	if te.ID == uuid.Nil {
		te.ID = uuid.New()
	}
	return nil
}
