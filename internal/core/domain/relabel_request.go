package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RelabelRequest tracks one async relabel attempt for one logical entry
// within a batch. Its status column is the only externally observable
// progress signal for the relabel job.
type RelabelRequest struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BatchID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_relabel_requests_pair" json:"batch_id"`
	PersistentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_relabel_requests_pair" json:"persistent_id"`
	Status       string    `gorm:"type:varchar(50);not null;default:'PENDING'" json:"status"`
	ErrorMessage *string   `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (RelabelRequest) TableName() string {
	return "relabel_requests"
}

// BeforeCreate GORM hook
func (r *RelabelRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
