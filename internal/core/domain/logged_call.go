package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LoggedCall records one model invocation made through the proxy
type LoggedCall struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProjectID   uuid.UUID `gorm:"type:uuid;not null;index:idx_logged_calls_project" json:"project_id"`
	RequestedAt time.Time `gorm:"not null;index:idx_logged_calls_requested_at" json:"requested_at"`
	Model       string    `gorm:"type:varchar(255);index:idx_logged_calls_model" json:"model"`
	CacheHit    bool      `gorm:"default:false" json:"cache_hit"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	ModelResponse *LoggedCallModelResponse `gorm:"foreignKey:LoggedCallID;constraint:OnDelete:CASCADE" json:"model_response,omitempty"`
	Tags          []LoggedCallTag          `gorm:"foreignKey:LoggedCallID;constraint:OnDelete:CASCADE" json:"tags,omitempty"`
}

// TableName specifies the table name for GORM
func (LoggedCall) TableName() string {
	return "logged_calls"
}

// BeforeCreate GORM hook
func (lc *LoggedCall) BeforeCreate(tx *gorm.DB) error {
	if lc.ID == uuid.Nil {
		lc.ID = uuid.New()
	}
	return nil
}

// LoggedCallModelResponse is the one-to-one satellite row holding the
// request/response payloads and usage for a logged call
type LoggedCallModelResponse struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	LoggedCallID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_model_responses_call" json:"logged_call_id"`
	StatusCode   *int           `gorm:"index:idx_model_responses_status" json:"status_code,omitempty"`
	ReqPayload   datatypes.JSON `gorm:"type:jsonb" json:"req_payload,omitempty"`
	RespPayload  datatypes.JSON `gorm:"type:jsonb" json:"resp_payload,omitempty"`
	InputTokens  int            `gorm:"default:0" json:"input_tokens"`
	OutputTokens int            `gorm:"default:0" json:"output_tokens"`
	Cost         *float64       `gorm:"type:decimal(18,12)" json:"cost,omitempty"`
	DurationMs   int            `gorm:"default:0" json:"duration_ms"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`
	ReceivedAt   time.Time      `json:"received_at"`
}

// TableName specifies the table name for GORM
func (LoggedCallModelResponse) TableName() string {
	return "logged_call_model_responses"
}

// BeforeCreate GORM hook
func (r *LoggedCallModelResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// LoggedCallTag is a free-form key/value annotation on a logged call.
// Tag names form the open set of dynamic filter fields.
type LoggedCallTag struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProjectID    uuid.UUID `gorm:"type:uuid;not null" json:"project_id"`
	LoggedCallID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_logged_call_tags_call_name" json:"logged_call_id"`
	Name         string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_logged_call_tags_call_name;index:idx_logged_call_tags_name" json:"name"`
	Value        string    `gorm:"type:text" json:"value"`
}

// TableName specifies the table name for GORM
func (LoggedCallTag) TableName() string {
	return "logged_call_tags"
}

// BeforeCreate GORM hook
func (t *LoggedCallTag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
