package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project is the scoping root for all logged calls, datasets and fine-tunes
type Project struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Users    []ProjectUser `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"users,omitempty"`
	Datasets []Dataset     `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"datasets,omitempty"`
}

// TableName specifies the table name for GORM
func (Project) TableName() string {
	return "projects"
}

// BeforeCreate GORM hook
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Project membership roles
const (
	RoleViewer = "VIEWER"
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

// ProjectUser grants a user a role on a project
type ProjectUser struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_project_users_member" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_project_users_member" json:"user_id"`
	Role      string    `gorm:"type:varchar(50);not null;default:'VIEWER'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for GORM
func (ProjectUser) TableName() string {
	return "project_users"
}

// BeforeCreate GORM hook
func (pu *ProjectUser) BeforeCreate(tx *gorm.DB) error {
	if pu.ID == uuid.Nil {
		pu.ID = uuid.New()
	}
	return nil
}

// ValidRoles returns list of valid project roles
func ValidRoles() []string {
	return []string{RoleViewer, RoleMember, RoleAdmin}
}

// IsValidRole checks if a role is valid
func IsValidRole(role string) bool {
	for _, r := range ValidRoles() {
		if r == role {
			return true
		}
	}
	return false
}
