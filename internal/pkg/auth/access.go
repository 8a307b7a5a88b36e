package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finetunelab/platform/internal/core/domain"
	apperrors "github.com/finetunelab/platform/internal/pkg/errors"
)

// Checker answers project access questions from the membership table
type Checker struct {
	db *gorm.DB
}

// NewChecker creates a new access checker
func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db}
}

func (c *Checker) membership(ctx context.Context, projectID, userID uuid.UUID) (*domain.ProjectUser, error) {
	var member domain.ProjectUser
	err := c.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.DatabaseError(err)
	}
	return &member, nil
}

// RequireCanViewProject allows any member of the project, regardless of role
func (c *Checker) RequireCanViewProject(ctx context.Context, projectID, userID uuid.UUID) error {
	member, err := c.membership(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return apperrors.Forbidden("you do not have access to this project")
	}
	return nil
}

// RequireCanModifyProject allows members with a writing role. Viewers
// can read everything but change nothing.
func (c *Checker) RequireCanModifyProject(ctx context.Context, projectID, userID uuid.UUID) error {
	member, err := c.membership(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return apperrors.Forbidden("you do not have access to this project")
	}
	if member.Role != domain.RoleMember && member.Role != domain.RoleAdmin {
		return apperrors.Forbidden("you do not have permission to modify this project")
	}
	return nil
}

// RequireIsAdmin allows only project admins
func (c *Checker) RequireIsAdmin(ctx context.Context, projectID, userID uuid.UUID) error {
	member, err := c.membership(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return apperrors.Forbidden("you do not have access to this project")
	}
	if member.Role != domain.RoleAdmin {
		return apperrors.Forbidden("this action requires the admin role")
	}
	return nil
}
