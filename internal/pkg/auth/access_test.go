package auth

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/finetunelab/platform/internal/core/domain"
	apperrors "github.com/finetunelab/platform/internal/pkg/errors"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db, mock
}

func expectMembership(mock sqlmock.Sqlmock, projectID, userID uuid.UUID, role string) {
	rows := sqlmock.NewRows([]string{"id", "project_id", "user_id", "role"})
	if role != "" {
		rows.AddRow(uuid.New().String(), projectID.String(), userID.String(), role)
	}
	mock.ExpectQuery(`SELECT \* FROM "project_users" WHERE project_id = `).WillReturnRows(rows)
}

func TestRequireCanViewProject(t *testing.T) {
	db, mock := newMockDB(t)
	checker := NewChecker(db)
	projectID, userID := uuid.New(), uuid.New()

	expectMembership(mock, projectID, userID, domain.RoleViewer)
	assert.NoError(t, checker.RequireCanViewProject(context.Background(), projectID, userID))

	expectMembership(mock, projectID, userID, "")
	err := checker.RequireCanViewProject(context.Background(), projectID, userID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireCanModifyProject(t *testing.T) {
	db, mock := newMockDB(t)
	checker := NewChecker(db)
	projectID, userID := uuid.New(), uuid.New()

	expectMembership(mock, projectID, userID, domain.RoleViewer)
	err := checker.RequireCanModifyProject(context.Background(), projectID, userID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden), "viewers cannot modify")

	expectMembership(mock, projectID, userID, domain.RoleMember)
	assert.NoError(t, checker.RequireCanModifyProject(context.Background(), projectID, userID))

	expectMembership(mock, projectID, userID, domain.RoleAdmin)
	assert.NoError(t, checker.RequireCanModifyProject(context.Background(), projectID, userID))

	expectMembership(mock, projectID, userID, "")
	err = checker.RequireCanModifyProject(context.Background(), projectID, userID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden), "non-members cannot modify")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireIsAdmin(t *testing.T) {
	db, mock := newMockDB(t)
	checker := NewChecker(db)
	projectID, userID := uuid.New(), uuid.New()

	expectMembership(mock, projectID, userID, domain.RoleMember)
	err := checker.RequireIsAdmin(context.Background(), projectID, userID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))

	expectMembership(mock, projectID, userID, domain.RoleAdmin)
	assert.NoError(t, checker.RequireIsAdmin(context.Background(), projectID, userID))

	assert.NoError(t, mock.ExpectationsWereMet())
}
