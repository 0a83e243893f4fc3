package repository

import (
	"context"
	"regexp"
	"testing"

	"whisperchain/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name          string
		userID        uint
		mockBehavior  func()
		expectedError bool
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "role", "is_approved", "status"}).
					AddRow(1, "sender1", "sender", true, "approved")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedError {
				require.Error(t, err)
				appErr, ok := err.(*models.AppError)
				require.True(t, ok)
				assert.Equal(t, models.CodeNotFound, appErr.Code)
			} else {
				require.NoError(t, err)
				require.NotNil(t, user)
				assert.Equal(t, tt.userID, user.ID)
				assert.True(t, user.CanSend())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	createTestUser(t, db, "taken1", models.RoleSender)

	err := repo.Create(ctx, &models.User{
		Username:  "taken1",
		Role:      models.RoleReceiver,
		PublicKey: "pk",
	})
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, models.CodeConflict, appErr.Code)
}

func TestUserRepository_ApprovalFlow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	pending := &models.User{
		Username:  "newcomer1",
		Role:      models.RoleSender,
		Status:    models.StatusPending,
		PublicKey: "pk",
	}
	require.NoError(t, repo.Create(ctx, pending))

	list, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "newcomer1", list[0].Username)

	require.NoError(t, repo.SetStatus(ctx, pending.ID, models.StatusApproved, true))

	got, err := repo.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, got.IsApproved)
	assert.Equal(t, models.StatusApproved, got.Status)

	list, err = repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUserRepository_SetStatusMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	err := repo.SetStatus(context.Background(), 4242, models.StatusRejected, false)
	require.Error(t, err)
}

func TestUserRepository_ListByRole(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	createTestUser(t, db, "r1user", models.RoleReceiver)
	createTestUser(t, db, "s1user", models.RoleSender)
	unapproved := &models.User{Username: "r2user", Role: models.RoleReceiver, PublicKey: "pk"}
	require.NoError(t, repo.Create(ctx, unapproved))

	receivers, err := repo.ListByRole(ctx, models.RoleReceiver)
	require.NoError(t, err)
	require.Len(t, receivers, 1)
	assert.Equal(t, "r1user", receivers[0].Username)
}
