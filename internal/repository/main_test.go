package repository

import (
	"testing"

	"whisperchain/internal/database"
	"whisperchain/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string, role models.UserRole) *models.User {
	t.Helper()

	user := &models.User{
		Username:   username,
		Role:       role,
		IsApproved: true,
		Status:     models.StatusApproved,
		PublicKey:  "test-public-key",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
