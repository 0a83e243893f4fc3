package repository

import (
	"context"
	"testing"
	"time"

	"whisperchain/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanRepository_ActiveForUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBanRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "banned1", models.RoleSender)
	now := time.Now()

	active, err := repo.ActiveForUser(ctx, user.ID, now)
	require.NoError(t, err)
	assert.Nil(t, active, "no ban yet")

	end := now.Add(5 * time.Minute)
	require.NoError(t, repo.Create(ctx, &models.UserBan{
		UserID:       user.ID,
		BanReason:    models.EncodeBanReason(models.BanTypeTemp5Min, "spamming"),
		BanStartTime: now,
		BanEndTime:   &end,
		IsActive:     true,
	}))

	active, err = repo.ActiveForUser(ctx, user.ID, now)
	require.NoError(t, err)
	require.NotNil(t, active)

	info := active.Info()
	assert.Equal(t, models.BanTypeTemp5Min, info.Type)
	assert.Equal(t, "spamming", info.Reason)
}

func TestBanRepository_LazyExpiry(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBanRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "banned2", models.RoleSender)
	now := time.Now()

	end := now.Add(5 * time.Minute)
	require.NoError(t, repo.Create(ctx, &models.UserBan{
		UserID:       user.ID,
		BanReason:    models.EncodeBanReason(models.BanTypeTemp5Min, "spamming"),
		BanStartTime: now,
		BanEndTime:   &end,
		IsActive:     true,
	}))

	// Reading past the end time deactivates the row and reports no ban.
	active, err := repo.ActiveForUser(ctx, user.ID, now.Add(6*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, active)

	bans, err := repo.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.False(t, bans[0].IsActive, "expired ban should be deactivated on read")
}

func TestBanRepository_PermanentBanNeverExpires(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBanRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "banned3", models.RoleSender)
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &models.UserBan{
		UserID:       user.ID,
		BanReason:    models.EncodeBanReason(models.BanTypeFreeze, "severe abuse"),
		BanStartTime: now,
		IsActive:     true,
	}))

	active, err := repo.ActiveForUser(ctx, user.ID, now.Add(1000*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "permanent", active.Info().ExpiryString())
}

func TestBanRepository_ActiveForToken(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBanRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "banned4", models.RoleSender)
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &models.UserBan{
		UserID:          user.ID,
		BannedTokenHash: "token-xyz",
		BanReason:       models.EncodeBanReason(models.BanTypeTemp1Hour, "harassment"),
		BanStartTime:    now,
		BanEndTime:      ptrTime(now.Add(time.Hour)),
		IsActive:        true,
	}))

	active, err := repo.ActiveForToken(ctx, "token-xyz", now)
	require.NoError(t, err)
	require.NotNil(t, active)

	active, err = repo.ActiveForToken(ctx, "other-token", now)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestBanRepository_DeactivateForUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBanRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "banned5", models.RoleSender)
	now := time.Now()

	n, err := repo.DeactivateForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing to lift")

	require.NoError(t, repo.Create(ctx, &models.UserBan{
		UserID:       user.ID,
		BanReason:    models.EncodeBanReason(models.BanTypeFreeze, "abuse"),
		BanStartTime: now,
		IsActive:     true,
	}))

	n, err = repo.DeactivateForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	active, err := repo.ActiveForUser(ctx, user.ID, now)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
