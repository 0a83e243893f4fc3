package service

import (
	"context"
	"testing"
	"time"

	"whisperchain/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_GetOrCreateToken_StableWithinRound(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "sender1", models.RoleSender)

	first, isNew, err := env.tokenSvc.GetOrCreateToken(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, isNew)

	second, isNew, err := env.tokenSvc.GetOrCreateToken(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.TokenHash, second.TokenHash)
	assert.Equal(t, first.ID, second.ID)
}

func TestTokenService_GetOrCreateToken_RotatesAcrossRounds(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "sender2", models.RoleSender)

	first, _, err := env.tokenSvc.GetOrCreateToken(ctx, user.ID)
	require.NoError(t, err)

	env.fixed.Advance(testRoundLength)

	second, isNew, err := env.tokenSvc.GetOrCreateToken(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEqual(t, first.TokenHash, second.TokenHash)
	assert.Equal(t, first.RoundID+1, second.RoundID)
}

func TestTokenService_GetOrCreateToken_DistinctUsers(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice1", models.RoleSender)
	bob := env.createUser(t, "bob1", models.RoleSender)

	aliceToken, _, err := env.tokenSvc.GetOrCreateToken(ctx, alice.ID)
	require.NoError(t, err)
	bobToken, _, err := env.tokenSvc.GetOrCreateToken(ctx, bob.ID)
	require.NoError(t, err)

	assert.NotEqual(t, aliceToken.TokenHash, bobToken.TokenHash)
}

func TestTokenService_SpendToken_SingleUse(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "sender3", models.RoleSender)

	mapping, _, err := env.tokenSvc.GetOrCreateToken(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, env.tokenSvc.SpendToken(ctx, mapping.TokenHash, user.ID))
	err = env.tokenSvc.SpendToken(ctx, mapping.TokenHash, user.ID)
	requireAppError(t, err, models.CodeTokenAlreadyUsed)
}

func TestTokenService_SpendToken_WrongOwner(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "sender4", models.RoleSender)
	thief := env.createUser(t, "sender5", models.RoleSender)

	mapping, _, err := env.tokenSvc.GetOrCreateToken(ctx, owner.ID)
	require.NoError(t, err)

	// Another user presenting someone else's token must not learn whether
	// it exists.
	err = env.tokenSvc.SpendToken(ctx, mapping.TokenHash, thief.ID)
	requireAppError(t, err, models.CodeTokenNotFoundOrExpired)
}

func TestTokenService_SpendToken_Expired(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "sender6", models.RoleSender)

	mapping, _, err := env.tokenSvc.GetOrCreateToken(ctx, user.ID)
	require.NoError(t, err)

	env.fixed.Advance(25 * time.Hour)

	err = env.tokenSvc.SpendToken(ctx, mapping.TokenHash, user.ID)
	requireAppError(t, err, models.CodeTokenNotFoundOrExpired)
}

func TestTokenService_FreezeToken(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "sender7", models.RoleSender)
	moderator := env.createUser(t, "mod1", models.RoleModerator)

	mapping, _, err := env.tokenSvc.GetOrCreateToken(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, env.tokenSvc.FreezeToken(ctx, moderator.ID, mapping.TokenHash))

	// Frozen blocks the spend even though is_used was still false.
	err = env.tokenSvc.SpendToken(ctx, mapping.TokenHash, user.ID)
	appErr := requireAppError(t, err, models.CodeTokenFrozen)
	assert.NotEmpty(t, appErr.Meta["frozen_at"])

	// A second freeze is a conflict, not a silent success.
	err = env.tokenSvc.FreezeToken(ctx, moderator.ID, mapping.TokenHash)
	requireAppError(t, err, models.CodeConflict)

	require.NoError(t, env.tokenSvc.UnfreezeToken(ctx, moderator.ID, mapping.TokenHash))
	require.NoError(t, env.tokenSvc.SpendToken(ctx, mapping.TokenHash, user.ID))

	assert.Equal(t,
		[]models.AuditAction{models.AuditFreeze, models.AuditUnfreeze},
		env.auditActions(t))
}

func TestTokenService_FreezeToken_Unknown(t *testing.T) {
	env := setupEnv(t)
	moderator := env.createUser(t, "mod2", models.RoleModerator)

	err := env.tokenSvc.FreezeToken(context.Background(), moderator.ID, "no-such-hash")
	requireAppError(t, err, models.CodeNotFound)
}

func TestTokenService_Unmask(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "sender8", models.RoleSender)

	mapping, _, err := env.tokenSvc.GetOrCreateToken(ctx, user.ID)
	require.NoError(t, err)

	unmasked, err := env.tokenSvc.Unmask(ctx, mapping.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, user.ID, unmasked)
}

func TestTokenService_Status(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "sender9", models.RoleSender)

	mapping, _, err := env.tokenSvc.GetOrCreateToken(ctx, user.ID)
	require.NoError(t, err)

	status, err := env.tokenSvc.Status(ctx, mapping.TokenHash)
	require.NoError(t, err)
	assert.False(t, status.IsUsed)
	assert.False(t, status.Inferred)

	require.NoError(t, env.tokenSvc.SpendToken(ctx, mapping.TokenHash, user.ID))

	status, err = env.tokenSvc.Status(ctx, mapping.TokenHash)
	require.NoError(t, err)
	assert.True(t, status.IsUsed)
	assert.Equal(t, 1, status.MessagesSent)

	_, err = env.tokenSvc.Status(ctx, "unknown-hash")
	requireAppError(t, err, models.CodeNotFound)
}
