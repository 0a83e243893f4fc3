package service

import (
	"testing"
	"time"

	"whisperchain/internal/clock"
	"whisperchain/internal/crypto"
	"whisperchain/internal/database"
	"whisperchain/internal/models"
	"whisperchain/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// testEnv wires the full service stack against an in-memory store and a
// controllable clock.
type testEnv struct {
	db       *gorm.DB
	fixed    *clock.Fixed
	rounds   *clock.RoundClock
	tokens   repository.TokenRepository
	users    repository.UserRepository
	bans     repository.BanRepository
	audits   repository.AuditRepository
	messages repository.MessageRepository
	tokenSvc *TokenService
	modSvc   *ModerationService
	msgSvc   *MessageService
}

const testRoundLength = 120 * time.Second

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	fixed := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	rounds := clock.NewRoundClock(fixed, testRoundLength)

	env := &testEnv{
		db:       db,
		fixed:    fixed,
		rounds:   rounds,
		tokens:   repository.NewTokenRepository(db),
		users:    repository.NewUserRepository(db),
		bans:     repository.NewBanRepository(db),
		audits:   repository.NewAuditRepository(db),
		messages: repository.NewMessageRepository(db),
	}

	codec := crypto.NewIDCodec("service-test-secret")
	env.tokenSvc = NewTokenService(env.tokens, env.messages, env.audits, rounds, codec, 24*time.Hour)
	env.modSvc = NewModerationService(env.bans, env.tokens, env.audits, env.messages, env.tokenSvc, rounds)
	env.msgSvc = NewMessageService(db, env.users, env.messages, env.tokenSvc, env.modSvc)
	return env
}

func (e *testEnv) createUser(t *testing.T, username string, role models.UserRole) *models.User {
	t.Helper()

	publicKey, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	user := &models.User{
		Username:   username,
		Role:       role,
		IsApproved: true,
		Status:     models.StatusApproved,
		PublicKey:  publicKey,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) auditActions(t *testing.T) []models.AuditAction {
	t.Helper()

	var entries []models.AuditLog
	require.NoError(t, e.db.Order("id ASC").Find(&entries).Error)
	actions := make([]models.AuditAction, len(entries))
	for i, entry := range entries {
		actions[i] = entry.ActionType
	}
	return actions
}

func requireAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()

	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok, "expected *models.AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code)
	return appErr
}
