// Package service contains the application's business logic.
package service

import (
	"context"
	"time"

	"whisperchain/internal/clock"
	"whisperchain/internal/crypto"
	"whisperchain/internal/middleware"
	"whisperchain/internal/models"
	"whisperchain/internal/repository"

	"gorm.io/gorm"
)

// TokenService manages the per-round pseudonym lifecycle: issuing tokens,
// spending them, freezing them, and unmasking them for moderators.
type TokenService struct {
	tokens   repository.TokenRepository
	messages repository.MessageRepository
	audits   repository.AuditRepository
	rounds   *clock.RoundClock
	codec    *crypto.IDCodec
	lifetime time.Duration
}

// NewTokenService returns a new TokenService.
func NewTokenService(
	tokens repository.TokenRepository,
	messages repository.MessageRepository,
	audits repository.AuditRepository,
	rounds *clock.RoundClock,
	codec *crypto.IDCodec,
	lifetime time.Duration,
) *TokenService {
	return &TokenService{
		tokens:   tokens,
		messages: messages,
		audits:   audits,
		rounds:   rounds,
		codec:    codec,
		lifetime: lifetime,
	}
}

// Rounds exposes the round clock for handlers that report round boundaries.
func (s *TokenService) Rounds() *clock.RoundClock {
	return s.rounds
}

// Lifetime returns how long an issued token stays spendable.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// GetOrCreateToken returns the user's token for the current round, creating
// the mapping if this is the user's first send attempt in the round. Repeated
// calls within a round return the same hash; concurrent first callers converge
// on a single row through the registry's insert-or-get.
func (s *TokenService) GetOrCreateToken(ctx context.Context, userID uint) (*models.TokenMapping, bool, error) {
	return s.getOrCreate(ctx, s.tokens, userID)
}

// GetOrCreateTokenIn runs the issuance on the caller's transaction handle.
func (s *TokenService) GetOrCreateTokenIn(ctx context.Context, tx *gorm.DB, userID uint) (*models.TokenMapping, bool, error) {
	return s.getOrCreate(ctx, repository.NewTokenRepository(tx), userID)
}

func (s *TokenService) getOrCreate(ctx context.Context, tokens repository.TokenRepository, userID uint) (*models.TokenMapping, bool, error) {
	roundID := s.rounds.CurrentRound()

	existing, err := tokens.GetByUserAndRound(ctx, userID, roundID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		middleware.TokensIssued.WithLabelValues("existing").Inc()
		return existing, false, nil
	}

	encryptedID, err := s.codec.Encrypt(userID)
	if err != nil {
		return nil, false, models.NewInternalError(err)
	}

	now := s.rounds.Now()
	mapping := &models.TokenMapping{
		TokenHash:       crypto.TokenFingerprint(userID, roundID),
		EncryptedUserID: encryptedID,
		UserID:          userID,
		RoundID:         roundID,
		ExpiresAt:       now.Add(s.lifetime),
	}

	stored, created, err := tokens.InsertOrGet(ctx, mapping)
	if err != nil {
		return nil, false, err
	}

	if created {
		middleware.TokensIssued.WithLabelValues("created").Inc()
	} else {
		middleware.TokensIssued.WithLabelValues("raced").Inc()
	}
	return stored, created, nil
}

// SpendToken atomically consumes the token for one message send. The failure
// is classified after the fact: the conditional update tells us only that the
// spend lost, a follow-up read tells us why.
func (s *TokenService) SpendToken(ctx context.Context, tokenHash string, userID uint) error {
	return s.spend(ctx, s.tokens, tokenHash, userID)
}

// SpendTokenIn consumes the token on the caller's transaction handle, so a
// later failure in the same transaction rolls the spend back.
func (s *TokenService) SpendTokenIn(ctx context.Context, tx *gorm.DB, tokenHash string, userID uint) error {
	return s.spend(ctx, repository.NewTokenRepository(tx), tokenHash, userID)
}

func (s *TokenService) spend(ctx context.Context, tokens repository.TokenRepository, tokenHash string, userID uint) error {
	now := s.rounds.Now()

	ok, err := tokens.MarkUsed(ctx, tokenHash, userID, now)
	if err != nil {
		return err
	}
	if ok {
		middleware.TokenValidations.WithLabelValues("ok").Inc()
		return nil
	}

	mapping, err := tokens.GetByHash(ctx, tokenHash)
	if err != nil {
		return err
	}
	switch {
	case mapping == nil, mapping.UserID != userID, mapping.ExpiredAt(now):
		middleware.TokenValidations.WithLabelValues("not_found_or_expired").Inc()
		return models.NewTokenNotFoundOrExpiredError()
	case mapping.IsFrozen:
		middleware.TokenValidations.WithLabelValues("frozen").Inc()
		frozenAt := ""
		if mapping.FrozenAt != nil {
			frozenAt = mapping.FrozenAt.UTC().Format(time.RFC3339)
		}
		return models.NewTokenFrozenError(frozenAt)
	default:
		middleware.TokenValidations.WithLabelValues("already_used").Inc()
		return models.NewTokenAlreadyUsedError()
	}
}

// Resolve looks a token hash up as a registered mapping first, then falls back
// to a message that carried the hash. Returns a NotFound error when the hash
// is unknown to both tables.
func (s *TokenService) Resolve(ctx context.Context, tokenHash string) (*models.TokenRef, error) {
	mapping, err := s.tokens.GetByHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if mapping != nil {
		return models.RegisteredTokenRef(mapping), nil
	}

	message, err := s.messages.LatestByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if message != nil {
		return models.InferredTokenRef(message), nil
	}
	return nil, models.NewNotFoundError("Token", tokenHash)
}

// Status reports the moderator-visible state of a token.
func (s *TokenService) Status(ctx context.Context, tokenHash string) (*models.TokenStatus, error) {
	ref, err := s.Resolve(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	return ref.Status(s.lifetime), nil
}

// FreezeToken permanently disables a token. Freezing an already-frozen token
// is a conflict, not a success, so moderators notice double actions.
func (s *TokenService) FreezeToken(ctx context.Context, moderatorID uint, tokenHash string) error {
	ref, err := s.Resolve(ctx, tokenHash)
	if err != nil {
		return err
	}
	if ref.Kind == models.TokenRefInferred {
		return models.NewValidationError("Token has no registered mapping and cannot be frozen")
	}

	frozen, err := s.tokens.Freeze(ctx, tokenHash, s.rounds.Now())
	if err != nil {
		return err
	}
	if !frozen {
		return models.NewConflictError("Token is already frozen")
	}

	middleware.ModerationActions.WithLabelValues(string(models.AuditFreeze)).Inc()
	return s.audits.Append(ctx, &models.AuditLog{
		ActionType:    models.AuditFreeze,
		TokenHash:     tokenHash,
		ModeratorID:   &moderatorID,
		ActionDetails: "token frozen",
	})
}

// UnfreezeToken re-enables a frozen token.
func (s *TokenService) UnfreezeToken(ctx context.Context, moderatorID uint, tokenHash string) error {
	ref, err := s.Resolve(ctx, tokenHash)
	if err != nil {
		return err
	}
	if ref.Kind == models.TokenRefInferred {
		return models.NewValidationError("Token has no registered mapping and cannot be unfrozen")
	}

	unfrozen, err := s.tokens.Unfreeze(ctx, tokenHash)
	if err != nil {
		return err
	}
	if !unfrozen {
		return models.NewConflictError("Token is not frozen")
	}

	middleware.ModerationActions.WithLabelValues(string(models.AuditUnfreeze)).Inc()
	return s.audits.Append(ctx, &models.AuditLog{
		ActionType:    models.AuditUnfreeze,
		TokenHash:     tokenHash,
		ModeratorID:   &moderatorID,
		ActionDetails: "token unfrozen",
	})
}

// Unmask recovers the real user behind a token. Moderator-only; the handler
// layer enforces the role.
func (s *TokenService) Unmask(ctx context.Context, tokenHash string) (uint, error) {
	ref, err := s.Resolve(ctx, tokenHash)
	if err != nil {
		return 0, err
	}

	switch ref.Kind {
	case models.TokenRefRegistered:
		userID, err := s.codec.Decrypt(ref.Mapping.EncryptedUserID)
		if err != nil {
			return 0, models.NewDecryptionError(err)
		}
		return userID, nil
	default:
		// No mapping survives for this hash; the message row still knows
		// its sender.
		return ref.Message.SenderID, nil
	}
}
