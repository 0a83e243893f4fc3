package service

import (
	"context"
	"fmt"
	"time"

	"whisperchain/internal/clock"
	"whisperchain/internal/middleware"
	"whisperchain/internal/models"
	"whisperchain/internal/repository"
)

// ModerationService implements the sanction ledger: bans, warnings, unbans,
// and the lazy-expiry checks the message gate consults on every send.
type ModerationService struct {
	bans     repository.BanRepository
	tokens   repository.TokenRepository
	audits   repository.AuditRepository
	messages repository.MessageRepository
	tokenSvc *TokenService
	rounds   *clock.RoundClock
}

// NewModerationService returns a new ModerationService.
func NewModerationService(
	bans repository.BanRepository,
	tokens repository.TokenRepository,
	audits repository.AuditRepository,
	messages repository.MessageRepository,
	tokenSvc *TokenService,
	rounds *clock.RoundClock,
) *ModerationService {
	return &ModerationService{
		bans:     bans,
		tokens:   tokens,
		audits:   audits,
		messages: messages,
		tokenSvc: tokenSvc,
		rounds:   rounds,
	}
}

// BanInput names the parameters of a ban action. Exactly one of TokenHash
// and UserID identifies the target; a token hash is unmasked to its owner.
type BanInput struct {
	ModeratorID uint
	TokenHash   string
	UserID      uint
	BanType     models.BanType
	Reason      string
}

// Ban sanctions the user behind a token. A warning only writes an audit entry
// and never blocks; every other type creates a ban row, cascades a freeze to
// all of the user's tokens, and fails with AlreadyBanned if an active ban is
// already in force.
func (s *ModerationService) Ban(ctx context.Context, in BanInput) error {
	if !in.BanType.Valid() {
		return models.NewValidationError(fmt.Sprintf("Unknown ban type %q", in.BanType))
	}
	if in.Reason == "" {
		return models.NewValidationError("Ban reason is required")
	}

	userID := in.UserID
	if in.TokenHash != "" {
		var err error
		userID, err = s.tokenSvc.Unmask(ctx, in.TokenHash)
		if err != nil {
			return err
		}
	}
	if userID == 0 {
		return models.NewValidationError("A token hash or user id is required")
	}

	if in.BanType == models.BanTypeWarning {
		middleware.ModerationActions.WithLabelValues(string(models.AuditWarningIssued)).Inc()
		return s.audits.Append(ctx, &models.AuditLog{
			ActionType:    models.AuditWarningIssued,
			TokenHash:     in.TokenHash,
			ModeratorID:   &in.ModeratorID,
			UserID:        &userID,
			ActionDetails: in.Reason,
		})
	}

	now := s.rounds.Now()

	existing, err := s.bans.ActiveForUser(ctx, userID, now)
	if err != nil {
		return err
	}
	if existing != nil {
		return models.NewAlreadyBannedError()
	}

	var endTime *time.Time
	if d, bounded := in.BanType.Duration(); bounded {
		t := now.Add(d)
		endTime = &t
	}

	ban := &models.UserBan{
		UserID:          userID,
		BannedTokenHash: in.TokenHash,
		BanReason:       models.EncodeBanReason(in.BanType, in.Reason),
		BanStartTime:    now,
		BanEndTime:      endTime,
		IsActive:        true,
		ModeratorID:     &in.ModeratorID,
	}
	if err := s.bans.Create(ctx, ban); err != nil {
		return err
	}

	// A banned user must not spend tokens issued in earlier rounds.
	if _, err := s.tokens.FreezeAllForUser(ctx, userID, now); err != nil {
		return err
	}

	middleware.ModerationActions.WithLabelValues(string(models.AuditUserBanned)).Inc()
	return s.audits.Append(ctx, &models.AuditLog{
		ActionType:    models.AuditUserBanned,
		TokenHash:     in.TokenHash,
		ModeratorID:   &in.ModeratorID,
		UserID:        &userID,
		ActionDetails: ban.BanReason,
	})
}

// Unban lifts the user's active ban and thaws all their frozen tokens.
func (s *ModerationService) Unban(ctx context.Context, moderatorID, userID uint) error {
	lifted, err := s.bans.DeactivateForUser(ctx, userID)
	if err != nil {
		return err
	}
	if lifted == 0 {
		return models.NewNoActiveBanError()
	}

	if _, err := s.tokens.UnfreezeAllForUser(ctx, userID); err != nil {
		return err
	}

	middleware.ModerationActions.WithLabelValues(string(models.AuditUnban)).Inc()
	return s.audits.Append(ctx, &models.AuditLog{
		ActionType:    models.AuditUnban,
		ModeratorID:   &moderatorID,
		UserID:        &userID,
		ActionDetails: "ban lifted",
	})
}

// CheckActiveBan returns the user's enforceable ban, if any, after lazily
// expiring stale rows. A nil result means the user may send.
func (s *ModerationService) CheckActiveBan(ctx context.Context, userID uint) (*models.BanInfo, error) {
	ban, err := s.bans.ActiveForUser(ctx, userID, s.rounds.Now())
	if err != nil {
		return nil, err
	}
	if ban == nil {
		return nil, nil
	}
	return ban.Info(), nil
}

// CheckTokenBan returns the sanction pinned to the specific token, if any.
// Independent of the user-level ban so a sanction can be scoped narrowly.
func (s *ModerationService) CheckTokenBan(ctx context.Context, tokenHash string) (*models.BanInfo, error) {
	ban, err := s.bans.ActiveForToken(ctx, tokenHash, s.rounds.Now())
	if err != nil {
		return nil, err
	}
	if ban == nil {
		return nil, nil
	}
	return ban.Info(), nil
}

// FlaggedMessages lists messages recipients have flagged for review.
func (s *ModerationService) FlaggedMessages(ctx context.Context) ([]models.Message, error) {
	return s.messages.Flagged(ctx)
}

// AuditLogs returns the audit trail, newest first.
func (s *ModerationService) AuditLogs(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	return s.audits.List(ctx, limit, offset)
}

// TokenAuditLogs returns the audit trail for a single token.
func (s *ModerationService) TokenAuditLogs(ctx context.Context, tokenHash string) ([]models.AuditLog, error) {
	return s.audits.ListByToken(ctx, tokenHash)
}

// BanHistory returns every sanction ever issued against the user.
func (s *ModerationService) BanHistory(ctx context.Context, userID uint) ([]models.UserBan, error) {
	return s.bans.ListForUser(ctx, userID)
}
