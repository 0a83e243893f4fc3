package service

import (
	"context"
	"time"

	"whisperchain/internal/crypto"
	"whisperchain/internal/middleware"
	"whisperchain/internal/models"
	"whisperchain/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageService is the send-path orchestrator. Every send walks the full
// gate: role checks, ban checks, token spend, encryption, then an atomic
// persist-plus-audit. A failure at any gate persists nothing.
type MessageService struct {
	db       *gorm.DB
	users    repository.UserRepository
	messages repository.MessageRepository
	tokenSvc *TokenService
	modSvc   *ModerationService
}

// NewMessageService returns a new MessageService.
func NewMessageService(
	db *gorm.DB,
	users repository.UserRepository,
	messages repository.MessageRepository,
	tokenSvc *TokenService,
	modSvc *ModerationService,
) *MessageService {
	return &MessageService{
		db:       db,
		users:    users,
		messages: messages,
		tokenSvc: tokenSvc,
		modSvc:   modSvc,
	}
}

// SendInput names the parameters of a send attempt. TokenHint carries the
// token hash the client believes is current; when stale, the gate self-heals
// once with a freshly derived token.
type SendInput struct {
	SenderID    uint
	RecipientID uint
	Payload     string
	TokenHint   string
}

// SendResult is what the sender gets back. The sender identity never travels
// with the token hash to anyone but this caller.
type SendResult struct {
	MessageID string `json:"message_id"`
	TokenHash string `json:"token_hash"`
	CreatedAt string `json:"created_at"`
}

func (s *MessageService) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	if in.Payload == "" {
		return nil, models.NewValidationError("Message payload is required")
	}

	sender, err := s.users.GetByID(ctx, in.SenderID)
	if err != nil {
		return nil, err
	}
	if !sender.CanSend() {
		return nil, models.NewForbiddenError("Only approved senders can send messages")
	}

	recipient, err := s.users.GetByID(ctx, in.RecipientID)
	if err != nil {
		return nil, err
	}
	if !recipient.CanReceive() {
		return nil, models.NewForbiddenError("Recipient cannot receive messages")
	}

	if banInfo, err := s.modSvc.CheckActiveBan(ctx, in.SenderID); err != nil {
		return nil, err
	} else if banInfo != nil {
		return nil, models.NewUserBannedError(banInfo)
	}

	tokenHash := in.TokenHint
	if tokenHash == "" {
		mapping, _, err := s.tokenSvc.GetOrCreateToken(ctx, in.SenderID)
		if err != nil {
			return nil, err
		}
		tokenHash = mapping.TokenHash
	}

	// The presented token can carry its own sanction independent of the
	// user-level ban.
	if banInfo, err := s.modSvc.CheckTokenBan(ctx, tokenHash); err != nil {
		return nil, err
	} else if banInfo != nil {
		return nil, models.NewTokenBannedError(banInfo)
	}

	ciphertext, err := crypto.EncryptMessage(in.Payload, recipient.PublicKey)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	message := &models.Message{
		PublicID:         uuid.NewString(),
		EncryptedContent: ciphertext,
		SenderID:         in.SenderID,
		RecipientID:      in.RecipientID,
	}

	// Spend, persist and audit commit together. A failure anywhere in the
	// sequence rolls the spend back, so no token is burned without its
	// message.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tokenSvc.SpendTokenIn(ctx, tx, tokenHash, in.SenderID); err != nil {
			tokenHash, err = s.retrySpend(ctx, tx, in.SenderID, err)
			if err != nil {
				return err
			}
		}
		message.TokenHash = tokenHash

		if err := repository.NewMessageRepository(tx).Create(ctx, message); err != nil {
			return err
		}
		return repository.NewAuditRepository(tx).Append(ctx, &models.AuditLog{
			ActionType:    models.AuditMessageSent,
			TokenHash:     tokenHash,
			ActionDetails: "message sent",
		})
	})
	if err != nil {
		return nil, err
	}

	middleware.MessagesSent.Inc()
	middleware.Logger.InfoContext(ctx, "message sent",
		"message_id", message.PublicID,
		"token_hash", tokenHash,
	)

	return &SendResult{
		MessageID: message.PublicID,
		TokenHash: tokenHash,
		CreatedAt: message.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// retrySpend is the single self-heal cycle for clients presenting a stale
// token: derive the current round's token fresh and spend that instead, on
// the same transaction handle as the first attempt. A frozen or banned token
// never retries.
func (s *MessageService) retrySpend(ctx context.Context, tx *gorm.DB, senderID uint, spendErr error) (string, error) {
	appErr, ok := spendErr.(*models.AppError)
	if !ok {
		return "", spendErr
	}
	switch appErr.Code {
	case models.CodeTokenAlreadyUsed, models.CodeTokenNotFoundOrExpired:
	default:
		return "", spendErr
	}

	mapping, _, err := s.tokenSvc.GetOrCreateTokenIn(ctx, tx, senderID)
	if err != nil {
		return "", err
	}
	if err := s.tokenSvc.SpendTokenIn(ctx, tx, mapping.TokenHash, senderID); err != nil {
		return "", err
	}
	return mapping.TokenHash, nil
}

// Inbox returns the recipient's messages, newest first.
func (s *MessageService) Inbox(ctx context.Context, userID uint, limit, offset int) ([]models.Message, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.CanReceive() && !user.IsModerator() {
		return nil, models.NewForbiddenError("Only receivers have an inbox")
	}
	return s.messages.Inbox(ctx, userID, limit, offset)
}

// MarkRead marks one of the caller's messages as read.
func (s *MessageService) MarkRead(ctx context.Context, userID uint, publicID string) error {
	return s.messages.MarkRead(ctx, publicID, userID)
}

// Flag reports one of the caller's messages for moderator review.
func (s *MessageService) Flag(ctx context.Context, userID uint, publicID, reason string) (*models.Message, error) {
	if reason == "" {
		return nil, models.NewValidationError("Flag reason is required")
	}
	return s.messages.Flag(ctx, publicID, userID, reason)
}

// Decrypt recovers the plaintext of one of the caller's messages. The
// password unlocks the caller's protected private key; the server never
// stores that key in cleartext, so decryption is only possible on request.
func (s *MessageService) Decrypt(ctx context.Context, userID uint, publicID, password string) (string, error) {
	message, err := s.messages.GetByPublicID(ctx, publicID)
	if err != nil {
		return "", err
	}
	if message == nil || message.RecipientID != userID {
		return "", models.NewNotFoundError("Message", publicID)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	priv, err := crypto.RecoverPrivateKey(user.EncryptedPrivateKey, password)
	if err != nil {
		return "", models.NewDecryptionError(err)
	}

	plaintext, err := crypto.DecryptMessage(message.EncryptedContent, priv)
	if err != nil {
		return "", models.NewDecryptionError(err)
	}
	return plaintext, nil
}
