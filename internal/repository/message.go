package repository

import (
	"context"
	"errors"

	"whisperchain/internal/cache"
	"whisperchain/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines persistence operations for encrypted messages.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByPublicID(ctx context.Context, publicID string) (*models.Message, error)
	Inbox(ctx context.Context, recipientID uint, limit, offset int) ([]models.Message, error)
	MarkRead(ctx context.Context, publicID string, recipientID uint) error
	Flag(ctx context.Context, publicID string, recipientID uint, reason string) (*models.Message, error)
	Flagged(ctx context.Context) ([]models.Message, error)
	LatestByTokenHash(ctx context.Context, tokenHash string) (*models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Message ID already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) GetByPublicID(ctx context.Context, publicID string) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &message, nil
}

func (r *messageRepository) Inbox(ctx context.Context, recipientID uint, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, publicID string, recipientID uint) error {
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("public_id = ? AND recipient_id = ?", publicID, recipientID).
		Update("read", true)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Message", publicID)
	}
	return nil
}

// Flag marks a message for moderator review. Only the recipient of the
// message may flag it.
func (r *messageRepository) Flag(ctx context.Context, publicID string, recipientID uint, reason string) (*models.Message, error) {
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("public_id = ? AND recipient_id = ?", publicID, recipientID).
		Updates(map[string]any{"is_flagged": true, "flag_reason": reason})
	if result.Error != nil {
		return nil, models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, models.NewNotFoundError("Message", publicID)
	}

	cache.Delete(ctx, cache.FlaggedMessagesKey())
	return r.GetByPublicID(ctx, publicID)
}

func (r *messageRepository) Flagged(ctx context.Context) ([]models.Message, error) {
	messages, err := cache.CacheAside(ctx, cache.FlaggedMessagesKey(), cache.FlaggedListTTL, func() ([]models.Message, error) {
		var out []models.Message
		if err := r.db.WithContext(ctx).
			Where("is_flagged = ?", true).
			Order("created_at DESC, id DESC").
			Find(&out).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// LatestByTokenHash returns the most recent message sent under the token, or
// nil when the token never produced one.
func (r *messageRepository) LatestByTokenHash(ctx context.Context, tokenHash string) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		Order("created_at DESC, id DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &message, nil
}
