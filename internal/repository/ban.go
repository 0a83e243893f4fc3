package repository

import (
	"context"
	"time"

	"whisperchain/internal/models"

	"gorm.io/gorm"
)

// BanRepository defines persistence operations for sanctions. Temporary bans
// expire lazily: the active lookups deactivate rows whose end time has passed
// and never return them.
type BanRepository interface {
	Create(ctx context.Context, ban *models.UserBan) error
	ActiveForUser(ctx context.Context, userID uint, now time.Time) (*models.UserBan, error)
	ActiveForToken(ctx context.Context, tokenHash string, now time.Time) (*models.UserBan, error)
	DeactivateForUser(ctx context.Context, userID uint) (int64, error)
	ListForUser(ctx context.Context, userID uint) ([]models.UserBan, error)
}

type banRepository struct {
	db *gorm.DB
}

// NewBanRepository returns a new BanRepository implementation.
func NewBanRepository(db *gorm.DB) BanRepository {
	return &banRepository{db: db}
}

func (r *banRepository) Create(ctx context.Context, ban *models.UserBan) error {
	if err := r.db.WithContext(ctx).Create(ban).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// expireStale clears the active flag on bans whose end time has passed.
func (r *banRepository) expireStale(ctx context.Context, now time.Time, scope string, args ...any) error {
	err := r.db.WithContext(ctx).Model(&models.UserBan{}).
		Where(scope, args...).
		Where("is_active = ? AND ban_end_time IS NOT NULL AND ban_end_time <= ?", true, now).
		Update("is_active", false).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *banRepository) ActiveForUser(ctx context.Context, userID uint, now time.Time) (*models.UserBan, error) {
	if err := r.expireStale(ctx, now, "user_id = ?", userID); err != nil {
		return nil, err
	}

	var ban models.UserBan
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("ban_start_time DESC").
		First(&ban).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &ban, nil
}

func (r *banRepository) ActiveForToken(ctx context.Context, tokenHash string, now time.Time) (*models.UserBan, error) {
	if err := r.expireStale(ctx, now, "banned_token_hash = ?", tokenHash); err != nil {
		return nil, err
	}

	var ban models.UserBan
	err := r.db.WithContext(ctx).
		Where("banned_token_hash = ? AND is_active = ?", tokenHash, true).
		Order("ban_start_time DESC").
		First(&ban).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &ban, nil
}

// DeactivateForUser lifts every active ban on the user and reports how many
// rows were affected. Zero means there was no active ban to lift.
func (r *banRepository) DeactivateForUser(ctx context.Context, userID uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.UserBan{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false)
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *banRepository) ListForUser(ctx context.Context, userID uint) ([]models.UserBan, error) {
	var bans []models.UserBan
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("ban_start_time DESC").
		Find(&bans).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return bans, nil
}
