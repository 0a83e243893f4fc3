package repository

import (
	"context"
	"errors"
	"time"

	"whisperchain/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository defines persistence operations for token mappings. The
// single-use and one-per-round guarantees live here, on top of the table's
// unique indexes, so they hold across concurrent requests and processes.
type TokenRepository interface {
	GetByHash(ctx context.Context, tokenHash string) (*models.TokenMapping, error)
	GetByUserAndRound(ctx context.Context, userID uint, roundID int64) (*models.TokenMapping, error)
	InsertOrGet(ctx context.Context, mapping *models.TokenMapping) (*models.TokenMapping, bool, error)
	MarkUsed(ctx context.Context, tokenHash string, userID uint, now time.Time) (bool, error)
	Freeze(ctx context.Context, tokenHash string, now time.Time) (bool, error)
	Unfreeze(ctx context.Context, tokenHash string) (bool, error)
	FreezeAllForUser(ctx context.Context, userID uint, now time.Time) (int64, error)
	UnfreezeAllForUser(ctx context.Context, userID uint) (int64, error)
}

type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository returns a new TokenRepository implementation.
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) GetByHash(ctx context.Context, tokenHash string) (*models.TokenMapping, error) {
	var mapping models.TokenMapping
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&mapping).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &mapping, nil
}

func (r *tokenRepository) GetByUserAndRound(ctx context.Context, userID uint, roundID int64) (*models.TokenMapping, error) {
	var mapping models.TokenMapping
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND round_id = ?", userID, roundID).
		First(&mapping).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &mapping, nil
}

// InsertOrGet creates the mapping unless one already exists for the same
// (user, round), in which case the existing row is returned. Concurrent
// callers converge on a single row; the unique index breaks the tie. The
// second return value reports whether this call created the row.
func (r *tokenRepository) InsertOrGet(ctx context.Context, mapping *models.TokenMapping) (*models.TokenMapping, bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "round_id"}},
			DoNothing: true,
		}).
		Create(mapping)
	if result.Error != nil {
		// OnConflict only swallows the (user, round) conflict. A hash
		// collision with another user's token lands here.
		if isUniqueConstraintError(result.Error) {
			return nil, false, models.NewConflictError("Token hash collision")
		}
		return nil, false, models.NewInternalError(result.Error)
	}
	if result.RowsAffected > 0 {
		return mapping, true, nil
	}

	existing, err := r.GetByUserAndRound(ctx, mapping.UserID, mapping.RoundID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, models.NewInternalError(errors.New("token mapping vanished after conflict"))
	}
	return existing, false, nil
}

// MarkUsed atomically spends the token. The WHERE clause carries the full
// spendability predicate, including the owner binding, so exactly one
// concurrent caller can succeed and nobody can spend another user's token.
func (r *tokenRepository) MarkUsed(ctx context.Context, tokenHash string, userID uint, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.TokenMapping{}).
		Where("token_hash = ? AND user_id = ? AND is_used = ? AND is_frozen = ? AND expires_at > ?",
			tokenHash, userID, false, false, now).
		Updates(map[string]any{
			"is_used":       true,
			"last_used_at":  now,
			"messages_sent": gorm.Expr("messages_sent + 1"),
		})
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *tokenRepository) Freeze(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.TokenMapping{}).
		Where("token_hash = ? AND is_frozen = ?", tokenHash, false).
		Updates(map[string]any{"is_frozen": true, "frozen_at": now})
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *tokenRepository) Unfreeze(ctx context.Context, tokenHash string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.TokenMapping{}).
		Where("token_hash = ? AND is_frozen = ?", tokenHash, true).
		Updates(map[string]any{"is_frozen": false, "frozen_at": nil})
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FreezeAllForUser freezes every unfrozen token the user holds. Used when a
// user-level ban cascades down to the user's pseudonyms.
func (r *tokenRepository) FreezeAllForUser(ctx context.Context, userID uint, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.TokenMapping{}).
		Where("user_id = ? AND is_frozen = ?", userID, false).
		Updates(map[string]any{"is_frozen": true, "frozen_at": now})
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *tokenRepository) UnfreezeAllForUser(ctx context.Context, userID uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.TokenMapping{}).
		Where("user_id = ? AND is_frozen = ?", userID, true).
		Updates(map[string]any{"is_frozen": false, "frozen_at": nil})
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}
