package models

import "time"

// TokenMapping is the pseudonym record tying a (user, round) pair to its
// rotating token. The token hash is what moderators and recipients see; the
// owning user is recoverable only through EncryptedUserID.
type TokenMapping struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	TokenHash string `gorm:"size:64;uniqueIndex;not null" json:"token_hash"`
	// EncryptedUserID holds the real user id under the server's token secret.
	// Only the moderator unmask path decrypts it.
	EncryptedUserID string     `gorm:"type:text;not null" json:"-"`
	UserID          uint       `gorm:"not null;uniqueIndex:idx_token_user_round" json:"-"`
	RoundID         int64      `gorm:"not null;uniqueIndex:idx_token_user_round" json:"round_id"`
	IsUsed          bool       `gorm:"default:false" json:"is_used"`
	IsFrozen        bool       `gorm:"default:false" json:"is_frozen"`
	MessagesSent    int        `gorm:"default:0" json:"messages_sent"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	FrozenAt        *time.Time `json:"frozen_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `gorm:"not null;index" json:"expires_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName specifies the table name for GORM.
func (TokenMapping) TableName() string {
	return "token_mappings"
}

// ExpiredAt reports whether the mapping is past its expiry at the given time.
func (t *TokenMapping) ExpiredAt(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Spendable reports whether the token can still authorize a send at the given
// time. A frozen token is never spendable again, regardless of IsUsed.
func (t *TokenMapping) Spendable(now time.Time) bool {
	return !t.IsUsed && !t.IsFrozen && !t.ExpiredAt(now)
}
