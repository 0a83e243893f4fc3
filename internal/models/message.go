package models

import "time"

// Message carries an end-to-end encrypted payload. The row stores only the
// token hash; the sender identity is never exposed alongside the token to
// anyone but the sender's own session and the moderator unmask path.
type Message struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	PublicID         string    `gorm:"size:36;uniqueIndex;not null" json:"public_id"`
	EncryptedContent string    `gorm:"type:text;not null" json:"encrypted_content"`
	SenderID         uint      `gorm:"not null;index" json:"-"`
	RecipientID      uint      `gorm:"not null;index" json:"recipient_id"`
	TokenHash        string    `gorm:"size:64;index" json:"token_hash"`
	Read             bool      `gorm:"default:false" json:"read"`
	IsFlagged        bool      `gorm:"default:false;index" json:"is_flagged"`
	FlagReason       string    `gorm:"type:text" json:"flag_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`

	Sender    *User `gorm:"foreignKey:SenderID" json:"-"`
	Recipient *User `gorm:"foreignKey:RecipientID" json:"-"`
}

// TableName specifies the table name for GORM.
func (Message) TableName() string {
	return "messages"
}
