// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole determines what a user is allowed to do.
type UserRole string

const (
	// RoleSender may send encrypted messages.
	RoleSender UserRole = "sender"
	// RoleReceiver may receive and flag messages.
	RoleReceiver UserRole = "receiver"
	// RoleModerator may inspect tokens and issue sanctions.
	RoleModerator UserRole = "moderator"
)

// UserStatus tracks the admin approval workflow.
type UserStatus string

const (
	// StatusPending indicates the account is awaiting approval.
	StatusPending UserStatus = "pending"
	// StatusApproved indicates the account has been approved.
	StatusApproved UserStatus = "approved"
	// StatusRejected indicates the account was rejected.
	StatusRejected UserStatus = "rejected"
)

// User represents an account in WhisperChain.
type User struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Username   string         `gorm:"unique;not null" json:"username"`
	Role       UserRole       `gorm:"type:varchar(20);not null;index" json:"role"`
	IsApproved bool           `gorm:"default:false" json:"is_approved"`
	Status     UserStatus     `gorm:"type:varchar(20);default:'pending'" json:"status"`
	PublicKey  string         `gorm:"type:text;not null" json:"public_key"`
	// EncryptedPrivateKey is the password-protected private key blob. The
	// server never holds the cleartext key; verifying a password is an
	// attempted decryption of this blob.
	EncryptedPrivateKey string         `gorm:"type:text" json:"-"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}

// CanSend reports whether the user may pass the sender gate.
func (u *User) CanSend() bool {
	return u.Role == RoleSender && u.IsApproved && u.Status == StatusApproved
}

// CanReceive reports whether the user may be a message recipient.
func (u *User) CanReceive() bool {
	return u.Role == RoleReceiver && u.IsApproved && u.Status == StatusApproved
}

// IsModerator reports whether the user may perform moderation actions.
func (u *User) IsModerator() bool {
	return u.Role == RoleModerator && u.IsApproved
}
