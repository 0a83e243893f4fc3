package models

import "time"

// AuditAction is the type tag for an audit log entry.
type AuditAction string

const (
	// AuditFreeze records a token freeze.
	AuditFreeze AuditAction = "freeze"
	// AuditUnfreeze records a token unfreeze.
	AuditUnfreeze AuditAction = "unfreeze"
	// AuditUserBanned records a user-level ban.
	AuditUserBanned AuditAction = "user_banned"
	// AuditUnban records an explicit unban.
	AuditUnban AuditAction = "unban"
	// AuditWarningIssued records a non-blocking warning.
	AuditWarningIssued AuditAction = "warning_issued"
	// AuditMessageSent records a successful token spend.
	AuditMessageSent AuditAction = "message_sent"
)

// AuditLog is an append-only record of moderation actions and token usage.
// Rows are never updated or deleted after insertion.
type AuditLog struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	ActionType AuditAction `gorm:"type:varchar(32);not null;index" json:"action_type"`
	TokenHash  string      `gorm:"size:64;index" json:"token_hash"`
	// ModeratorID is nil for system-generated entries such as message_sent.
	ModeratorID   *uint     `json:"moderator_id,omitempty"`
	UserID        *uint     `json:"user_id,omitempty"`
	ActionDetails string    `gorm:"type:text" json:"action_details"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
