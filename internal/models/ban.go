package models

import (
	"fmt"
	"strings"
	"time"
)

// BanType identifies the kind of sanction a moderator issued.
type BanType string

const (
	// BanTypeFreeze is a permanent ban with no end time.
	BanTypeFreeze BanType = "freeze"
	// BanTypeTemp5Min is a five-minute temporary ban.
	BanTypeTemp5Min BanType = "temp_5min"
	// BanTypeTemp1Hour is a one-hour temporary ban.
	BanTypeTemp1Hour BanType = "temp_1hour"
	// BanTypeWarning records a warning only; it never blocks sending.
	BanTypeWarning BanType = "warning"
)

// Valid reports whether t is a known ban type.
func (t BanType) Valid() bool {
	switch t {
	case BanTypeFreeze, BanTypeTemp5Min, BanTypeTemp1Hour, BanTypeWarning:
		return true
	}
	return false
}

// Duration returns the ban duration and whether the ban is time-bounded.
// Permanent bans and warnings return (0, false).
func (t BanType) Duration() (time.Duration, bool) {
	switch t {
	case BanTypeTemp5Min:
		return 5 * time.Minute, true
	case BanTypeTemp1Hour:
		return time.Hour, true
	}
	return 0, false
}

// UserBan is a sanction record. Historical rows are retained; enforcement only
// considers rows that are still logically active (see ActiveAt).
type UserBan struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	UserID          uint   `gorm:"not null;index" json:"user_id"`
	BannedTokenHash string `gorm:"size:64;index" json:"banned_token_hash"`
	// BanReason is stored as "{type}: {reason}" so the originating ban type
	// survives alongside the free-text reason.
	BanReason    string     `gorm:"type:text;not null" json:"ban_reason"`
	BanStartTime time.Time  `gorm:"not null" json:"ban_start_time"`
	BanEndTime   *time.Time `json:"ban_end_time,omitempty"`
	IsActive     bool       `gorm:"default:true;index" json:"is_active"`
	ModeratorID  *uint      `json:"moderator_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName specifies the table name for GORM.
func (UserBan) TableName() string {
	return "user_bans"
}

// EncodeBanReason builds the stored "{type}: {reason}" form.
func EncodeBanReason(banType BanType, reason string) string {
	return fmt.Sprintf("%s: %s", banType, reason)
}

// SplitBanReason recovers the ban type and free-text reason from the stored
// encoding. Rows written before type prefixes existed decode as a freeze.
func SplitBanReason(stored string) (BanType, string) {
	if idx := strings.Index(stored, ": "); idx > 0 {
		t := BanType(stored[:idx])
		if t.Valid() {
			return t, stored[idx+2:]
		}
	}
	return BanTypeFreeze, stored
}

// ActiveAt reports whether the ban is enforceable at the given time, per the
// lazy-expiry rule: active flag set and either permanent or not yet ended.
func (b *UserBan) ActiveAt(now time.Time) bool {
	if !b.IsActive {
		return false
	}
	return b.BanEndTime == nil || b.BanEndTime.After(now)
}

// Expired reports whether a still-flagged ban has passed its end time and
// should be lazily deactivated on the next read.
func (b *UserBan) Expired(now time.Time) bool {
	return b.IsActive && b.BanEndTime != nil && !b.BanEndTime.After(now)
}

// Info returns the caller-visible view of the ban.
func (b *UserBan) Info() *BanInfo {
	banType, reason := SplitBanReason(b.BanReason)
	return &BanInfo{
		Type:   banType,
		Reason: reason,
		Until:  b.BanEndTime,
	}
}

// BanInfo is the human-renderable summary of an active ban.
type BanInfo struct {
	Type   BanType    `json:"type"`
	Reason string     `json:"reason"`
	Until  *time.Time `json:"until,omitempty"`
}

// ExpiryString renders the ban end for user-facing messages.
func (i *BanInfo) ExpiryString() string {
	if i.Until == nil {
		return "permanent"
	}
	return i.Until.UTC().Format(time.RFC3339)
}
