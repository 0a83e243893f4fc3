package cache

import (
	"fmt"
	"time"
)

// Cache key builders and TTLs. Keys are namespaced per entity so that
// invalidation can target a single record.

const (
	UserTTL        = 5 * time.Minute
	TokenStatusTTL = 30 * time.Second
	FlaggedListTTL = 15 * time.Second
)

func UserKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

func UsernameKey(username string) string {
	return fmt.Sprintf("user:name:%s", username)
}

func TokenStatusKey(tokenHash string) string {
	return fmt.Sprintf("token:status:%s", tokenHash)
}

func FlaggedMessagesKey() string {
	return "messages:flagged"
}
