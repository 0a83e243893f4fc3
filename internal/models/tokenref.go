package models

import "time"

// TokenRefKind discriminates how a token reference was resolved.
type TokenRefKind int

const (
	// TokenRefRegistered means the hash matched a TokenMapping row.
	TokenRefRegistered TokenRefKind = iota
	// TokenRefInferred means the hash was only found attached to a message.
	// Such tokens are always considered spent and cannot be frozen directly.
	TokenRefInferred
)

// TokenRef is the tagged variant over "registered token" vs "token known only
// through a message". Moderation operations switch on Kind instead of
// re-probing tables.
type TokenRef struct {
	Kind    TokenRefKind
	Mapping *TokenMapping // set when Kind == TokenRefRegistered
	Message *Message      // set when Kind == TokenRefInferred
}

// RegisteredTokenRef wraps a TokenMapping row.
func RegisteredTokenRef(m *TokenMapping) *TokenRef {
	return &TokenRef{Kind: TokenRefRegistered, Mapping: m}
}

// InferredTokenRef wraps a message whose token hash has no formal mapping.
func InferredTokenRef(msg *Message) *TokenRef {
	return &TokenRef{Kind: TokenRefInferred, Message: msg}
}

// TokenStatus is the moderator-visible status of a token.
type TokenStatus struct {
	TokenHash    string     `json:"token_hash"`
	IsUsed       bool       `json:"is_used"`
	IsFrozen     bool       `json:"is_frozen"`
	MessagesSent int        `json:"messages_sent"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	Inferred     bool       `json:"inferred"`
}

// Status reduces the variant to the moderator-visible view. Inferred tokens
// report as used and unfrozen, expiring one lifetime after the message.
func (r *TokenRef) Status(lifetime time.Duration) *TokenStatus {
	switch r.Kind {
	case TokenRefInferred:
		return &TokenStatus{
			TokenHash:    r.Message.TokenHash,
			IsUsed:       true,
			IsFrozen:     false,
			MessagesSent: 1,
			CreatedAt:    r.Message.CreatedAt,
			ExpiresAt:    r.Message.CreatedAt.Add(lifetime),
			Inferred:     true,
		}
	default:
		m := r.Mapping
		return &TokenStatus{
			TokenHash:    m.TokenHash,
			IsUsed:       m.IsUsed,
			IsFrozen:     m.IsFrozen,
			MessagesSent: m.MessagesSent,
			CreatedAt:    m.CreatedAt,
			ExpiresAt:    m.ExpiresAt,
			LastUsedAt:   m.LastUsedAt,
			Inferred:     false,
		}
	}
}
