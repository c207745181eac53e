package entity

import "time"

// RefreshToken is a persisted long-lived credential. Only the SHA-256 hex
// digest of the raw token is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	IsRevoked bool
	CreatedAt time.Time
}

func (t *RefreshToken) IsExpired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

// IsValid is computed at read time; expiry dominates the revoked flag.
func (t *RefreshToken) IsValid(now time.Time) bool { return !t.IsRevoked && !t.IsExpired(now) }

// PasswordResetToken is a single-use credential for the reset flow.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	IsUsed    bool
	CreatedAt time.Time
}

func (t *PasswordResetToken) IsExpired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

func (t *PasswordResetToken) IsValid(now time.Time) bool { return !t.IsUsed && !t.IsExpired(now) }
