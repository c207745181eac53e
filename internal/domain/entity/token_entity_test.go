package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshTokenValidity(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name    string
		expires time.Time
		revoked bool
		valid   bool
	}{
		{"live", now.Add(time.Hour), false, true},
		{"revoked", now.Add(time.Hour), true, false},
		{"expired", now.Add(-time.Second), false, false},
		{"expires exactly now", now, false, false},
		{"expired and revoked", now.Add(-time.Hour), true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok := &RefreshToken{ExpiresAt: tc.expires, IsRevoked: tc.revoked}
			assert.Equal(t, tc.valid, tok.IsValid(now))
		})
	}
}

func TestPasswordResetTokenValidity(t *testing.T) {
	now := time.Now()
	assert.True(t, (&PasswordResetToken{ExpiresAt: now.Add(time.Minute)}).IsValid(now))
	assert.False(t, (&PasswordResetToken{ExpiresAt: now.Add(time.Minute), IsUsed: true}).IsValid(now))

	// an unused token is still invalid once past its expiry
	expired := &PasswordResetToken{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, expired.IsExpired(now))
	assert.False(t, expired.IsValid(now))
}
