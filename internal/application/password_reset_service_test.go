package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestResetDoesNotRevealAccounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ada@example.com")

	known, err := h.resets.RequestReset(ctx, "ada@example.com")
	require.NoError(t, err)
	unknown, err := h.resets.RequestReset(ctx, "nobody@example.com")
	require.NoError(t, err)
	malformed, err := h.resets.RequestReset(ctx, "nope")
	require.NoError(t, err)

	assert.Equal(t, ResetRequestedMessage, known)
	assert.Equal(t, known, unknown)
	assert.Equal(t, known, malformed)
	assert.Len(t, h.mail.resets, 1)
}

func TestRequestResetKeepsSingleActiveToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, "ada@example.com")

	_, err := h.resets.RequestReset(ctx, "ada@example.com")
	require.NoError(t, err)
	first := h.mail.lastReset(t)
	_, err = h.resets.RequestReset(ctx, "ada@example.com")
	require.NoError(t, err)
	second := h.mail.lastReset(t)

	assert.NotEqual(t, first.Token, second.Token)
	assert.Len(t, h.store.ResetTokens().Active(reg.User.ID), 1)

	err = h.resets.CompleteReset(ctx, first.Token, "brand-new-pass")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredResetToken)
	require.NoError(t, h.resets.CompleteReset(ctx, second.Token, "brand-new-pass"))
}

func TestCompleteResetConsumesTokenAndEndsSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, "ada@example.com")
	_, err := h.resets.RequestReset(ctx, "ada@example.com")
	require.NoError(t, err)
	sent := h.mail.lastReset(t)

	err = h.resets.CompleteReset(ctx, sent.Token, "short")
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, h.resets.CompleteReset(ctx, sent.Token, "brand-new-pass"))

	_, err = h.auth.Login(ctx, "ada@example.com", "brand-new-pass")
	assert.NoError(t, err)
	_, err = h.auth.Refresh(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	err = h.resets.CompleteReset(ctx, sent.Token, "another-pass-1")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredResetToken)
	assert.ErrorIs(t, h.resets.CompleteReset(ctx, "", "another-pass-1"), ErrInvalidOrExpiredResetToken)
}

func TestCompleteResetRejectsExpiredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ada@example.com")
	_, err := h.resets.RequestReset(ctx, "ada@example.com")
	require.NoError(t, err)
	sent := h.mail.lastReset(t)

	h.shiftClock(25 * time.Hour)
	err = h.resets.CompleteReset(ctx, sent.Token, "brand-new-pass")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredResetToken)
}

func TestRequestResetMailFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, "ada@example.com")
	_, err := h.resets.RequestReset(ctx, "ada@example.com")
	require.NoError(t, err)
	delivered := h.mail.lastReset(t)

	h.mail.failNext = errors.New("smtp down")
	msg, err := h.resets.RequestReset(ctx, "ada@example.com")
	assert.Empty(t, msg)
	assert.Same(t, ErrResetRequestFailed, err)

	active := h.store.ResetTokens().Active(reg.User.ID)
	require.Len(t, active, 1)
	require.NoError(t, h.resets.CompleteReset(ctx, delivered.Token, "brand-new-pass"))
}

func TestAuthServiceDelegatesResets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ada@example.com")

	msg, err := h.auth.RequestPasswordReset(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, ResetRequestedMessage, msg)
	require.NoError(t, h.auth.CompletePasswordReset(ctx, h.mail.lastReset(t).Token, "brand-new-pass"))
}
