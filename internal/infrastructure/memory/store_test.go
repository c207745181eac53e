package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/notism-go/internal/domain/entity"
	"github.com/oksasatya/notism-go/internal/domain/repository"
)

func newTestUser(t *testing.T, email string) *entity.User {
	t.Helper()
	addr, err := entity.NewEmail(email)
	require.NoError(t, err)
	u, err := entity.NewUser(addr, "hash", entity.RoleUser, "Ada", "Lovelace", time.Now())
	require.NoError(t, err)
	return u
}

func TestWithinTxCommits(t *testing.T) {
	s := NewStore()
	u := newTestUser(t, "ada@example.com")

	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context) error {
		return s.Users().Create(ctx, u)
	}))

	_, err := s.Users().GetByID(context.Background(), u.ID)
	assert.NoError(t, err)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	u := newTestUser(t, "ada@example.com")
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, s.Users().Create(ctx, u))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Users().GetByID(context.Background(), u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithinTxRollsBackWhenContextCancelled(t *testing.T) {
	s := NewStore()
	u := newTestUser(t, "ada@example.com")
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Users().Create(ctx, u))
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.Users().GetByID(context.Background(), u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
