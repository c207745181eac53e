// Package memory is an in-process implementation of the repositories, used
// by tests and local runs without PostgreSQL.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/oksasatya/notism-go/internal/domain/entity"
	"github.com/oksasatya/notism-go/internal/domain/repository"
)

// Store holds all tables behind one mutex. Transactions are serialized and
// roll back by restoring a snapshot, which also gives FOR UPDATE semantics.
type Store struct {
	txMu sync.Mutex

	mu      sync.Mutex
	users   map[string]entity.User
	refresh map[string]entity.RefreshToken
	resets  map[string]entity.PasswordResetToken
}

func NewStore() *Store {
	return &Store{
		users:   make(map[string]entity.User),
		refresh: make(map[string]entity.RefreshToken),
		resets:  make(map[string]entity.PasswordResetToken),
	}
}

type txKey struct{}

type snapshot struct {
	users   map[string]entity.User
	refresh map[string]entity.RefreshToken
	resets  map[string]entity.PasswordResetToken
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := snapshot{users: maps.Clone(s.users), refresh: maps.Clone(s.refresh), resets: maps.Clone(s.resets)}
	s.mu.Unlock()

	err := fn(context.WithValue(ctx, txKey{}, true))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		// Rolled back like an aborted pgx transaction: no partial writes survive.
		s.mu.Lock()
		s.users, s.refresh, s.resets = snap.users, snap.refresh, snap.resets
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Users() *UserRepository                   { return &UserRepository{s: s} }
func (s *Store) RefreshTokens() *RefreshTokenRepository   { return &RefreshTokenRepository{s: s} }
func (s *Store) ResetTokens() *PasswordResetTokenRepository { return &PasswordResetTokenRepository{s: s} }

type UserRepository struct{ s *Store }

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email entity.Email) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) update(id string, apply func(stored *entity.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	apply(&stored)
	r.s.users[id] = stored
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, u *entity.User) error {
	return r.update(u.ID, func(stored *entity.User) {
		stored.PasswordHash, stored.UpdatedAt = u.PasswordHash, u.UpdatedAt
	})
}

func (r *UserRepository) UpdateProfile(ctx context.Context, u *entity.User) error {
	return r.update(u.ID, func(stored *entity.User) {
		stored.FirstName, stored.LastName, stored.AvatarURL = u.FirstName, u.LastName, u.AvatarURL
		stored.UpdatedAt = u.UpdatedAt
	})
}

func (r *UserRepository) UpdateRole(ctx context.Context, u *entity.User) error {
	return r.update(u.ID, func(stored *entity.User) {
		stored.Role, stored.UpdatedAt = u.Role, u.UpdatedAt
	})
}

// SoftDelete flags the user as deleted.
func (r *UserRepository) SoftDelete(id string) error {
	return r.update(id, func(stored *entity.User) { stored.IsDeleted = true })
}

type RefreshTokenRepository struct{ s *Store }

func (r *RefreshTokenRepository) Create(ctx context.Context, t *entity.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.refresh {
		if existing.TokenHash == t.TokenHash {
			return repository.ErrDuplicate
		}
	}
	r.s.refresh[t.ID] = *t
	return nil
}

func (r *RefreshTokenRepository) GetByTokenHash(ctx context.Context, hash string) (*entity.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.refresh {
		if t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *RefreshTokenRepository) GetByTokenHashForUpdate(ctx context.Context, hash string) (*entity.RefreshToken, error) {
	return r.GetByTokenHash(ctx, hash)
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.refresh[id]
	if !ok {
		return repository.ErrNotFound
	}
	if t.IsRevoked {
		return repository.ErrAlreadyRevoked
	}
	t.IsRevoked = true
	r.s.refresh[id] = t
	return nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.refresh {
		if t.UserID == userID && !t.IsRevoked && t.ExpiresAt.After(now) {
			t.IsRevoked = true
			r.s.refresh[id] = t
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.refresh {
		if t.ExpiresAt.Before(cutoff) || t.IsRevoked {
			delete(r.s.refresh, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored refresh tokens.
func (r *RefreshTokenRepository) Len() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.refresh)
}

type PasswordResetTokenRepository struct{ s *Store }

func (r *PasswordResetTokenRepository) Create(ctx context.Context, t *entity.PasswordResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.resets {
		if existing.TokenHash == t.TokenHash || (!t.IsUsed && !existing.IsUsed && existing.UserID == t.UserID) {
			return repository.ErrDuplicate
		}
	}
	r.s.resets[t.ID] = *t
	return nil
}

func (r *PasswordResetTokenRepository) GetByTokenHashForUpdate(ctx context.Context, hash string) (*entity.PasswordResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.resets {
		if t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *PasswordResetTokenRepository) InvalidateActiveForUser(ctx context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.resets {
		if t.UserID == userID && !t.IsUsed {
			t.IsUsed = true
			r.s.resets[id] = t
			n++
		}
	}
	return n, nil
}

func (r *PasswordResetTokenRepository) MarkUsed(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.resets[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.IsUsed = true
	r.s.resets[id] = t
	return nil
}

func (r *PasswordResetTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.resets {
		if t.ExpiresAt.Before(cutoff) || t.IsUsed {
			delete(r.s.resets, id)
			n++
		}
	}
	return n, nil
}

// Active returns the unused tokens of a user.
func (r *PasswordResetTokenRepository) Active(userID string) []entity.PasswordResetToken {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.PasswordResetToken
	for _, t := range r.s.resets {
		if t.UserID == userID && !t.IsUsed {
			out = append(out, t)
		}
	}
	return out
}

var (
	_ repository.Transactor                   = (*Store)(nil)
	_ repository.UserRepository               = (*UserRepository)(nil)
	_ repository.RefreshTokenRepository       = (*RefreshTokenRepository)(nil)
	_ repository.PasswordResetTokenRepository = (*PasswordResetTokenRepository)(nil)
)
