package application

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/notism-go/internal/domain/entity"
	"github.com/oksasatya/notism-go/internal/infrastructure/memory"
	"github.com/oksasatya/notism-go/pkg/helpers"
)

const (
	testJWTSecret = "0123456789abcdef0123456789abcdef"
	testPassword  = "correct-horse-1"
)

type sentReset struct {
	To        entity.Email
	Token     string
	ExpiresAt time.Time
}

type fakeMailer struct {
	mu       sync.Mutex
	resets   []sentReset
	welcomes []entity.Email
	failNext error
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, to entity.Email, _, token string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	m.resets = append(m.resets, sentReset{To: to, Token: token, ExpiresAt: exp})
	return nil
}

func (m *fakeMailer) SendWelcomeEmail(_ context.Context, to entity.Email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomes = append(m.welcomes, to)
	return nil
}

func (m *fakeMailer) lastReset(t *testing.T) sentReset {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.resets, "no reset email sent")
	return m.resets[len(m.resets)-1]
}

type fakeProvider struct {
	profile *ExternalProfile
	err     error
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.test/auth?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "access-" + code, nil
}

func (p *fakeProvider) Profile(context.Context, string) (*ExternalProfile, error) {
	return p.profile, p.err
}

type memStates struct {
	mu     sync.Mutex
	states map[string]bool
}

func (s *memStates) Save(_ context.Context, state string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states == nil {
		s.states = make(map[string]bool)
	}
	s.states[state] = true
	return nil
}

func (s *memStates) Consume(_ context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.states[state]
	delete(s.states, state)
	return ok, nil
}

type fakeStorage struct{ uploaded map[string]string }

func (s *fakeStorage) Upload(_ context.Context, objectPath, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if s.uploaded == nil {
		s.uploaded = make(map[string]string)
	}
	s.uploaded[objectPath] = string(b)
	return "https://storage.example.test/" + objectPath, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	indexed map[string]UserInfo
}

func (x *fakeIndex) Index(_ context.Context, u *entity.User) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.indexed == nil {
		x.indexed = make(map[string]UserInfo)
	}
	x.indexed[u.ID] = NewUserInfo(u)
	return nil
}

func (x *fakeIndex) Search(_ context.Context, _ string, size int) ([]UserInfo, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := []UserInfo{}
	for _, info := range x.indexed {
		if len(out) == size {
			break
		}
		out = append(out, info)
	}
	return out, nil
}

type harness struct {
	store    *memory.Store
	mail     *fakeMailer
	provider *fakeProvider
	states   *memStates
	hasher   *helpers.PasswordHasher
	refresh  *RefreshTokenStore
	resets   *PasswordResetService
	auth     *AuthService
	cleanup  *TokenCleanupService
	users    *UserService
	storage  *fakeStorage
	index    *fakeIndex
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hasher, err := helpers.NewPasswordHasher(bcrypt.MinCost, 4)
	require.NoError(t, err)
	jwtm, err := helpers.NewJWTManager(testJWTSecret, "notism", "notism-clients", time.Hour)
	require.NoError(t, err)

	h := &harness{
		store:    memory.NewStore(),
		mail:     &fakeMailer{},
		provider: &fakeProvider{},
		states:   &memStates{},
		hasher:   hasher,
		storage:  &fakeStorage{},
		index:    &fakeIndex{},
	}
	events := NewEventDispatcher(h.mail, logger)
	h.refresh = NewRefreshTokenStore(h.store.RefreshTokens(), 7*24*time.Hour)
	h.resets = NewPasswordResetService(h.store.Users(), h.store.ResetTokens(), h.refresh, h.store, hasher, h.mail, events, logger, 24*time.Hour)
	h.auth = NewAuthService(AuthDeps{
		Users:   h.store.Users(),
		Tx:      h.store,
		Refresh: h.refresh,
		Resets:  h.resets,
		Hasher:  hasher,
		Tokens:  jwtm,
		OAuth:   h.provider,
		States:  h.states,
		Events:  events,
		Logger:  logger,
	})
	h.cleanup = NewTokenCleanupService(h.refresh, h.resets, 7*24*time.Hour, logger)
	h.users = NewUserService(h.store.Users(), h.storage, h.index, events, logger)
	return h
}

func (h *harness) register(t *testing.T, email string) *AuthResult {
	t.Helper()
	res, err := h.auth.Register(context.Background(), RegisterInput{
		Email: email, Password: testPassword, FirstName: "Ada", LastName: "Lovelace",
	})
	require.NoError(t, err)
	return res
}

// shiftClock moves every service clock by d.
func (h *harness) shiftClock(d time.Duration) {
	now := func() time.Time { return time.Now().Add(d) }
	h.refresh.now = now
	h.resets.now = now
	h.auth.now = now
	h.cleanup.now = now
	h.users.now = now
}
