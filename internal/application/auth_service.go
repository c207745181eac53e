package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/notism-go/internal/domain/entity"
	"github.com/oksasatya/notism-go/internal/domain/repository"
	"github.com/oksasatya/notism-go/pkg/helpers"
	"github.com/oksasatya/notism-go/pkg/metrics"
)

const oauthStateTTL = 10 * time.Minute

// AuthDeps groups the collaborators of AuthService. OAuth and States may be
// nil, which disables external login.
type AuthDeps struct {
	Users   repository.UserRepository
	Tx      repository.Transactor
	Refresh *RefreshTokenStore
	Resets  *PasswordResetService
	Hasher  PasswordHasher
	Tokens  AccessTokenIssuer
	OAuth   IdentityProvider
	States  OAuthStateStore
	Events  *EventDispatcher
	Logger  *logrus.Logger
}

// AuthService is the session manager: it authenticates users and opens,
// rotates and closes their sessions.
type AuthService struct {
	users   repository.UserRepository
	tx      repository.Transactor
	refresh *RefreshTokenStore
	resets  *PasswordResetService
	hasher  PasswordHasher
	tokens  AccessTokenIssuer
	oauth   IdentityProvider
	states  OAuthStateStore
	events  *EventDispatcher
	logger  *logrus.Logger
	now     func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(d AuthDeps) *AuthService {
	return &AuthService{
		users:   d.Users,
		tx:      d.Tx,
		refresh: d.Refresh,
		resets:  d.Resets,
		hasher:  d.Hasher,
		tokens:  d.Tokens,
		oauth:   d.OAuth,
		states:  d.States,
		events:  d.Events,
		logger:  d.Logger,
		now:     time.Now,
	}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Login authenticates by email and password. Every failure looks the same to
// the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	defer func() { metrics.ObserveAuth("login", err) }()

	addr, err := entity.NewEmail(email)
	if err != nil {
		s.burnVerify(ctx, password)
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.GetByEmail(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		s.burnVerify(ctx, password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load user: %w", ErrPersistence, err)
	}
	if !s.hasher.Verify(ctx, u.PasswordHash, password) || !u.CanLogin() {
		return nil, ErrInvalidCredentials
	}
	res, err = s.issueSession(ctx, u)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", u.ID).Info("user logged in")
	return res, nil
}

// burnVerify spends one hash comparison so unknown emails take as long as
// wrong passwords.
func (s *AuthService) burnVerify(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		raw, err := helpers.NewURLSafeToken()
		if err != nil {
			return
		}
		s.dummyHash, _ = s.hasher.Hash(context.WithoutCancel(ctx), raw)
	})
	_ = s.hasher.Verify(ctx, s.dummyHash, password)
}

// Register creates a user with role user and opens the first session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	defer func() { metrics.ObserveAuth("register", err) }()

	addr, err := entity.NewEmail(in.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	pwd, err := entity.NewPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	hash, err := s.hasher.Hash(ctx, pwd.Plain())
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var created *entity.User
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.users.GetByEmail(ctx, addr)
		switch {
		case err == nil:
			return ErrUserAlreadyExists
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%w: load user: %w", ErrPersistence, err)
		}
		u, err := entity.NewUser(addr, hash, entity.RoleUser, in.FirstName, in.LastName, s.now())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		if err := s.users.Create(ctx, u); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrUserAlreadyExists
			}
			return fmt.Errorf("%w: create user: %w", ErrPersistence, err)
		}
		created = u
		res, err = s.issueSession(ctx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", created.ID).Info("user registered")
	s.events.Dispatch(ctx, created.Events()...)
	return res, nil
}

// BeginOAuth returns the provider URL the client should be redirected to.
func (s *AuthService) BeginOAuth(ctx context.Context) (string, error) {
	if s.oauth == nil || s.states == nil {
		return "", ErrOAuthFailed
	}
	state, err := helpers.NewURLSafeToken()
	if err != nil {
		return "", err
	}
	if err := s.states.Save(ctx, state, oauthStateTTL); err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}
	return s.oauth.AuthCodeURL(state), nil
}

// VerifyOAuthState consumes state; a state is accepted at most once.
func (s *AuthService) VerifyOAuthState(ctx context.Context, state string) error {
	if s.states == nil || state == "" {
		return ErrInvalidOAuthState
	}
	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		return fmt.Errorf("consume oauth state: %w", err)
	}
	if !ok {
		return ErrInvalidOAuthState
	}
	return nil
}

// OAuthLogin exchanges an authorization code, finds or creates the matching
// user and opens a session.
func (s *AuthService) OAuthLogin(ctx context.Context, code string) (res *AuthResult, err error) {
	defer func() { metrics.ObserveAuth("oauth_login", err) }()

	if s.oauth == nil {
		return nil, ErrOAuthFailed
	}
	accessToken, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.WithError(err).Warn("oauth code exchange failed")
		return nil, ErrOAuthFailed
	}
	profile, err := s.oauth.Profile(ctx, accessToken)
	if err != nil {
		s.logger.WithError(err).Warn("oauth profile fetch failed")
		return nil, ErrOAuthFailed
	}
	addr, err := entity.NewEmail(profile.Email)
	if err != nil {
		return nil, ErrOAuthFailed
	}

	res, err = s.oauthExistingUser(ctx, addr)
	if !errors.Is(err, repository.ErrNotFound) {
		return res, err
	}

	// The account never gets a usable password; the random secret is discarded.
	secret, err := helpers.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(ctx, secret)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := entity.NewUser(addr, hash, entity.RoleUser, profile.GivenName, profile.FamilyName, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOAuthFailed, err)
	}
	u.AvatarURL = profile.Picture

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return err
			}
			return fmt.Errorf("%w: create user: %w", ErrPersistence, err)
		}
		var issueErr error
		res, issueErr = s.issueSession(ctx, u)
		return issueErr
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent callback for the same address created the account first.
		res, err = s.oauthExistingUser(ctx, addr)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOAuthFailed
		}
		return res, err
	}
	if err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", u.ID).Info("user registered via oauth")
	s.events.Dispatch(ctx, u.Events()...)
	return res, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued, all under the presented token's row lock.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (res *AuthResult, err error) {
	defer func() { metrics.ObserveAuth("refresh", err) }()

	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		tok, err := s.refresh.lockValid(ctx, refreshToken)
		if err != nil {
			return err
		}
		u, err := s.users.GetByID(ctx, tok.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: load user: %w", ErrPersistence, err)
		}
		if !u.CanLogin() {
			return ErrInvalidRefreshToken
		}
		if err := s.refresh.revokeByID(ctx, tok.ID); err != nil {
			if errors.Is(err, ErrTokenAlreadyRevoked) {
				return ErrInvalidRefreshToken
			}
			return err
		}
		res, err = s.issueSession(ctx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Logout revokes every live refresh token of the user.
func (s *AuthService) Logout(ctx context.Context, userID string) (n int64, err error) {
	defer func() { metrics.ObserveAuth("logout", err) }()

	n, err = s.refresh.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "revoked": n}).Info("user logged out")
	return n, nil
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	return s.resets.RequestReset(ctx, email)
}

func (s *AuthService) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	return s.resets.CompleteReset(ctx, token, newPassword)
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one, and ends all of the user's sessions.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) (err error) {
	defer func() { metrics.ObserveAuth("change_password", err) }()

	pwd, err := entity.NewPassword(next)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: load user: %w", ErrPersistence, err)
	}
	if !s.hasher.Verify(ctx, u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(ctx, pwd.Plain())
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	updated := u.WithPassword(hash, s.now())
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.UpdatePassword(ctx, updated); err != nil {
			return fmt.Errorf("%w: update password: %w", ErrPersistence, err)
		}
		_, err := s.refresh.RevokeAll(ctx, u.ID)
		return err
	})
	if err != nil {
		return err
	}
	s.events.Dispatch(ctx, updated.Events()...)
	return nil
}

// oauthExistingUser opens a session for the account registered under addr.
// It returns repository.ErrNotFound when there is none.
func (s *AuthService) oauthExistingUser(ctx context.Context, addr entity.Email) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load user: %w", ErrPersistence, err)
	}
	if !u.CanLogin() {
		return nil, ErrInvalidCredentials
	}
	return s.issueSession(ctx, u)
}

func (s *AuthService) issueSession(ctx context.Context, u *entity.User) (*AuthResult, error) {
	access, accessExp, err := s.tokens.Issue(u.ID, u.Email.String(), u.Role.String())
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := s.refresh.Issue(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		User:             NewUserInfo(u),
	}, nil
}
