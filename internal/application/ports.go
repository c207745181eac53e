package application

import (
	"context"
	"io"
	"time"

	"github.com/oksasatya/notism-go/internal/domain/entity"
)

type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, hash, plain string) bool
}

type AccessTokenIssuer interface {
	Issue(userID, email, role string) (token string, expiresAt time.Time, err error)
}

// ExternalProfile is what an identity provider tells us about a user.
type ExternalProfile struct {
	Email      string
	GivenName  string
	FamilyName string
	Picture    string
}

type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (accessToken string, err error)
	Profile(ctx context.Context, accessToken string) (*ExternalProfile, error)
}

// OAuthStateStore keeps anti-CSRF state between redirect and callback.
type OAuthStateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	// Consume reports whether state existed; it can succeed only once.
	Consume(ctx context.Context, state string) (bool, error)
}

type EmailSender interface {
	SendPasswordResetEmail(ctx context.Context, to entity.Email, name, token string, expiresAt time.Time) error
	SendWelcomeEmail(ctx context.Context, to entity.Email, name string) error
}

type ObjectStorage interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (url string, err error)
}

type UserIndex interface {
	Index(ctx context.Context, u *entity.User) error
	Search(ctx context.Context, query string, size int) ([]UserInfo, error)
}

// UserInfo is the public view of a user returned to clients.
type UserInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func NewUserInfo(u *entity.User) UserInfo {
	return UserInfo{
		ID:        u.ID,
		Email:     u.Email.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role.String(),
		AvatarURL: u.AvatarURL,
	}
}

// AuthResult is returned by every operation that opens or rotates a session.
type AuthResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             UserInfo
}
