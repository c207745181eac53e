package entity

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxNameLength = 50

// User is the aggregate root for the user domain.
//
// Mutations never touch the receiver: each one returns a copy carrying only
// the event that mutation raised.
type User struct {
	ID           string
	Email        Email
	PasswordHash string
	Role         Role
	FirstName    string
	LastName     string
	AvatarURL    string
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	events []DomainEvent
}

// NewUser builds a fresh user with a generated id and raises UserCreated.
func NewUser(email Email, passwordHash string, role Role, firstName, lastName string, now time.Time) (*User, error) {
	if email == "" {
		return nil, ErrInvalidEmail
	}
	if role == "" {
		role = RoleUser
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if err := checkNames(firstName, lastName); err != nil {
		return nil, err
	}
	now = now.UTC()
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		FirstName:    firstName,
		LastName:     lastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u.events = []DomainEvent{UserCreated{
		baseEvent: baseEvent{UserID: u.ID, At: now},
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	}}
	return u, nil
}

func (u *User) clone(now time.Time) *User {
	cp := *u
	cp.events = nil
	cp.UpdatedAt = now.UTC()
	return &cp
}

// WithPassword returns a copy holding the new hash, raising UserPasswordChanged.
func (u *User) WithPassword(hash string, now time.Time) *User {
	cp := u.clone(now)
	cp.PasswordHash = hash
	cp.events = []DomainEvent{UserPasswordChanged{baseEvent{UserID: u.ID, At: cp.UpdatedAt}}}
	return cp
}

// ResetPassword is WithPassword for the reset flow; it raises PasswordResetCompleted.
func (u *User) ResetPassword(hash string, now time.Time) *User {
	cp := u.clone(now)
	cp.PasswordHash = hash
	cp.events = []DomainEvent{PasswordResetCompleted{baseEvent{UserID: u.ID, At: cp.UpdatedAt}}}
	return cp
}

// ProfileChanges lists optional profile edits; nil fields are left alone.
type ProfileChanges struct {
	FirstName *string
	LastName  *string
	AvatarURL *string
}

// UpdateProfile applies changes to a copy and raises UserProfileUpdated with
// the fields that actually changed.
func (u *User) UpdateProfile(ch ProfileChanges, now time.Time) (*User, error) {
	cp := u.clone(now)
	diff := map[string]string{}
	if ch.FirstName != nil {
		if v := strings.TrimSpace(*ch.FirstName); v != cp.FirstName {
			cp.FirstName = v
			diff["first_name"] = v
		}
	}
	if ch.LastName != nil {
		if v := strings.TrimSpace(*ch.LastName); v != cp.LastName {
			cp.LastName = v
			diff["last_name"] = v
		}
	}
	if ch.AvatarURL != nil && *ch.AvatarURL != cp.AvatarURL {
		cp.AvatarURL = *ch.AvatarURL
		diff["avatar_url"] = cp.AvatarURL
	}
	if err := checkNames(cp.FirstName, cp.LastName); err != nil {
		return nil, err
	}
	cp.events = []DomainEvent{UserProfileUpdated{baseEvent: baseEvent{UserID: u.ID, At: cp.UpdatedAt}, Changes: diff}}
	return cp, nil
}

// WithRole returns a copy with role set, raising UserRoleChanged.
func (u *User) WithRole(role Role, now time.Time) (*User, error) {
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	cp := u.clone(now)
	cp.Role = role
	cp.events = []DomainEvent{UserRoleChanged{baseEvent: baseEvent{UserID: u.ID, At: cp.UpdatedAt}, From: u.Role, To: role}}
	return cp, nil
}

// Events returns the events raised by the mutation that produced u.
func (u *User) Events() []DomainEvent {
	out := make([]DomainEvent, len(u.events))
	copy(out, u.events)
	return out
}

// CanLogin reports whether the account may authenticate.
func (u *User) CanLogin() bool { return !u.IsDeleted }

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func checkNames(names ...string) error {
	for _, n := range names {
		if utf8.RuneCountInString(n) > maxNameLength {
			return ErrNameTooLong
		}
	}
	return nil
}
