package entity

import "time"

// DomainEvent is raised by an aggregate and dispatched after the
// surrounding unit of work commits.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

type baseEvent struct {
	UserID string
	At     time.Time
}

func (e baseEvent) AggregateID() string   { return e.UserID }
func (e baseEvent) OccurredAt() time.Time { return e.At }

type UserCreated struct {
	baseEvent
	Email     Email
	FirstName string
	LastName  string
}

func (UserCreated) EventName() string { return "user.created" }

type UserProfileUpdated struct {
	baseEvent
	Changes map[string]string
}

func (UserProfileUpdated) EventName() string { return "user.profile_updated" }

type UserPasswordChanged struct {
	baseEvent
}

func (UserPasswordChanged) EventName() string { return "user.password_changed" }

type UserRoleChanged struct {
	baseEvent
	From Role
	To   Role
}

func (UserRoleChanged) EventName() string { return "user.role_changed" }

type PasswordResetRequested struct {
	baseEvent
	Email     Email
	ExpiresAt time.Time
}

func (PasswordResetRequested) EventName() string { return "user.password_reset_requested" }

func NewPasswordResetRequested(userID string, email Email, expiresAt, now time.Time) PasswordResetRequested {
	return PasswordResetRequested{baseEvent: baseEvent{UserID: userID, At: now}, Email: email, ExpiresAt: expiresAt}
}

type PasswordResetCompleted struct {
	baseEvent
}

func (PasswordResetCompleted) EventName() string { return "user.password_reset_completed" }
