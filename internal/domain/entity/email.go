package entity

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Email is a validated, lower-cased email address.
type Email string

// NewEmail trims and validates raw, returning its canonical lower-case form.
func NewEmail(raw string) (Email, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidEmail
	}
	if err := validate.Var(s, "email"); err != nil {
		return "", ErrInvalidEmail
	}
	return Email(strings.ToLower(s)), nil
}

func (e Email) String() string { return string(e) }
