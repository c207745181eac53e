package entity

import (
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest plaintext accepted before hashing.
const MinPasswordLength = 8

// Password is a plaintext password that passed the domain rules.
// It only lives long enough to be hashed.
type Password string

func NewPassword(plain string) (Password, error) {
	if strings.TrimSpace(plain) == "" {
		return "", ErrPasswordBlank
	}
	if utf8.RuneCountInString(plain) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	return Password(plain), nil
}

func (p Password) Plain() string { return string(p) }
