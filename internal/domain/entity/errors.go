package entity

import "errors"

var (
	ErrInvalidEmail     = errors.New("email must be a valid email address")
	ErrPasswordBlank    = errors.New("password cannot be empty")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters long")
	ErrInvalidRole      = errors.New("role must be either 'user' or 'admin'")
	ErrNameTooLong      = errors.New("name cannot exceed 50 characters")
)
