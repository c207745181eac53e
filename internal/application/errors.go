package application

import "errors"

var (
	ErrInvalidCredentials         = errors.New("invalid email or password")
	ErrUserAlreadyExists          = errors.New("user with this email already exists")
	ErrInvalidRefreshToken        = errors.New("invalid or expired refresh token")
	ErrTokenAlreadyRevoked        = errors.New("refresh token already revoked")
	ErrInvalidOrExpiredResetToken = errors.New("invalid or expired password reset token")
	ErrResetRequestFailed         = errors.New("failed to process password reset request")
	ErrUserNotFound               = errors.New("user not found")
	ErrValidation                 = errors.New("validation failed")
	ErrPersistence                = errors.New("persistence failure")
	ErrInvalidOAuthState          = errors.New("invalid oauth state")
	ErrOAuthFailed                = errors.New("external login failed")
	ErrStorageUnavailable         = errors.New("object storage not configured")
	ErrForbidden                  = errors.New("insufficient role")
)
