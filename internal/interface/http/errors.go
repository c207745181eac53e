package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/notism-go/internal/application"
	"github.com/oksasatya/notism-go/internal/infrastructure/storage"
	"github.com/oksasatya/notism-go/pkg/response"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

// Order matters: the first matching sentinel wins.
var errorTable = []errorMapping{
	{application.ErrInvalidCredentials, http.StatusBadRequest, "Invalid email or password"},
	{application.ErrUserAlreadyExists, http.StatusBadRequest, "User with this email already exists"},
	{application.ErrInvalidRefreshToken, http.StatusUnauthorized, "Invalid or expired refresh token"},
	{application.ErrTokenAlreadyRevoked, http.StatusBadRequest, "Refresh token already revoked"},
	{application.ErrInvalidOrExpiredResetToken, http.StatusBadRequest, "Invalid or expired password reset token"},
	{application.ErrResetRequestFailed, http.StatusInternalServerError, "Failed to process password reset request. Please try again later."},
	{application.ErrValidation, http.StatusBadRequest, "validation failed"},
	{application.ErrUserNotFound, http.StatusNotFound, "user not found"},
	{application.ErrInvalidOAuthState, http.StatusBadRequest, "invalid oauth state"},
	{application.ErrOAuthFailed, http.StatusBadGateway, "external login failed"},
	{application.ErrForbidden, http.StatusForbidden, "forbidden"},
	{storage.ErrTooLarge, http.StatusRequestEntityTooLarge, "file too large"},
	{application.ErrStorageUnavailable, http.StatusServiceUnavailable, "avatar storage unavailable"},
}

// writeError translates a service error into the response envelope. Errors
// without a mapping are logged and reported as a generic 500.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	for _, m := range errorTable {
		if !errors.Is(err, m.target) {
			continue
		}
		var detail any
		if m.target == application.ErrValidation {
			detail = err.Error()
		}
		if m.status >= http.StatusInternalServerError && logger != nil {
			logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error("request failed")
		}
		response.Error(c, m.status, m.message, detail)
		return
	}
	if logger != nil {
		logger.WithError(err).
			WithFields(logrus.Fields{"request_id": c.GetString("request_id"), "path": c.FullPath()}).
			Error("unhandled error")
	}
	response.Error(c, http.StatusInternalServerError, "internal server error", nil)
}
