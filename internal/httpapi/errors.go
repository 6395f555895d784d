package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lockbox/internal/lockbox"
	"lockbox/internal/staging"
)

// statusFor maps a service error to its HTTP status and public message.
func statusFor(err error) (int, string) {
	var rejection *lockbox.RejectionError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &rejection):
		return http.StatusBadRequest, rejection.Reason
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, lockbox.ErrAuthenticationRequired):
		return http.StatusUnauthorized, "Not logged in"
	case errors.Is(err, lockbox.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, lockbox.ErrAuthorizationDenied):
		return http.StatusForbidden, "No permission"
	case errors.Is(err, lockbox.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, lockbox.ErrInvalidGrant):
		return http.StatusBadRequest, "Invalid share request"
	case errors.Is(err, lockbox.ErrUserExists):
		return http.StatusConflict, "User already exists"
	case errors.Is(err, staging.ErrStagingFull):
		return http.StatusServiceUnavailable, "Server busy, try again later"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// writeError sends err as a JSON error body. Server-side failures are logged.
func (s *Server) writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request error", "path", c.Request.URL.Path, "user", actor(c), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
