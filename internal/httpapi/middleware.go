package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"lockbox/internal/lockbox"
)

const actorKey = "lockbox.actor"

// actor returns the authenticated username, or "" for anonymous requests.
func actor(c *gin.Context) string {
	return c.GetString(actorKey)
}

// authenticate resolves the session token, if any, to a username. Invalid
// or revoked tokens leave the request anonymous.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := s.extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		username, err := s.sessions.Verify(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, lockbox.ErrAuthenticationRequired) {
				s.logger.Error("session lookup failed", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
				return
			}
			s.logger.Debug("ignoring invalid session token", "error", err)
			c.Next()
			return
		}

		c.Set(actorKey, username)
		c.Next()
	}
}

// requireSession rejects anonymous requests before the handler reads the body.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not logged in"})
			return
		}
		c.Next()
	}
}

// extractToken reads the session cookie, falling back to a bearer token.
func (s *Server) extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(s.opts.CookieName); err == nil && cookie != "" {
		return cookie
	}

	bearer := c.GetHeader("Authorization")
	if len(bearer) > 7 && strings.EqualFold(bearer[:7], "Bearer ") {
		return strings.TrimSpace(bearer[7:])
	}
	return ""
}

func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > s.opts.MaxUploadBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"remote", c.ClientIP(),
		}
		if user := actor(c); user != "" {
			args = append(args, "user", user)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn("request failed", args...)
			return
		}
		s.logger.Info("request", args...)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		s.logger.Error("panic serving request", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	})
}
