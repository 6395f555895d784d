// Package httpapi exposes the FileService over HTTP with gin.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lockbox/internal/lockbox"
	"lockbox/internal/session"
)

const (
	defaultCookieName     = "lockbox_session"
	defaultMaxUploadBytes = 32 << 20
)

// Options tunes the transport. Zero values select the defaults.
type Options struct {
	CookieName     string
	MaxUploadBytes int64
	SecureCookie   bool // set the Secure attribute on the session cookie
}

// Server routes HTTP requests to the FileService. The acting user is taken
// from the session token and passed to every service call.
type Server struct {
	service  *lockbox.FileService
	sessions *session.Manager
	logger   lockbox.Logger
	opts     Options
	engine   *gin.Engine
}

// NewServer builds the router.
func NewServer(service *lockbox.FileService, sessions *session.Manager, logger lockbox.Logger, opts Options) *Server {
	if opts.CookieName == "" {
		opts.CookieName = defaultCookieName
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		service:  service,
		sessions: sessions,
		logger:   logger,
		opts:     opts,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.recovery(), s.requestLogger(), s.authenticate())

	api := r.Group("/api")
	{
		api.POST("/register", s.handleRegister)
		api.POST("/login", s.handleLogin)
		api.POST("/logout", s.handleLogout)
		api.GET("/me", s.handleMe)
	}

	protected := r.Group("/api")
	protected.Use(s.requireSession())
	{
		protected.POST("/upload", s.limitBody(), s.handleUpload)
		protected.GET("/files", s.handleListFiles)
		protected.GET("/read/:id", s.handleRead)
		protected.POST("/write/:id", s.limitBody(), s.handleWrite)
		protected.POST("/delete/:id", s.handleDelete)
		protected.GET("/download/:id", s.handleDownload)
		protected.POST("/share", s.handleShare)
		protected.GET("/meta/:id", s.handleMeta)
		protected.GET("/logs", s.handleLogs)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	return r
}
