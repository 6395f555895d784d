package httpapi

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"lockbox/internal/lockbox"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type writeRequest struct {
	Text *string `json:"text"`
}

type shareRequest struct {
	ID   string `json:"id"`
	User string `json:"user"`
	Mode string `json:"mode"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	if err := s.service.Register(req.Username, req.Password); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := s.service.Login(req.Username, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	token, expires, err := s.sessions.Issue(user.Username)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.opts.CookieName, token, int(s.sessions.TTL().Seconds()), "/", "", s.opts.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"expires": formatTime(expires),
	})
}

func (s *Server) handleLogout(c *gin.Context) {
	if token := s.extractToken(c); token != "" {
		if err := s.sessions.Revoke(c.Request.Context(), token); err != nil {
			s.logger.Debug("logout with unusable token", "error", err)
		}
	}

	s.service.Logout(actor(c))

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.opts.CookieName, "", -1, "/", "", s.opts.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleMe(c *gin.Context) {
	user := actor(c)
	if user == "" {
		c.JSON(http.StatusOK, gin.H{"logged_in": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_in": true, "user": user})
}

func (s *Server) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		if status, _ := statusFor(err); status == http.StatusRequestEntityTooLarge {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	f, err := header.Open()
	if err != nil {
		s.writeError(c, fmt.Errorf("opening upload: %w", err))
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		s.writeError(c, fmt.Errorf("reading upload: %w", err))
		return
	}

	record, err := s.service.Upload(actor(c), header.Filename, content)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": record.ID})
}

func (s *Server) handleListFiles(c *gin.Context) {
	records, err := s.service.ListFiles(actor(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFileList(records))
}

func (s *Server) handleRead(c *gin.Context) {
	content, err := s.service.Read(actor(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	// JSON strings cannot carry arbitrary bytes; binary files are served by /api/download.
	if !utf8.Valid(content) {
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{"error": "Binary file, use /api/download"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": string(content)})
}

func (s *Server) handleWrite(c *gin.Context) {
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if status, _ := statusFor(err); status == http.StatusRequestEntityTooLarge {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Text == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing text"})
		return
	}

	record, err := s.service.Write(actor(c), c.Param("id"), []byte(*req.Text))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "size": record.Size})
}

func (s *Server) handleDelete(c *gin.Context) {
	if err := s.service.Delete(actor(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDownload(c *gin.Context) {
	started := false
	err := s.service.Download(actor(c), c.Param("id"), func(a lockbox.Artifact) error {
		started = true
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name()}))
		http.ServeContent(c.Writer, c.Request, a.Name(), a.ModTime(), a)
		return nil
	})
	if err == nil {
		return
	}
	if started {
		s.logger.Error("download interrupted", "id", c.Param("id"), "error", err)
		return
	}
	s.writeError(c, err)
}

func (s *Server) handleShare(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if _, err := s.service.Share(actor(c), req.ID, req.User, lockbox.Mode(req.Mode)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleMeta(c *gin.Context) {
	record, err := s.service.Meta(actor(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFileJSON(record))
}

func (s *Server) handleLogs(c *gin.Context) {
	events, err := s.service.Events(actor(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventList(events))
}
