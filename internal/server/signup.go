package server

import (
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	authdomain "github.com/zyalhor1961/corematch-web-sub006/internal/auth/domain"
)

type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Signup registers a local account and opens a session for it.
func (s *Server) Signup(c *gin.Context) {
	if s.cfg.IsCloud() {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		AbortWithError(c, newValidationError("email", "invalid_email", "invalid email address"))
		return
	}
	if len(req.Password) < 8 {
		AbortWithError(c, newValidationError("password", "weak_password", "password must be at least 8 characters"))
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = email
	}

	user, err := s.authsvc.CreateUser(c.Request.Context(), authdomain.CreateUserRequest{
		Email:       email,
		Password:    req.Password,
		DisplayName: displayName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	s.enrichSessionMetadata(c, result)

	if s.auditSvc != nil {
		userID := user.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, string(auditdomain.ActorTypeUser), &userID, "user.signup", "user", &userID, map[string]any{
			"email": email,
		})
	}

	respondCreated(c, result.Session)
}
