package server

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/zyalhor1961/corematch-web-sub006/internal/auth/domain"
	authoauth "github.com/zyalhor1961/corematch-web-sub006/internal/auth/oauth"
	orgdomain "github.com/zyalhor1961/corematch-web-sub006/internal/organization/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	oauthStateCookie     = "oauth_state"
	oauthVerifierCookie  = "oauth_code_verifier"
	oauthRedirectCookie  = "oauth_redirect_to"
	oauthStateTTL        = 10 * time.Minute
	oauthSessionTTL      = 7 * 24 * time.Hour
	sessionTokenSize     = 32
	oauthErrorRedirectTo = "/login?error=oauth_login"
)

type oauthIdentity struct {
	ExternalID  string
	Email       string
	DisplayName string
}

// OAuthLogin serves both legs of the provider flow on one route: with no
// code it starts the redirect, with a code it completes the callback.
func (s *Server) OAuthLogin(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("name"))
	if provider == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	if strings.TrimSpace(c.Query("error")) != "" {
		s.logOAuthError(c, provider)
		s.clearOAuthCookies(c)
		redirectToOAuthError(c)
		return
	}

	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		if err := s.startOAuthLogin(c, provider); err != nil {
			s.handleOAuthError(c, provider, err)
		}
		return
	}

	if err := s.handleOAuthCallback(c, provider, code); err != nil {
		s.handleOAuthError(c, provider, err)
	}
}

func (s *Server) startOAuthLogin(c *gin.Context, provider string) error {
	redirectURI := s.oauthRedirectURI(c, provider)
	result, err := s.oauthsvc.RedirectURL(c.Request.Context(), provider, authoauth.RedirectRequest{
		RedirectURI: redirectURI,
	})
	if err != nil {
		return err
	}

	s.setOAuthCookie(c, oauthStateCookie, result.State, oauthStateTTL)
	if strings.TrimSpace(result.CodeVerifier) != "" {
		s.setOAuthCookie(c, oauthVerifierCookie, result.CodeVerifier, oauthStateTTL)
	}

	redirectTarget := sanitizeRedirectPath(firstNonEmpty(c.Query("redirectTo"), c.Query("redirect_to")))
	if redirectTarget != "" {
		s.setOAuthCookie(c, oauthRedirectCookie, redirectTarget, oauthStateTTL)
	}

	c.Redirect(http.StatusFound, result.URL)
	return nil
}

func (s *Server) handleOAuthCallback(c *gin.Context, provider string, code string) error {
	state := strings.TrimSpace(c.Query("state"))
	storedState, err := c.Cookie(oauthStateCookie)
	if err != nil || storedState == "" || state == "" || !subtleConstantEquals(state, storedState) {
		s.clearOAuthCookies(c)
		return ErrUnauthorized
	}

	verifier, _ := c.Cookie(oauthVerifierCookie)
	redirectTarget, _ := c.Cookie(oauthRedirectCookie)
	s.clearOAuthCookies(c)

	redirectURI := s.oauthRedirectURI(c, provider)
	result, err := s.oauthsvc.Login(c.Request.Context(), provider, authoauth.LoginRequest{
		Code:         code,
		RedirectURI:  redirectURI,
		CodeVerifier: verifier,
	})
	if err != nil {
		return err
	}

	allowSignUp := result.AllowSignUp || !s.cfg.IsCloud()
	user, err := s.findOrCreateOAuthUser(c.Request.Context(), result.ProviderName, oauthIdentity{
		ExternalID:  result.Identity.ExternalID,
		Email:       result.Identity.Email,
		DisplayName: result.Identity.DisplayName,
	}, allowSignUp)
	if err != nil {
		return err
	}
	if err := s.ensureDefaultOrgMembership(c.Request.Context(), user.ID); err != nil {
		return err
	}

	loginResult, err := s.createLoginResult(c, user, result.ProviderName)
	if err != nil {
		return err
	}
	s.sessions.Set(c, loginResult.RawToken, loginResult.ExpiresAt)
	s.enrichSessionMetadata(c, loginResult)

	redirectTarget = sanitizeRedirectPath(redirectTarget)
	if redirectTarget == "" {
		redirectTarget = "/"
	}
	c.Redirect(http.StatusFound, redirectTarget)
	return nil
}

func (s *Server) findOrCreateOAuthUser(ctx context.Context, provider string, identity oauthIdentity, allowSignUp bool) (*authdomain.User, error) {
	var user authdomain.User
	err := s.db.WithContext(ctx).Where("external_id = ?", identity.ExternalID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if !allowSignUp {
			return nil, ErrUnauthorized
		}
		now := time.Now().UTC()
		user = authdomain.User{
			ID:                  s.genID.Generate(),
			ExternalID:          identity.ExternalID,
			Provider:            provider,
			DisplayName:         identity.DisplayName,
			Email:               identity.Email,
			Metadata:            datatypes.JSONMap{},
			IsDefault:           false,
			LastPasswordChanged: nil,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if identity.Email != "" && identity.Email != user.Email {
		updates["email"] = identity.Email
		user.Email = identity.Email
	}
	if identity.DisplayName != "" && identity.DisplayName != user.DisplayName {
		updates["display_name"] = identity.DisplayName
		user.DisplayName = identity.DisplayName
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now().UTC()
		if err := s.db.WithContext(ctx).Model(&authdomain.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return &user, nil
}

func (s *Server) createLoginResult(c *gin.Context, user *authdomain.User, authProvider string) (*authdomain.LoginResult, error) {
	rawToken, err := newRandomToken(sessionTokenSize)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &authdomain.Session{
		ID:               s.genID.Generate(),
		UserID:           user.ID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(c.Request.UserAgent()),
		IPAddress:        strings.TrimSpace(c.ClientIP()),
		OrgIDs:           []int64{},
		ExpiresAt:        now.Add(oauthSessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}

	if err := s.db.WithContext(c.Request.Context()).Create(session).Error; err != nil {
		return nil, err
	}

	mustChangePassword := false
	passwordState := "rotated"
	if user.Provider == "local" && (user.IsDefault || user.LastPasswordChanged == nil) {
		passwordState = "default"
		mustChangePassword = true
	}

	return &authdomain.LoginResult{
		Session: &authdomain.SessionView{
			Metadata: map[string]any{
				"user_id":               user.ID.String(),
				"external_id":           user.ExternalID,
				"provider":              user.Provider,
				"display_name":          user.DisplayName,
				"email":                 user.Email,
				"is_default":            user.IsDefault,
				"last_password_changed": user.LastPasswordChanged,
				"must_change_password":  mustChangePassword,
				"password_state":        passwordState,
				"auth_provider":         authProvider,
			},
		},
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
	}, nil
}

// ensureDefaultOrgMembership attaches cloud sign-ins to the configured
// default organization. Self-hosted installs create their own orgs.
func (s *Server) ensureDefaultOrgMembership(ctx context.Context, userID snowflake.ID) error {
	if userID == 0 || !s.cfg.IsCloud() || s.cfg.DefaultOrgID == 0 {
		return nil
	}

	orgID := snowflake.ID(s.cfg.DefaultOrgID)
	var org orgdomain.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&orgdomain.OrganizationMember{}).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	member := orgdomain.OrganizationMember{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      orgdomain.RoleMember,
		CreatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Create(&member).Error
}

func (s *Server) oauthRedirectURI(c *gin.Context, provider string) string {
	base := requestBaseURL(c)
	return fmt.Sprintf("%s/login/%s", base, url.PathEscape(provider))
}

func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := firstHeaderValue(c.GetHeader("X-Forwarded-Proto")); proto != "" {
		scheme = strings.ToLower(proto)
	}
	host := c.Request.Host
	if forwarded := firstHeaderValue(c.GetHeader("X-Forwarded-Host")); forwarded != "" {
		host = forwarded
	}
	return scheme + "://" + host
}

func (s *Server) handleOAuthError(c *gin.Context, provider string, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, authoauth.ErrProviderNotFound),
		errors.Is(err, authoauth.ErrProviderNotSupported):
		AbortWithError(c, ErrNotFound)
	default:
		s.log.Warn("oauth login failed", zap.String("provider", provider), zap.Error(err))
		redirectToOAuthError(c)
	}
}

func (s *Server) logOAuthError(c *gin.Context, provider string) {
	s.log.Warn("oauth login error",
		zap.String("provider", provider),
		zap.String("error", strings.TrimSpace(c.Query("error"))),
		zap.String("description", strings.TrimSpace(c.Query("error_description"))),
		zap.String("uri", strings.TrimSpace(c.Query("error_uri"))))
}

func redirectToOAuthError(c *gin.Context) {
	c.Redirect(http.StatusFound, oauthErrorRedirectTo)
}

func firstHeaderValue(value string) string {
	if value == "" {
		return ""
	}
	if idx := strings.Index(value, ","); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func sanitizeRedirectPath(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "//") || strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return ""
	}
	if !strings.HasPrefix(value, "/") {
		return ""
	}
	return value
}

func (s *Server) setOAuthCookie(c *gin.Context, name string, value string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", s.cfg.AuthCookieSecure, true)
}

func (s *Server) clearOAuthCookies(c *gin.Context) {
	s.clearCookie(c, oauthStateCookie)
	s.clearCookie(c, oauthVerifierCookie)
	s.clearCookie(c, oauthRedirectCookie)
}

func (s *Server) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", s.cfg.AuthCookieSecure, true)
}

func newRandomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func subtleConstantEquals(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
