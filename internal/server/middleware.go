package server

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	auditcontext "github.com/zyalhor1961/corematch-web-sub006/internal/auditcontext"
	authdomain "github.com/zyalhor1961/corematch-web-sub006/internal/auth/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/auth/password"
	organizationdomain "github.com/zyalhor1961/corematch-web-sub006/internal/organization/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
)

const (
	// HeaderOrg selects the active organization on session-backed routes.
	HeaderOrg = "X-Org-ID"

	contextUserIDKey  = "user_id"
	contextSessionKey = "session"
)

// WebAuthRequired authenticates the request against the session cookie.
func (s *Server) WebAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, session.UserID.String())
		c.Set(contextSessionKey, session)

		ctx := auditcontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeUser), session.UserID.String())
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OrgContext resolves the active organization for a session-backed
// request and verifies the caller is a member before the handlers run.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.userIDFromSession(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		orgID, err := s.orgIDFromRequest(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		if _, err := s.organizationSvc.MemberRole(c.Request.Context(), orgID.String(), userID); err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), int64(orgID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole gates a route to members holding one of the given roles.
func (s *Server) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.userIDFromSession(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		orgID, err := s.orgIDFromRequest(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		role, err := s.organizationSvc.MemberRole(c.Request.Context(), orgID.String(), userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		for _, allowed := range roles {
			if strings.EqualFold(role, allowed) {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

// RateLimit throttles authenticated API traffic through the shared
// Redis token bucket. It is a no-op when rate limiting is disabled.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.apiLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		if keyID, ok := apiKeyIDFromContext(ctx); ok {
			result, err := s.apiLimiter.AllowKey(ctx, keyID.String())
			if err != nil {
				// A limiter outage must not take the API down.
				c.Next()
				return
			}
			if !result.Allowed {
				abortRateLimited(c, result.RetryAfter)
				return
			}
		}

		orgID := orgIDFromContext(ctx)
		if orgID != 0 {
			result, err := s.apiLimiter.AllowOrg(ctx, orgID.String())
			if err != nil {
				c.Next()
				return
			}
			if !result.Allowed {
				abortRateLimited(c, result.RetryAfter)
				return
			}
		}

		c.Next()
	}
}

func abortRateLimited(c *gin.Context, retryAfter time.Duration) {
	seconds := int64(retryAfter / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.FormatInt(seconds, 10))
	AbortWithError(c, ErrRateLimited)
}

func (s *Server) userIDFromSession(c *gin.Context) (snowflake.ID, bool) {
	raw, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	value, ok := raw.(string)
	if !ok || strings.TrimSpace(value) == "" {
		return 0, false
	}
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed == 0 {
		return 0, false
	}
	return parsed, true
}

func sessionFromContext(c *gin.Context) (*authdomain.Session, bool) {
	raw, ok := c.Get(contextSessionKey)
	if !ok {
		return nil, false
	}
	session, ok := raw.(*authdomain.Session)
	if !ok || session == nil {
		return nil, false
	}
	return session, true
}

// orgIDFromRequest resolves the active organization from the request:
// the X-Org-ID header wins, then the org_id query parameter, then the
// session's active org.
func (s *Server) orgIDFromRequest(c *gin.Context) (snowflake.ID, error) {
	candidates := []string{
		strings.TrimSpace(c.GetHeader(HeaderOrg)),
		strings.TrimSpace(c.Query("org_id")),
		strings.TrimSpace(c.Query("orgId")),
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		parsed, err := snowflake.ParseString(candidate)
		if err != nil || parsed == 0 {
			return 0, newValidationError("org_id", "invalid_org_id", "invalid organization id")
		}
		return parsed, nil
	}

	if session, ok := sessionFromContext(c); ok && session.ActiveOrgID != nil && *session.ActiveOrgID != 0 {
		return snowflake.ID(*session.ActiveOrgID), nil
	}

	if orgID := orgIDFromContext(c.Request.Context()); orgID != 0 {
		return orgID, nil
	}

	return 0, newValidationError("org_id", "missing_org_id", "organization id is required")
}

func (s *Server) loadUserOrgIDs(ctx context.Context, userID snowflake.ID) ([]int64, error) {
	var memberships []organizationdomain.OrganizationMember
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, err
	}

	orgIDs := make([]int64, 0, len(memberships))
	for _, member := range memberships {
		orgIDs = append(orgIDs, int64(member.OrgID))
	}
	return orgIDs, nil
}

func containsOrgID(orgIDs []int64, orgID int64) bool {
	for _, candidate := range orgIDs {
		if candidate == orgID {
			return true
		}
	}
	return false
}

func toOrgIDStrings(orgIDs []int64) []string {
	out := make([]string, 0, len(orgIDs))
	for _, orgID := range orgIDs {
		out = append(out, snowflake.ID(orgID).String())
	}
	return out
}

func hasAPIKeyCredential(c *gin.Context) bool {
	if strings.TrimSpace(c.GetHeader("X-API-Key")) != "" {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(c.GetHeader("Authorization")), "Bearer ")
}

func orgcontextWithActor(c *gin.Context, orgID int64, userID string) context.Context {
	ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeUser), userID)
	ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
	ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
	return ctx
}

func verifyPassword(plain, encoded string) bool {
	return password.Verify(plain, encoded)
}

// rateLimiter is a small fixed-window counter for endpoints that need
// per-user throttling without a Redis round trip, like key reveal.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*rateLimiterEntry
}

type rateLimiterEntry struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &rateLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*rateLimiterEntry),
	}
}

func (r *rateLimiter) Allow(key string) bool {
	if r == nil {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry, ok := r.entries[key]
	if !ok || now.After(entry.resetAt) {
		r.entries[key] = &rateLimiterEntry{count: 1, resetAt: now.Add(r.window)}
		return true
	}
	if entry.count >= r.limit {
		return false
	}
	entry.count++
	return true
}
