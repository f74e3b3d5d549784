package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/zyalhor1961/corematch-web-sub006/internal/auth/domain"
	organizationdomain "github.com/zyalhor1961/corematch-web-sub006/internal/organization/domain"
)

type createOrganizationRequest struct {
	Name         string `json:"name"`
	CountryCode  string `json:"country_code"`
	TimezoneName string `json:"timezone_name"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.organizationSvc.Create(c.Request.Context(), userID, organizationdomain.CreateOrganizationRequest{
		Name:         req.Name,
		CountryCode:  req.CountryCode,
		TimezoneName: req.TimezoneName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.refreshSessionOrgs(c, userID, nil)

	s.auditAction(c, "organization.created", "organization", org.ID, map[string]any{
		"name": org.Name,
	})

	respondCreated(c, org)
}

func (s *Server) ListUserOrgs(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgs, err := s.organizationSvc.ListOrganizationsByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, orgs)
}

// UseOrg switches the session's active organization.
func (s *Server) UseOrg(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	session, ok := sessionFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID, err := snowflake.ParseString(c.Param("orgId"))
	if err != nil || orgID == 0 {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}

	orgIDs, err := s.loadUserOrgIDs(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !containsOrgID(orgIDs, int64(orgID)) {
		AbortWithError(c, organizationdomain.ErrNotMember)
		return
	}

	activeOrgID := int64(orgID)
	if err := s.authsvc.UpdateSessionOrgContext(c.Request.Context(), session.ID, &activeOrgID, orgIDs); err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, &authdomain.SessionView{Metadata: map[string]any{
		"active_org_id": orgID.String(),
		"org_ids":       toOrgIDStrings(orgIDs),
	}})
}

func (s *Server) GetOrganization(c *gin.Context) {
	orgID := orgIDFromContext(c.Request.Context())
	if orgID == 0 {
		AbortWithError(c, newValidationError("org_id", "missing_org_id", "organization id is required"))
		return
	}

	org, err := s.organizationSvc.GetByID(c.Request.Context(), orgID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, org)
}

func (s *Server) ListMembers(c *gin.Context) {
	orgID := orgIDFromContext(c.Request.Context())
	if orgID == 0 {
		AbortWithError(c, newValidationError("org_id", "missing_org_id", "organization id is required"))
		return
	}

	members, err := s.organizationSvc.ListMembers(c.Request.Context(), orgID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, members)
}

// refreshSessionOrgs reloads the caller's memberships into the session
// after a membership change. Failures are ignored; the next /auth/me
// rebuilds the list anyway.
func (s *Server) refreshSessionOrgs(c *gin.Context, userID snowflake.ID, activeOrgID *int64) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	orgIDs, err := s.loadUserOrgIDs(c.Request.Context(), userID)
	if err != nil {
		return
	}
	if activeOrgID == nil {
		activeOrgID = session.ActiveOrgID
	}
	_ = s.authsvc.UpdateSessionOrgContext(c.Request.Context(), session.ID, activeOrgID, orgIDs)
}

func isOrganizationValidationError(err error) bool {
	switch err {
	case organizationdomain.ErrInvalidName,
		organizationdomain.ErrInvalidCountry,
		organizationdomain.ErrInvalidTimezone,
		organizationdomain.ErrInvalidUser,
		organizationdomain.ErrInvalidOrganization,
		organizationdomain.ErrInvalidRole:
		return true
	default:
		return false
	}
}
