package server

import (
	"errors"

	"github.com/gin-gonic/gin"
	authdomain "github.com/zyalhor1961/corematch-web-sub006/internal/auth/domain"
	invitationdomain "github.com/zyalhor1961/corematch-web-sub006/internal/invitation/domain"
	"gorm.io/gorm"
)

type createInviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) CreateInvite(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invite, err := s.invitationSvc.Create(c.Request.Context(), userID, invitationdomain.CreateInviteRequest{
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "invite.created", "invite", invite.ID, map[string]any{
		"email": invite.Email,
		"role":  invite.Role,
	})

	respondCreated(c, invite)
}

func (s *Server) ListInvites(c *gin.Context) {
	invites, err := s.invitationSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, invites)
}

func (s *Server) RevokeInvite(c *gin.Context) {
	id := c.Param("invite_id")
	if err := s.invitationSvc.Revoke(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "invite.revoked", "invite", id, nil)

	respondNoContent(c)
}

// AcceptInvite joins the calling user to the inviting organization.
func (s *Server) AcceptInvite(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var user authdomain.User
	if err := s.db.WithContext(c.Request.Context()).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		AbortWithError(c, err)
		return
	}

	id := c.Param("invite_id")
	if err := s.invitationSvc.Accept(c.Request.Context(), userID, user.Email, id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.refreshSessionOrgs(c, userID, nil)

	s.auditAction(c, "invite.accepted", "invite", id, nil)

	respondNoContent(c)
}

func isInviteValidationError(err error) bool {
	switch err {
	case invitationdomain.ErrInvalidOrganization,
		invitationdomain.ErrInvalidEmail,
		invitationdomain.ErrInvalidRole:
		return true
	default:
		return false
	}
}
