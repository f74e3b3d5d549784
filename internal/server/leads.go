package server

import (
	"github.com/gin-gonic/gin"
	leaddomain "github.com/zyalhor1961/corematch-web-sub006/internal/lead/domain"
)

func (s *Server) CreateLead(c *gin.Context) {
	var req leaddomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	lead, err := s.leadSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "lead.created", "lead", lead.ID.String(), map[string]any{
		"company_name": lead.CompanyName,
	})

	respondCreated(c, lead)
}

func (s *Server) ListLeads(c *gin.Context) {
	var req leaddomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.leadSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Leads, resp.PageInfo)
}

func (s *Server) GetLead(c *gin.Context) {
	lead, err := s.leadSvc.GetByID(c.Request.Context(), c.Param("lead_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, lead)
}

func (s *Server) UpdateLead(c *gin.Context) {
	var req leaddomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("lead_id")

	lead, err := s.leadSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "lead.updated", "lead", lead.ID.String(), nil)

	respondOK(c, lead)
}

func (s *Server) UpdateLeadStatus(c *gin.Context) {
	var req leaddomain.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("lead_id")

	lead, err := s.leadSvc.UpdateStatus(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "lead.status_changed", "lead", lead.ID.String(), map[string]any{
		"status": lead.Status,
	})

	respondOK(c, lead)
}

func (s *Server) SourceLeads(c *gin.Context) {
	var req leaddomain.SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.leadSvc.SourceLeads(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "lead.sourced", "lead", "", map[string]any{
		"query":   req.Query,
		"created": len(resp.Created),
		"skipped": resp.Skipped,
	})

	respondOK(c, resp)
}

func isLeadValidationError(err error) bool {
	switch err {
	case leaddomain.ErrInvalidOrganization,
		leaddomain.ErrInvalidID,
		leaddomain.ErrInvalidCompany,
		leaddomain.ErrInvalidEmail,
		leaddomain.ErrInvalidStatus,
		leaddomain.ErrInvalidScore,
		leaddomain.ErrInvalidQuery:
		return true
	default:
		return false
	}
}
