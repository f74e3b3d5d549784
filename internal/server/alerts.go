package server

import (
	"github.com/gin-gonic/gin"
	alertdomain "github.com/zyalhor1961/corematch-web-sub006/internal/alert/domain"
)

func (s *Server) ListAlerts(c *gin.Context) {
	var req alertdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.alertSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Alerts, resp.PageInfo)
}

func (s *Server) AcknowledgeAlert(c *gin.Context) {
	id := c.Param("alert_id")
	if err := s.alertSvc.Acknowledge(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "alert.acknowledged", "alert", id, nil)

	respondNoContent(c)
}

func isAlertValidationError(err error) bool {
	switch err {
	case alertdomain.ErrInvalidOrganization,
		alertdomain.ErrInvalidID,
		alertdomain.ErrInvalidKind:
		return true
	default:
		return false
	}
}
