package server

import (
	"github.com/gin-gonic/gin"
	screeningdomain "github.com/zyalhor1961/corematch-web-sub006/internal/screening/domain"
)

func (s *Server) CreateScreeningJob(c *gin.Context) {
	var req screeningdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	job, err := s.screeningSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "screening_job.created", "screening_job", job.ID.String(), map[string]any{
		"document_id": job.DocumentID.String(),
	})

	respondCreated(c, job)
}

func (s *Server) ListScreeningJobs(c *gin.Context) {
	var req screeningdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.screeningSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Jobs, resp.PageInfo)
}

func (s *Server) GetScreeningJob(c *gin.Context) {
	job, err := s.screeningSvc.GetByID(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, job)
}

func (s *Server) RerunScreeningJob(c *gin.Context) {
	job, err := s.screeningSvc.Rerun(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "screening_job.rerun", "screening_job", job.ID.String(), nil)

	respondOK(c, job)
}

func isScreeningValidationError(err error) bool {
	switch err {
	case screeningdomain.ErrInvalidOrganization,
		screeningdomain.ErrInvalidID,
		screeningdomain.ErrInvalidDocument,
		screeningdomain.ErrMissingDescription:
		return true
	default:
		return false
	}
}
