package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	debdomain "github.com/zyalhor1961/corematch-web-sub006/internal/deb/domain"
)

func (s *Server) CreateDEBDeclaration(c *gin.Context) {
	var req debdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	declaration, err := s.debSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "deb_declaration.created", "deb_declaration", declaration.ID.String(), map[string]any{
		"period": declaration.Period,
		"flow":   declaration.Flow,
	})

	respondCreated(c, declaration)
}

func (s *Server) ListDEBDeclarations(c *gin.Context) {
	var req debdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.debSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Declarations, resp.PageInfo)
}

func (s *Server) GetDEBDeclaration(c *gin.Context) {
	detail, err := s.debSvc.GetByID(c.Request.Context(), c.Param("declaration_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, detail)
}

func (s *Server) GenerateDEBDeclaration(c *gin.Context) {
	resp, err := s.debSvc.Generate(c.Request.Context(), c.Param("declaration_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "deb_declaration.generated", "deb_declaration", resp.ID.String(), map[string]any{
		"added": resp.Added,
	})

	respondOK(c, resp)
}

func (s *Server) AddDEBLine(c *gin.Context) {
	var req debdomain.LineInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	line, err := s.debSvc.AddLine(c.Request.Context(), c.Param("declaration_id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, line)
}

func (s *Server) UpdateDEBLine(c *gin.Context) {
	var req debdomain.UpdateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	line, err := s.debSvc.UpdateLine(c.Request.Context(), c.Param("declaration_id"), c.Param("line_id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, line)
}

func (s *Server) DeleteDEBLine(c *gin.Context) {
	if err := s.debSvc.DeleteLine(c.Request.Context(), c.Param("declaration_id"), c.Param("line_id")); err != nil {
		AbortWithError(c, err)
		return
	}

	respondNoContent(c)
}

func (s *Server) ValidateDEBDeclaration(c *gin.Context) {
	declaration, err := s.debSvc.Validate(c.Request.Context(), c.Param("declaration_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "deb_declaration.validated", "deb_declaration", declaration.ID.String(), nil)

	respondOK(c, declaration)
}

func (s *Server) SubmitDEBDeclaration(c *gin.Context) {
	declaration, err := s.debSvc.Submit(c.Request.Context(), c.Param("declaration_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "deb_declaration.submitted", "deb_declaration", declaration.ID.String(), nil)

	respondOK(c, declaration)
}

func (s *Server) ReopenDEBDeclaration(c *gin.Context) {
	declaration, err := s.debSvc.Reopen(c.Request.Context(), c.Param("declaration_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "deb_declaration.reopened", "deb_declaration", declaration.ID.String(), nil)

	respondOK(c, declaration)
}

func (s *Server) ExportDEBDeclaration(c *gin.Context) {
	result, err := s.debSvc.Export(c.Request.Context(), c.Param("declaration_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.Content)
}

func isDEBValidationError(err error) bool {
	switch err {
	case debdomain.ErrInvalidOrganization,
		debdomain.ErrInvalidID,
		debdomain.ErrInvalidPeriod,
		debdomain.ErrInvalidFlow,
		debdomain.ErrInvalidLineID,
		debdomain.ErrInvalidLine:
		return true
	default:
		return false
	}
}
