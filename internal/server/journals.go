package server

import (
	"github.com/gin-gonic/gin"
	journaldomain "github.com/zyalhor1961/corematch-web-sub006/internal/journal/domain"
)

func (s *Server) CreateJournalEntry(c *gin.Context) {
	var req journaldomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entry, err := s.journalSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "journal_entry.created", "journal_entry", entry.ID.String(), map[string]any{
		"lines": len(entry.Lines),
	})

	respondCreated(c, entry)
}

func (s *Server) ListJournalEntries(c *gin.Context) {
	var req journaldomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.journalSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Entries, resp.PageInfo)
}

func (s *Server) GetJournalEntry(c *gin.Context) {
	entry, err := s.journalSvc.GetByID(c.Request.Context(), c.Param("entry_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, entry)
}

func (s *Server) PostJournalEntry(c *gin.Context) {
	entry, err := s.journalSvc.Post(c.Request.Context(), c.Param("entry_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "journal_entry.posted", "journal_entry", entry.ID.String(), nil)

	respondOK(c, entry)
}

func (s *Server) ReverseJournalEntry(c *gin.Context) {
	entry, err := s.journalSvc.Reverse(c.Request.Context(), c.Param("entry_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "journal_entry.reversed", "journal_entry", entry.ID.String(), nil)

	respondCreated(c, entry)
}

func isJournalValidationError(err error) bool {
	switch err {
	case journaldomain.ErrInvalidOrganization,
		journaldomain.ErrInvalidID,
		journaldomain.ErrInvalidDate,
		journaldomain.ErrInvalidSource,
		journaldomain.ErrTooFewLines,
		journaldomain.ErrInvalidDirection,
		journaldomain.ErrNegativeAmount,
		journaldomain.ErrUnknownAccount,
		journaldomain.ErrUnbalanced:
		return true
	default:
		return false
	}
}
