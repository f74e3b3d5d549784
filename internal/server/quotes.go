package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	quotedomain "github.com/zyalhor1961/corematch-web-sub006/internal/quote/domain"
)

func (s *Server) CreateQuote(c *gin.Context) {
	var req quotedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	detail, err := s.quoteSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "quote.created", "quote", detail.ID.String(), map[string]any{
		"number": detail.Number,
	})

	respondCreated(c, detail)
}

func (s *Server) ListQuotes(c *gin.Context) {
	var req quotedomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quoteSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Quotes, resp.PageInfo)
}

func (s *Server) GetQuote(c *gin.Context) {
	detail, err := s.quoteSvc.GetByID(c.Request.Context(), c.Param("quote_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, detail)
}

func (s *Server) UpdateQuoteDraft(c *gin.Context) {
	var req quotedomain.UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("quote_id")

	detail, err := s.quoteSvc.UpdateDraft(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "quote.updated", "quote", detail.ID.String(), nil)

	respondOK(c, detail)
}

func (s *Server) SendQuote(c *gin.Context) {
	quote, err := s.quoteSvc.Send(c.Request.Context(), c.Param("quote_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "quote.sent", "quote", quote.ID.String(), nil)

	respondOK(c, quote)
}

func (s *Server) AcceptQuote(c *gin.Context) {
	quote, err := s.quoteSvc.Accept(c.Request.Context(), c.Param("quote_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "quote.accepted", "quote", quote.ID.String(), nil)

	respondOK(c, quote)
}

func (s *Server) RejectQuote(c *gin.Context) {
	quote, err := s.quoteSvc.Reject(c.Request.Context(), c.Param("quote_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "quote.rejected", "quote", quote.ID.String(), nil)

	respondOK(c, quote)
}

func (s *Server) QuotePDF(c *gin.Context) {
	id := c.Param("quote_id")
	content, err := s.quoteSvc.RenderPDF(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "quote-"+id+".pdf"))
	c.Data(http.StatusOK, "application/pdf", content)
}

func isQuoteValidationError(err error) bool {
	switch err {
	case quotedomain.ErrInvalidOrganization,
		quotedomain.ErrInvalidID,
		quotedomain.ErrInvalidCustomer,
		quotedomain.ErrInvalidCurrency,
		quotedomain.ErrInvalidDate,
		quotedomain.ErrNoLines,
		quotedomain.ErrInvalidQuantity,
		quotedomain.ErrInvalidUnitPrice,
		quotedomain.ErrInvalidVATRate,
		quotedomain.ErrMissingDescription,
		quotedomain.ErrUnknownProduct,
		quotedomain.ErrUnknownTaxCode,
		quotedomain.ErrInvalidLead,
		quotedomain.ErrTotalsMismatch:
		return true
	default:
		return false
	}
}
