package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
)

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	detail, err := s.invoiceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "invoice.created", "invoice", detail.ID.String(), map[string]any{
		"number":    detail.InvoiceNumber,
		"direction": detail.Direction,
	})

	respondCreated(c, detail)
}

func (s *Server) ListInvoices(c *gin.Context) {
	var req invoicedomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Invoices, resp.PageInfo)
}

func (s *Server) GetInvoice(c *gin.Context) {
	detail, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("invoice_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, detail)
}

func (s *Server) UpdateInvoiceDraft(c *gin.Context) {
	var req invoicedomain.UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("invoice_id")

	detail, err := s.invoiceSvc.UpdateDraft(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "invoice.updated", "invoice", detail.ID.String(), nil)

	respondOK(c, detail)
}

func (s *Server) OpenInvoice(c *gin.Context) {
	detail, err := s.invoiceSvc.Open(c.Request.Context(), c.Param("invoice_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "invoice.opened", "invoice", detail.ID.String(), map[string]any{
		"number": detail.InvoiceNumber,
	})

	respondOK(c, detail)
}

func (s *Server) PayInvoice(c *gin.Context) {
	invoice, err := s.invoiceSvc.MarkPaid(c.Request.Context(), c.Param("invoice_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "invoice.paid", "invoice", invoice.ID.String(), nil)

	respondOK(c, invoice)
}

type voidInvoiceRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) VoidInvoice(c *gin.Context) {
	var req voidInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoiceSvc.Void(c.Request.Context(), c.Param("invoice_id"), req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "invoice.voided", "invoice", invoice.ID.String(), map[string]any{
		"reason": req.Reason,
	})

	respondOK(c, invoice)
}

func (s *Server) InvoicePDF(c *gin.Context) {
	id := c.Param("invoice_id")
	content, err := s.invoiceSvc.RenderPDF(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "invoice-"+id+".pdf"))
	c.Data(http.StatusOK, "application/pdf", content)
}

func isInvoiceValidationError(err error) bool {
	switch err {
	case invoicedomain.ErrInvalidOrganization,
		invoicedomain.ErrInvalidID,
		invoicedomain.ErrInvalidDirection,
		invoicedomain.ErrInvalidCustomer,
		invoicedomain.ErrInvalidCurrency,
		invoicedomain.ErrInvalidDate,
		invoicedomain.ErrNoLines,
		invoicedomain.ErrInvalidQuantity,
		invoicedomain.ErrInvalidUnitPrice,
		invoicedomain.ErrInvalidVATRate,
		invoicedomain.ErrMissingDescription,
		invoicedomain.ErrUnknownProduct,
		invoicedomain.ErrUnknownTaxCode,
		invoicedomain.ErrInvalidDocument,
		invoicedomain.ErrInvalidQuote,
		invoicedomain.ErrTotalsMismatch:
		return true
	default:
		return false
	}
}
