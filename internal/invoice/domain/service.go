package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
)

// LineInput describes one invoice line on create or draft update. Either
// ProductID (line inherits description, price, and VAT from the catalog)
// or a Description with an explicit UnitPrice is required. VATRate is a
// fraction and wins over VATCode; with neither set the org default rate
// applies.
type LineInput struct {
	ProductID   string           `json:"product_id"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	VATRate     *float64         `json:"vat_rate"`
	VATCode     string           `json:"vat_code"`
}

// CreateRequest creates a draft invoice. NetAmount/TaxAmount/TotalAmount
// are optional client-side expectations; when present they are checked
// against the computed totals and the create fails past a cent of drift.
type CreateRequest struct {
	Direction     string           `json:"direction"`
	CustomerName  string           `json:"customer_name"`
	CustomerEmail string           `json:"customer_email"`
	CustomerVAT   string           `json:"customer_vat"`
	Currency      string           `json:"currency"`
	IssueDate     string           `json:"issue_date"`
	DueDate       string           `json:"due_date"`
	DocumentID    string           `json:"document_id"`
	QuoteID       string           `json:"quote_id"`
	Lines         []LineInput      `json:"lines"`
	NetAmount     *decimal.Decimal `json:"net_amount"`
	TaxAmount     *decimal.Decimal `json:"tax_amount"`
	TotalAmount   *decimal.Decimal `json:"total_amount"`
}

// UpdateDraftRequest patches a draft invoice. Nil fields keep their
// current value; a non-nil Lines slice replaces every line and
// recomputes totals.
type UpdateDraftRequest struct {
	ID            string      `json:"-"`
	CustomerName  *string     `json:"customer_name"`
	CustomerEmail *string     `json:"customer_email"`
	CustomerVAT   *string     `json:"customer_vat"`
	IssueDate     *string     `json:"issue_date"`
	DueDate       *string     `json:"due_date"`
	Lines         []LineInput `json:"lines"`
}

type ListRequest struct {
	Status        string `form:"status"`
	Direction     string `form:"direction"`
	IssueDateFrom string `form:"issue_date_from"`
	IssueDateTo   string `form:"issue_date_to"`
	PageSize      int32  `form:"page_size"`
	PageToken     string `form:"page_token"`
}

type ListResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

// Detail is an invoice with its lines.
type Detail struct {
	Invoice
	Lines []InvoiceLine `json:"lines"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Detail, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	GetByID(ctx context.Context, id string) (Detail, error)
	UpdateDraft(ctx context.Context, req UpdateDraftRequest) (Detail, error)

	// Open finalizes a draft: the invoice number becomes immutable, a
	// balanced journal entry is posted, and the row flips draft -> open.
	Open(ctx context.Context, id string) (Detail, error)
	MarkPaid(ctx context.Context, id string) (Invoice, error)
	Void(ctx context.Context, id string, reason string) (Invoice, error)

	// RenderPDF returns the printable document, generating and caching
	// it on first call for non-draft invoices.
	RenderPDF(ctx context.Context, id string) ([]byte, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_invoice_id")
	ErrNotFound            = errors.New("invoice_not_found")
	ErrInvalidDirection    = errors.New("invalid_invoice_direction")
	ErrInvalidCustomer     = errors.New("invalid_customer_name")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidDate         = errors.New("invalid_invoice_date")
	ErrNoLines             = errors.New("invoice_needs_lines")
	ErrInvalidQuantity     = errors.New("invalid_line_quantity")
	ErrInvalidUnitPrice    = errors.New("invalid_line_unit_price")
	ErrInvalidVATRate      = errors.New("invalid_vat_rate")
	ErrMissingDescription  = errors.New("missing_line_description")
	ErrUnknownProduct      = errors.New("unknown_product")
	ErrUnknownTaxCode      = errors.New("unknown_tax_code")
	ErrInvalidDocument     = errors.New("invalid_document_id")
	ErrInvalidQuote        = errors.New("invalid_quote_id")
	ErrTotalsMismatch      = errors.New("invoice_totals_mismatch")
	ErrStatusConflict      = errors.New("invoice_status_conflict")
	ErrRenderFailed        = errors.New("invoice_render_failed")
)
