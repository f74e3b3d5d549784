package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
)

// LineInput describes one requested quote line. A ProductID inherits the
// catalog description, price and VAT rate; explicit values win. With
// neither VATRate nor VATCode the org default VAT definition applies.
type LineInput struct {
	ProductID   string           `json:"product_id"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	VATRate     *float64         `json:"vat_rate"`
	VATCode     string           `json:"vat_code"`
}

// CreateRequest opens a draft quote. CustomerName defaults to the linked
// lead's company when omitted. The optional amounts cross-check the
// computed totals and fail past a cent.
type CreateRequest struct {
	LeadID        string      `json:"lead_id"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	Currency      string      `json:"currency"`
	IssueDate     string      `json:"issue_date"`
	ValidUntil    string      `json:"valid_until"`
	Lines         []LineInput `json:"lines"`

	NetAmount   *decimal.Decimal `json:"net_amount"`
	TaxAmount   *decimal.Decimal `json:"tax_amount"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
}

// UpdateDraftRequest patches a draft quote. A non-nil Lines replaces all
// lines and recomputes the totals.
type UpdateDraftRequest struct {
	ID            string      `json:"-"`
	CustomerName  *string     `json:"customer_name"`
	CustomerEmail *string     `json:"customer_email"`
	IssueDate     *string     `json:"issue_date"`
	ValidUntil    *string     `json:"valid_until"`
	Lines         []LineInput `json:"lines"`
}

type ListRequest struct {
	Status    string `form:"status"`
	LeadID    string `form:"lead_id"`
	PageSize  int32  `form:"page_size"`
	PageToken string `form:"page_token"`
}

type ListResponse struct {
	pagination.PageInfo
	Quotes []Quote `json:"quotes"`
}

type Detail struct {
	Quote
	Lines []QuoteLine `json:"lines"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Detail, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	GetByID(ctx context.Context, id string) (Detail, error)
	UpdateDraft(ctx context.Context, req UpdateDraftRequest) (Detail, error)

	// Send marks a draft quote sent and stamps the issue date if unset.
	Send(ctx context.Context, id string) (Quote, error)

	// Accept converts a sent quote: a draft invoice is created carrying
	// the lines over and the linked lead, if any, moves to converted.
	// A quote past its validity date flips to expired instead.
	Accept(ctx context.Context, id string) (Quote, error)

	Reject(ctx context.Context, id string) (Quote, error)

	RenderPDF(ctx context.Context, id string) ([]byte, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_quote_id")
	ErrNotFound            = errors.New("quote_not_found")
	ErrInvalidCustomer     = errors.New("invalid_customer_name")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidDate         = errors.New("invalid_quote_date")
	ErrNoLines             = errors.New("quote_needs_lines")
	ErrInvalidQuantity     = errors.New("invalid_line_quantity")
	ErrInvalidUnitPrice    = errors.New("invalid_line_unit_price")
	ErrInvalidVATRate      = errors.New("invalid_line_vat_rate")
	ErrMissingDescription  = errors.New("missing_line_description")
	ErrUnknownProduct      = errors.New("unknown_product")
	ErrUnknownTaxCode      = errors.New("unknown_tax_code")
	ErrInvalidLead         = errors.New("invalid_lead_id")
	ErrTotalsMismatch      = errors.New("quote_totals_mismatch")
	ErrStatusConflict      = errors.New("quote_status_conflict")
	ErrExpired             = errors.New("quote_expired")
	ErrRenderFailed        = errors.New("quote_render_failed")
)
