package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
)

// CreateRequest opens a draft declaration for one month and flow.
type CreateRequest struct {
	Period string `json:"period"`
	Flow   string `json:"flow"`
}

// LineInput describes one declared movement. Value is the fiscal value
// in euros; MassKG is the net mass when the nomenclature requires one.
type LineInput struct {
	DocumentID  string           `json:"document_id"`
	InvoiceID   string           `json:"invoice_id"`
	Description string           `json:"description"`
	HSCode      string           `json:"hs_code"`
	CountryCode string           `json:"country_code"`
	Value       decimal.Decimal  `json:"value"`
	MassKG      *decimal.Decimal `json:"mass_kg"`
	Nature      string           `json:"nature"`
}

// UpdateLineRequest patches one line. Nil fields keep their value.
type UpdateLineRequest struct {
	Description *string          `json:"description"`
	HSCode      *string          `json:"hs_code"`
	CountryCode *string          `json:"country_code"`
	Value       *decimal.Decimal `json:"value"`
	MassKG      *decimal.Decimal `json:"mass_kg"`
	Nature      *string          `json:"nature"`
}

type ListRequest struct {
	Period    string `form:"period"`
	Flow      string `form:"flow"`
	Status    string `form:"status"`
	PageSize  int32  `form:"page_size"`
	PageToken string `form:"page_token"`
}

type ListResponse struct {
	pagination.PageInfo
	Declarations []Declaration `json:"declarations"`
}

// Detail is a declaration with its lines and computed totals.
type Detail struct {
	Declaration
	Lines      []Line          `json:"lines"`
	TotalValue decimal.Decimal `json:"total_value"`
	TotalMass  decimal.Decimal `json:"total_mass"`
}

// GenerateResponse reports a generation pass. Added counts fresh lines;
// sources already referenced by a line are left alone.
type GenerateResponse struct {
	Detail
	Added int `json:"added"`
}

// ExportResult is a rendered XLSX workbook.
type ExportResult struct {
	Filename string `json:"filename"`
	Content  []byte `json:"-"`
}

// LineIssue names one field of one line the validation pass rejected.
type LineIssue struct {
	LineID  snowflake.ID `json:"line_id"`
	Field   string       `json:"field"`
	Message string       `json:"message"`
}

// LineValidationError carries the per-line findings of a failed
// validation. It unwraps to ErrInvalidLines so callers can test with
// errors.Is and extract the issues with errors.As.
type LineValidationError struct {
	Issues []LineIssue
}

func (e *LineValidationError) Error() string {
	return fmt.Sprintf("%d declaration line(s) failed validation", len(e.Issues))
}

func (e *LineValidationError) Unwrap() error { return ErrInvalidLines }

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Declaration, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	GetByID(ctx context.Context, id string) (Detail, error)

	// Generate builds lines from the period's source records: processed
	// documents with an EU vendor for introductions, issued sale
	// invoices with an EU customer for expeditions. Sources already on
	// the declaration are skipped, so re-running only picks up new ones.
	Generate(ctx context.Context, id string) (GenerateResponse, error)

	AddLine(ctx context.Context, declarationID string, req LineInput) (Line, error)
	UpdateLine(ctx context.Context, declarationID, lineID string, req UpdateLineRequest) (Line, error)
	DeleteLine(ctx context.Context, declarationID, lineID string) error

	// Validate checks every line (8-digit nomenclature, positive value,
	// EU partner country) and moves draft to validated.
	Validate(ctx context.Context, id string) (Declaration, error)

	// Submit closes a validated declaration.
	Submit(ctx context.Context, id string) (Declaration, error)

	// Reopen returns a validated declaration to draft for corrections.
	Reopen(ctx context.Context, id string) (Declaration, error)

	// Export renders the declaration as a one-sheet XLSX workbook.
	Export(ctx context.Context, id string) (ExportResult, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_declaration_id")
	ErrNotFound            = errors.New("declaration_not_found")
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrInvalidFlow         = errors.New("invalid_flow")
	ErrAlreadyExists       = errors.New("declaration_already_exists")
	ErrNotDraft            = errors.New("declaration_not_draft")
	ErrStatusConflict      = errors.New("declaration_status_conflict")
	ErrInvalidLineID       = errors.New("invalid_line_id")
	ErrLineNotFound        = errors.New("declaration_line_not_found")
	ErrInvalidLine         = errors.New("invalid_declaration_line")
	ErrInvalidLines        = errors.New("declaration_lines_invalid")
)
