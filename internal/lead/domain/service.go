package domain

import (
	"context"
	"errors"

	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
)

type CreateRequest struct {
	CompanyName string `json:"company_name"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
	CountryCode string `json:"country_code"`
	Score       *int   `json:"score"`
	Notes       string `json:"notes"`
}

type UpdateRequest struct {
	ID          string  `json:"-"`
	CompanyName *string `json:"company_name"`
	ContactName *string `json:"contact_name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Website     *string `json:"website"`
	CountryCode *string `json:"country_code"`
	Score       *int    `json:"score"`
	Notes       *string `json:"notes"`
}

type UpdateStatusRequest struct {
	ID     string `json:"-"`
	Status string `json:"status"`
}

type ListRequest struct {
	Status    string `form:"status"`
	Source    string `form:"source"`
	PageSize  int32  `form:"page_size"`
	PageToken string `form:"page_token"`
}

type ListResponse struct {
	pagination.PageInfo
	Leads []Lead `json:"leads"`
}

// SourceRequest drives provider-backed lead sourcing.
type SourceRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// SourceResponse reports what a sourcing run produced. Skipped counts
// results dropped because a lead with the same website already exists.
type SourceResponse struct {
	Created []Lead `json:"created"`
	Skipped int    `json:"skipped"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Lead, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	GetByID(ctx context.Context, id string) (Lead, error)
	Update(ctx context.Context, req UpdateRequest) (Lead, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (Lead, error)

	// SourceLeads searches the web for prospects matching the query and
	// inserts the ones whose website is not already tracked.
	SourceLeads(ctx context.Context, req SourceRequest) (SourceResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_lead_id")
	ErrNotFound            = errors.New("lead_not_found")
	ErrInvalidCompany      = errors.New("invalid_company_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidStatus       = errors.New("invalid_lead_status")
	ErrTerminalStatus      = errors.New("lead_status_terminal")
	ErrInvalidScore        = errors.New("invalid_lead_score")
	ErrInvalidQuery        = errors.New("invalid_search_query")
	ErrSourcingUnavailable = errors.New("lead_sourcing_unavailable")
)
