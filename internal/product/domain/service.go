package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Archive(ctx context.Context, id string) (*Response, error)
}

type ListRequest struct {
	Name    string `form:"name"`
	SKU     string `form:"sku"`
	Active  *bool  `form:"active"`
	SortBy  string `form:"sort_by"`
	OrderBy string `form:"order_by"`
}

type CreateRequest struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Currency    string          `json:"currency"`
	VATRate     *float64        `json:"vat_rate"`
	HSCode      *string         `json:"hs_code"`
}

type UpdateRequest struct {
	ID          string           `json:"-"`
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	VATRate     *float64         `json:"vat_rate,omitempty"`
	HSCode      *string          `json:"hs_code,omitempty"`
	Active      *bool            `json:"active,omitempty"`
}

type Response struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	Description    *string         `json:"description,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Currency       string          `json:"currency"`
	VATRate        *float64        `json:"vat_rate,omitempty"`
	HSCode         *string         `json:"hs_code,omitempty"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidSKU          = errors.New("invalid_sku")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidPrice        = errors.New("invalid_unit_price")
	ErrSKUTaken            = errors.New("sku_taken")
	ErrNotFound            = errors.New("not_found")
	ErrInvalidID           = errors.New("invalid_id")
)
