package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
)

// EmitRequest records an operational alert and fans it out to the configured
// notification channels. OrgID may be zero when the caller context carries
// the organization.
type EmitRequest struct {
	OrgID    snowflake.ID
	Kind     string
	Severity Severity
	Message  string
	Metadata map[string]any
}

type ListRequest struct {
	pagination.Pagination
	Kind           string `form:"kind"`
	Unacknowledged bool   `form:"unacknowledged"`
}

type ListResponse struct {
	pagination.PageInfo
	Alerts []Alert `json:"alerts"`
}

type Service interface {
	Emit(ctx context.Context, req EmitRequest) error
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Acknowledge(ctx context.Context, id string) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_alert_id")
	ErrNotFound            = errors.New("alert_not_found")
	ErrInvalidKind         = errors.New("invalid_alert_kind")
)
