package domain

import (
	"context"
	"errors"

	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
)

// CreateRequest queues a screening job for a candidate document.
type CreateRequest struct {
	DocumentID     string `json:"document_id"`
	JobDescription string `json:"job_description"`
}

type ListRequest struct {
	Status     string `form:"status"`
	DocumentID string `form:"document_id"`
	PageSize   int32  `form:"page_size"`
	PageToken  string `form:"page_token"`
}

type ListResponse struct {
	pagination.PageInfo
	Jobs []ScreeningJob `json:"jobs"`
}

type Service interface {
	// Create queues a pending job; the screening runner picks it up.
	Create(ctx context.Context, req CreateRequest) (ScreeningJob, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	GetByID(ctx context.Context, id string) (ScreeningJob, error)

	// Rerun requeues a failed job. Jobs in any other status are refused.
	Rerun(ctx context.Context, id string) (ScreeningJob, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_screening_job_id")
	ErrNotFound            = errors.New("screening_job_not_found")
	ErrInvalidDocument     = errors.New("invalid_document_id")
	ErrMissingDescription  = errors.New("missing_job_description")
	ErrNotFailed           = errors.New("screening_job_not_failed")
	ErrStatusConflict      = errors.New("screening_job_status_conflict")
)
