package domain

import (
	"context"
	"errors"

	extractiondomain "github.com/zyalhor1961/corematch-web-sub006/internal/extraction/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
)

type UploadRequest struct {
	Filename    string
	ContentType string
	DocType     string
	Content     []byte
}

type ListRequest struct {
	Status    string `form:"status"`
	DocType   string `form:"doc_type"`
	PageSize  int32  `form:"page_size"`
	PageToken string `form:"page_token"`
}

type ListResponse struct {
	pagination.PageInfo
	Documents []Document `json:"documents"`
}

// Detail is a document together with its current-revision extracted fields.
type Detail struct {
	Document
	Fields []extractiondomain.ExtractedField `json:"extracted_fields"`
}

type Service interface {
	Upload(ctx context.Context, req UploadRequest) (Document, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	GetByID(ctx context.Context, id string) (Detail, error)
	Delete(ctx context.Context, id string) error
	Analyze(ctx context.Context, id string) (Document, error)
	Remap(ctx context.Context, id string) (Document, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_document_id")
	ErrNotFound            = errors.New("document_not_found")
	ErrEmptyUpload         = errors.New("empty_upload")
	ErrInvalidDocType      = errors.New("invalid_doc_type")
	ErrNoExtractedFields   = errors.New("no_extracted_fields")
	ErrStatusConflict      = errors.New("document_status_conflict")
)
