// Package domain contains persistence models for ingested documents.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status represents document lifecycle states.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

// DocType classifies the business nature of an ingested file.
type DocType string

const (
	DocTypeInvoice      DocType = "invoice"
	DocTypeReceipt      DocType = "receipt"
	DocTypeDeliveryNote DocType = "delivery_note"
	DocTypeOther        DocType = "other"
)

// Document represents one ingested file and the normalized financial
// attributes folded out of its extracted fields. Dates are stored as
// YYYY-MM-DD strings because they come out of the normalizer that way
// and nothing downstream does date arithmetic on them.
type Document struct {
	ID               snowflake.ID     `gorm:"primaryKey" json:"id"`
	OrgID            snowflake.ID     `gorm:"column:org_id;not null;index" json:"org_id"`
	Filename         string           `gorm:"type:text;not null" json:"filename"`
	ContentType      string           `gorm:"column:content_type;type:text;not null;default:'application/octet-stream'" json:"content_type"`
	ByteSize         int64            `gorm:"column:byte_size;not null;default:0" json:"byte_size"`
	StoragePath      string           `gorm:"column:storage_path;type:text;not null" json:"-"`
	DocType          DocType          `gorm:"column:doc_type;type:text;not null;default:'invoice'" json:"doc_type"`
	Status           Status           `gorm:"type:text;not null;default:'uploaded'" json:"status"`
	AnalysisRevision int              `gorm:"column:analysis_revision;not null;default:0" json:"analysis_revision"`
	VendorName       *string          `gorm:"column:vendor_name;type:text" json:"vendor_name,omitempty"`
	VendorTaxID      *string          `gorm:"column:vendor_tax_id;type:text" json:"vendor_tax_id,omitempty"`
	CustomerName     *string          `gorm:"column:customer_name;type:text" json:"customer_name,omitempty"`
	InvoiceNumber    *string          `gorm:"column:invoice_number;type:text" json:"invoice_number,omitempty"`
	DocumentDate     *string          `gorm:"column:document_date;type:text" json:"document_date,omitempty"`
	DueDate          *string          `gorm:"column:due_date;type:text" json:"due_date,omitempty"`
	TotalAmount      *decimal.Decimal `gorm:"column:total_amount;type:numeric(14,2)" json:"total_amount,omitempty"`
	TaxAmount        *decimal.Decimal `gorm:"column:tax_amount;type:numeric(14,2)" json:"tax_amount,omitempty"`
	NetAmount        *decimal.Decimal `gorm:"column:net_amount;type:numeric(14,2)" json:"net_amount,omitempty"`
	Currency         *string          `gorm:"type:text" json:"currency,omitempty"`
	ProcessingNote   *string          `gorm:"column:processing_note;type:text" json:"processing_note,omitempty"`
	LastError        *string          `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	LastErrorAt      *time.Time       `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	UploadedBy       *snowflake.ID    `gorm:"column:uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt        time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	ProcessedAt      *time.Time       `gorm:"column:processed_at" json:"processed_at,omitempty"`
	DeletedAt        *time.Time       `gorm:"column:deleted_at" json:"-"`
}

// TableName sets the database table name.
func (Document) TableName() string { return "documents" }

// ListFilter narrows document list queries. Zero values mean no filter.
type ListFilter struct {
	Status  Status
	DocType DocType
}

// NormalizedUpdate is the flat attribute record a remap pass applies to
// a document. Every column is overwritten, nulls included, so a re-run
// replaces stale values instead of merging with them.
type NormalizedUpdate struct {
	VendorName     *string
	VendorTaxID    *string
	CustomerName   *string
	InvoiceNumber  *string
	DocumentDate   *string
	DueDate        *string
	TotalAmount    *decimal.Decimal
	TaxAmount      *decimal.Decimal
	NetAmount      *decimal.Decimal
	Currency       *string
	ProcessingNote string
}
