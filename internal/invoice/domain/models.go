// Package domain contains persistence models for business invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusOpen  InvoiceStatus = "open"
	InvoiceStatusPaid  InvoiceStatus = "paid"
	InvoiceStatusVoid  InvoiceStatus = "void"
)

// InvoiceDirection separates receivables from payables.
type InvoiceDirection string

const (
	DirectionSale     InvoiceDirection = "sale"
	DirectionPurchase InvoiceDirection = "purchase"
)

// Invoice is an org-scoped business invoice. NetAmount + TaxAmount =
// TotalAmount holds for every stored row; the service rejects writes
// that drift past a cent.
type Invoice struct {
	ID             snowflake.ID     `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID     `gorm:"not null;index" json:"org_id"`
	InvoiceNumber  string           `gorm:"type:text;not null" json:"invoice_number"`
	Direction      InvoiceDirection `gorm:"type:text;not null;default:'sale'" json:"direction"`
	CustomerName   string           `gorm:"type:text;not null" json:"customer_name"`
	CustomerEmail  *string          `gorm:"type:text" json:"customer_email,omitempty"`
	CustomerVAT    *string          `gorm:"type:text" json:"customer_vat,omitempty"`
	Status         InvoiceStatus    `gorm:"type:text;not null;default:'draft'" json:"status"`
	Currency       string           `gorm:"type:text;not null;default:'EUR'" json:"currency"`
	IssueDate      *time.Time       `gorm:"type:date" json:"issue_date,omitempty"`
	DueDate        *time.Time       `gorm:"type:date" json:"due_date,omitempty"`
	NetAmount      decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0" json:"net_amount"`
	TaxAmount      decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0" json:"tax_amount"`
	TotalAmount    decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0" json:"total_amount"`
	DocumentID     *snowflake.ID    `gorm:"index" json:"document_id,omitempty"`
	JournalEntryID *snowflake.ID    `gorm:"index" json:"journal_entry_id,omitempty"`
	QuoteID        *snowflake.ID    `gorm:"index" json:"quote_id,omitempty"`
	PDFPath        *string          `gorm:"type:text" json:"-"`
	IssuedAt       *time.Time       `json:"issued_at,omitempty"`
	PaidAt         *time.Time       `json:"paid_at,omitempty"`
	VoidedAt       *time.Time       `json:"voided_at,omitempty"`
	CreatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceLine is one priced line. VATRate is a fraction (0.2000 for 20%);
// nil means the line carries no tax.
type InvoiceLine struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID    `gorm:"not null;index" json:"org_id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,3);not null;default:1" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0" json:"unit_price"`
	VATRate     *float64        `gorm:"type:numeric(6,4)" json:"vat_rate,omitempty"`
	LineNet     decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"line_net"`
	LineTax     decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"line_tax"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"line_total"`
	Position    int             `gorm:"not null;default:0" json:"position"`
}

// TableName sets the database table name.
func (InvoiceLine) TableName() string { return "invoice_lines" }

// InvoiceSequence backs the per-org monotonic invoice counter.
type InvoiceSequence struct {
	OrgID      snowflake.ID `gorm:"primaryKey"`
	NextNumber int64        `gorm:"not null;default:1"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceSequence) TableName() string { return "invoice_sequences" }

// ListFilter narrows invoice listings.
type ListFilter struct {
	Status        InvoiceStatus
	Direction     InvoiceDirection
	IssueDateFrom *time.Time
	IssueDateTo   *time.Time
}
