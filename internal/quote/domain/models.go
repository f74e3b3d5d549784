package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// QuoteStatus follows draft -> sent -> accepted|rejected|expired. Every
// transition is a compare-and-swap on the current status, so concurrent
// decisions cannot both win.
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRejected QuoteStatus = "rejected"
	QuoteStatusExpired  QuoteStatus = "expired"
)

// Quote is a priced offer to a prospect. NetAmount + TaxAmount =
// TotalAmount holds for every stored row, same as invoices. InvoiceID is
// set once the quote is accepted and its draft invoice exists.
type Quote struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID    `gorm:"column:org_id;not null;index" json:"organization_id"`
	QuoteNumber   string          `gorm:"column:quote_number;type:text;not null" json:"quote_number"`
	LeadID        *snowflake.ID   `gorm:"column:lead_id" json:"lead_id,omitempty"`
	CustomerName  string          `gorm:"column:customer_name;type:text;not null" json:"customer_name"`
	CustomerEmail *string         `gorm:"column:customer_email;type:text" json:"customer_email,omitempty"`
	Status        QuoteStatus     `gorm:"type:text;not null;default:'draft'" json:"status"`
	Currency      string          `gorm:"type:text;not null;default:'EUR'" json:"currency"`
	IssueDate     *time.Time      `gorm:"column:issue_date;type:date" json:"issue_date,omitempty"`
	ValidUntil    *time.Time      `gorm:"column:valid_until;type:date" json:"valid_until,omitempty"`
	NetAmount     decimal.Decimal `gorm:"column:net_amount;type:numeric(18,2);not null" json:"net_amount"`
	TaxAmount     decimal.Decimal `gorm:"column:tax_amount;type:numeric(18,2);not null" json:"tax_amount"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:numeric(18,2);not null" json:"total_amount"`
	InvoiceID     *snowflake.ID   `gorm:"column:invoice_id" json:"invoice_id,omitempty"`
	SentAt        *time.Time      `gorm:"column:sent_at" json:"sent_at,omitempty"`
	DecidedAt     *time.Time      `gorm:"column:decided_at" json:"decided_at,omitempty"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Quote) TableName() string {
	return "quotes"
}

// QuoteLine mirrors the invoice line shape: VATRate is a fraction
// (0.2000 for 20%), nil means no tax on the line.
type QuoteLine struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID    `gorm:"column:org_id;not null;index" json:"organization_id"`
	QuoteID     snowflake.ID    `gorm:"column:quote_id;not null;index" json:"quote_id"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,3);not null;default:1" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(18,4);not null" json:"unit_price"`
	VATRate     *float64        `gorm:"column:vat_rate;type:numeric(6,4)" json:"vat_rate,omitempty"`
	LineNet     decimal.Decimal `gorm:"column:line_net;type:numeric(18,2);not null" json:"line_net"`
	LineTax     decimal.Decimal `gorm:"column:line_tax;type:numeric(18,2);not null" json:"line_tax"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(18,2);not null" json:"line_total"`
	Position    int             `gorm:"not null;default:0" json:"position"`
}

func (QuoteLine) TableName() string {
	return "quote_lines"
}

// QuoteSequence backs per-org quote numbering, one row per org.
type QuoteSequence struct {
	OrgID      snowflake.ID `gorm:"column:org_id;primaryKey" json:"organization_id"`
	NextNumber int64        `gorm:"column:next_number;not null;default:1" json:"next_number"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (QuoteSequence) TableName() string {
	return "quote_sequences"
}

// ListFilter narrows quote listings.
type ListFilter struct {
	Status QuoteStatus
	LeadID snowflake.ID
}
