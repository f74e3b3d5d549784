// Package domain contains double-entry journal models. Every entry is a
// set of lines whose debits and credits balance; posting freezes the
// entry and reversal mirrors it rather than editing history.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type EntryStatus string

const (
	StatusDraft    EntryStatus = "draft"
	StatusPosted   EntryStatus = "posted"
	StatusReversed EntryStatus = "reversed"
)

// Source types trace an entry back to whatever produced it.
const (
	SourceManual   = "manual"
	SourceInvoice  = "invoice"
	SourceDocument = "document"
	SourceReversal = "reversal"
)

type JournalEntry struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID  `gorm:"column:org_id;not null;index" json:"org_id"`
	EntryDate       time.Time     `gorm:"column:entry_date;type:date;not null" json:"entry_date"`
	Reference       *string       `gorm:"type:text" json:"reference,omitempty"`
	Description     *string       `gorm:"type:text" json:"description,omitempty"`
	Status          EntryStatus   `gorm:"type:text;not null;default:'draft'" json:"status"`
	SourceType      string        `gorm:"column:source_type;type:text;not null;default:'manual'" json:"source_type"`
	SourceID        *snowflake.ID `gorm:"column:source_id" json:"source_id,omitempty"`
	PostedAt        *time.Time    `gorm:"column:posted_at" json:"posted_at,omitempty"`
	ReversedEntryID *snowflake.ID `gorm:"column:reversed_entry_id" json:"reversed_entry_id,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (JournalEntry) TableName() string { return "journal_entries" }

// JournalLine stores one leg of an entry. Exactly one of Debit and
// Credit is non-zero for lines written through the service.
type JournalLine struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID    `gorm:"column:org_id;not null" json:"org_id"`
	EntryID     snowflake.ID    `gorm:"column:entry_id;not null;index" json:"entry_id"`
	AccountID   snowflake.ID    `gorm:"column:account_id;not null" json:"account_id"`
	Debit       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"debit"`
	Credit      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"credit"`
	Description *string         `gorm:"type:text" json:"description,omitempty"`
	Position    int             `gorm:"not null;default:0" json:"position"`
}

func (JournalLine) TableName() string { return "journal_lines" }

// ListFilter narrows entry listings. Zero values mean no filter.
type ListFilter struct {
	Status     EntryStatus
	SourceType string
	DateFrom   *time.Time
	DateTo     *time.Time
}
