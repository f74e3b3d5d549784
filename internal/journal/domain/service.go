package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
)

const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

type LineInput struct {
	AccountID   string          `json:"account_id"`
	Direction   string          `json:"direction"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type CreateRequest struct {
	EntryDate   string      `json:"entry_date"`
	Reference   string      `json:"reference"`
	Description string      `json:"description"`
	SourceType  string      `json:"source_type"`
	SourceID    string      `json:"source_id"`
	Lines       []LineInput `json:"lines"`
}

type ListRequest struct {
	Status     string `form:"status"`
	SourceType string `form:"source_type"`
	DateFrom   string `form:"date_from"`
	DateTo     string `form:"date_to"`
	PageSize   int32  `form:"page_size"`
	PageToken  string `form:"page_token"`
}

type ListResponse struct {
	pagination.PageInfo
	Entries []JournalEntry `json:"entries"`
}

// EntryDetail is an entry together with its lines in position order.
type EntryDetail struct {
	JournalEntry
	Lines []JournalLine `json:"lines"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (EntryDetail, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	GetByID(ctx context.Context, id string) (EntryDetail, error)
	Post(ctx context.Context, id string) (JournalEntry, error)
	Reverse(ctx context.Context, id string) (EntryDetail, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_entry_id")
	ErrNotFound            = errors.New("entry_not_found")
	ErrInvalidDate         = errors.New("invalid_entry_date")
	ErrInvalidSource       = errors.New("invalid_source_type")
	ErrTooFewLines         = errors.New("entry_needs_two_lines")
	ErrInvalidDirection    = errors.New("invalid_line_direction")
	ErrNegativeAmount      = errors.New("negative_line_amount")
	ErrUnknownAccount      = errors.New("unknown_account")
	ErrUnbalanced          = errors.New("unbalanced_entry")
	ErrStatusConflict      = errors.New("entry_status_conflict")
)
