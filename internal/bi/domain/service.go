// Package domain defines the cross-module overview the dashboard reads.
package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// DocumentStats counts the org's documents per lifecycle status.
// FieldsExtracted covers the trailing 30 days.
type DocumentStats struct {
	ByStatus        map[string]int64 `json:"by_status"`
	Total           int64            `json:"total"`
	FieldsExtracted int64            `json:"fields_extracted_30d"`
}

// MonthlyInvoiceTotal is one month of issued sales (open and paid).
type MonthlyInvoiceTotal struct {
	Month string          `json:"month"`
	Count int64           `json:"count"`
	Net   decimal.Decimal `json:"net_amount"`
	Total decimal.Decimal `json:"total_amount"`
}

// ScreeningStats counts jobs per status. CacheHitRatio is cache hits
// over completed jobs, nil until the first job completes.
type ScreeningStats struct {
	ByStatus      map[string]int64 `json:"by_status"`
	CacheHits     int64            `json:"cache_hits"`
	CacheHitRatio *float64         `json:"cache_hit_ratio,omitempty"`
}

// TopHSCode is one nomenclature entry ranked by recorded lookups.
type TopHSCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Uses        int64  `json:"uses"`
}

// Overview is the whole dashboard payload, assembled in one call.
type Overview struct {
	Documents      DocumentStats         `json:"documents"`
	InvoiceMonthly []MonthlyInvoiceTotal `json:"invoice_monthly"`
	JournalEntries map[string]int64      `json:"journal_entries"`
	LeadPipeline   map[string]int64      `json:"lead_pipeline"`
	Screening      ScreeningStats        `json:"screening"`
	TopHSCodes     []TopHSCode           `json:"top_hs_codes"`
}

type Service interface {
	Overview(ctx context.Context) (Overview, error)
}

var ErrInvalidOrganization = errors.New("invalid_organization")
