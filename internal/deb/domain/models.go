// Package domain contains persistence models for monthly intra-EU goods
// declarations (DEB).
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Flow separates arrivals from dispatches.
type Flow string

const (
	FlowIntroduction Flow = "introduction"
	FlowExpedition   Flow = "expedition"
)

// Status represents declaration lifecycle states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusValidated Status = "validated"
	StatusSubmitted Status = "submitted"
)

// Declaration is one org's declaration for a month and a flow. One row
// per (org, period, flow); line edits stop once the declaration leaves
// draft.
type Declaration struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"column:org_id;not null;uniqueIndex:idx_deb_declarations_org_period_flow" json:"org_id"`
	Period      string       `gorm:"type:text;not null;uniqueIndex:idx_deb_declarations_org_period_flow" json:"period"`
	Flow        Flow         `gorm:"type:text;not null;uniqueIndex:idx_deb_declarations_org_period_flow" json:"flow"`
	Status      Status       `gorm:"type:text;not null;default:'draft';index" json:"status"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	ValidatedAt *time.Time   `gorm:"column:validated_at" json:"validated_at,omitempty"`
	SubmittedAt *time.Time   `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
}

// TableName sets the database table name.
func (Declaration) TableName() string { return "deb_declarations" }

// Line is one declared goods movement. DocumentID points at the source
// IDP document for introductions, InvoiceID at the source sale invoice
// for expeditions; hand-entered lines carry neither.
type Line struct {
	ID            snowflake.ID     `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID     `gorm:"column:org_id;not null;index" json:"org_id"`
	DeclarationID snowflake.ID     `gorm:"column:declaration_id;not null;index" json:"declaration_id"`
	DocumentID    *snowflake.ID    `gorm:"column:document_id;index" json:"document_id,omitempty"`
	InvoiceID     *snowflake.ID    `gorm:"column:invoice_id;index" json:"invoice_id,omitempty"`
	Description   string           `gorm:"type:text;not null" json:"description"`
	HSCode        string           `gorm:"column:hs_code;type:text;not null;default:''" json:"hs_code"`
	CountryCode   string           `gorm:"column:country_code;type:text;not null" json:"country_code"`
	Value         decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0" json:"value"`
	MassKG        *decimal.Decimal `gorm:"column:mass_kg;type:numeric(12,3)" json:"mass_kg,omitempty"`
	Nature        string           `gorm:"type:text;not null;default:'11'" json:"nature"`
	CreatedAt     time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Line) TableName() string { return "deb_lines" }

// ListFilter narrows declaration list queries. Zero values mean no filter.
type ListFilter struct {
	Period string
	Flow   Flow
	Status Status
}

// NatureDefault is the transaction-nature code for an outright
// sale or purchase, the overwhelmingly common case.
const NatureDefault = "11"

// partnerByVATPrefix maps EU VAT-number prefixes to the partner country
// declared on the line. Greece prefixes VAT numbers with EL but declares
// as GR; XI covers Northern Ireland goods traffic. FR is absent on
// purpose: domestic invoices are not intra-EU movements.
var partnerByVATPrefix = map[string]string{
	"AT": "AT", "BE": "BE", "BG": "BG", "CY": "CY", "CZ": "CZ",
	"DE": "DE", "DK": "DK", "EE": "EE", "EL": "GR", "ES": "ES",
	"FI": "FI", "HR": "HR", "HU": "HU", "IE": "IE", "IT": "IT",
	"LT": "LT", "LU": "LU", "LV": "LV", "MT": "MT", "NL": "NL",
	"PL": "PL", "PT": "PT", "RO": "RO", "SE": "SE", "SI": "SI",
	"SK": "SK", "XI": "XI",
}

// partnerCountries is the set of codes a line may declare.
var partnerCountries = func() map[string]struct{} {
	set := make(map[string]struct{}, len(partnerByVATPrefix))
	for _, c := range partnerByVATPrefix {
		set[c] = struct{}{}
	}
	return set
}()

// PartnerCountryFromVAT derives the partner country from an EU VAT
// number ("DE 123.456.789" yields DE). Domestic, non-EU and malformed
// numbers report false.
func PartnerCountryFromVAT(vat string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '.' || r == '-' {
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(vat)))
	if len(cleaned) < 4 {
		return "", false
	}
	country, ok := partnerByVATPrefix[cleaned[:2]]
	return country, ok
}

// ValidPartnerCountry reports whether code names an EU member state
// (or XI) a French declaration can trade with.
func ValidPartnerCountry(code string) bool {
	_, ok := partnerCountries[code]
	return ok
}

// ValidPeriod reports whether period is a well-formed YYYY-MM month.
func ValidPeriod(period string) bool {
	_, err := time.Parse("2006-01", period)
	return err == nil
}

// PeriodBounds returns the [from, to) UTC instants covering a YYYY-MM
// period. Callers must have checked ValidPeriod first.
func PeriodBounds(period string) (time.Time, time.Time) {
	from, _ := time.Parse("2006-01", period)
	return from, from.AddDate(0, 1, 0)
}
