// Package domain contains persistence models for the combined
// nomenclature reference table behind DEB line enrichment.
package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/bwmarrin/snowflake"
)

// Source tells where a nomenclature row came from.
type Source string

const (
	SourceSeed    Source = "seed"
	SourceLearned Source = "learned"
)

// SeedOrgID is the org column value of shared seed rows. Every
// organization reads them; only install-time seeding writes them.
const SeedOrgID = snowflake.ID(0)

// HSCode is one 8-digit combined nomenclature entry. Seed rows ship
// with the install under SeedOrgID; learned rows are written per org by
// the suggestion service whenever the model classifies a description the
// table could not answer, so the next identical lookup stays local.
type HSCode struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"column:org_id;not null;default:0;uniqueIndex:idx_hs_codes_org_code" json:"org_id"`
	Code        string       `gorm:"type:text;not null;uniqueIndex:idx_hs_codes_org_code" json:"code"`
	Description string       `gorm:"type:text;not null" json:"description"`
	Keywords    string       `gorm:"type:text;not null;default:''" json:"keywords"`
	Source      Source       `gorm:"type:text;not null;default:'seed'" json:"source"`
	Confidence  *float64     `gorm:"type:numeric(5,4)" json:"confidence,omitempty"`
	UsageCount  int64        `gorm:"column:usage_count;not null;default:0" json:"usage_count"`
	LastUsedAt  *time.Time   `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (HSCode) TableName() string { return "hs_codes" }

// Usage is one tier-1 lookup hit. Hits append here instead of updating
// the hot hs_codes row; the daily rollup folds them into usage_count and
// deletes them.
type Usage struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	OrgID    snowflake.ID `gorm:"column:org_id;not null;index"`
	HSCodeID snowflake.ID `gorm:"column:hs_code_id;not null;index"`
	UsedAt   time.Time    `gorm:"column:used_at;not null"`
}

// TableName sets the database table name.
func (Usage) TableName() string { return "hs_code_usage" }

// ListFilter narrows nomenclature list queries. Zero values mean no filter.
type ListFilter struct {
	Search string
	Source Source
}

// NormalizeCode strips separators from a nomenclature code, turning
// "8471.30.00" or "8471 30 00" into "84713000".
func NormalizeCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCode reports whether code is a normalized 8-digit NC code.
func ValidCode(code string) bool {
	if len(code) != 8 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Tokenize lowercases a product description and splits it into the
// keyword tokens the tier-1 scan matches on. Tokens shorter than three
// runes carry no signal and are dropped; duplicates collapse.
func Tokenize(description string) []string {
	fields := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}
