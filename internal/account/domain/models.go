// Package domain contains the org-scoped chart of accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AccountType follows the usual balance-sheet / income-statement split.
type AccountType string

const (
	TypeAsset     AccountType = "asset"
	TypeLiability AccountType = "liability"
	TypeEquity    AccountType = "equity"
	TypeRevenue   AccountType = "revenue"
	TypeExpense   AccountType = "expense"
)

// Codes from the seeded French chart that journal postings rely on.
// They exist in every organization; see the seed package.
const (
	CodeSuppliers    = "401"
	CodeCustomers    = "411"
	CodeVATDeducted  = "44566"
	CodeVATCollected = "44571"
	CodeBank         = "512"
	CodePurchases    = "606"
	CodeServices     = "706"
	CodeSales        = "707"
)

type Account struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"column:org_id;not null;index" json:"org_id"`
	Code        string       `gorm:"type:text;not null" json:"code"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	AccountType AccountType  `gorm:"column:account_type;type:text;not null" json:"account_type"`
	Currency    string       `gorm:"type:text;not null;default:'EUR'" json:"currency"`
	IsActive    bool         `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

func ValidType(t AccountType) bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense:
		return true
	}
	return false
}

// ListFilter narrows chart listings. Zero values mean no filter.
type ListFilter struct {
	AccountType AccountType
	IsActive    *bool
}
