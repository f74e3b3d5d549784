package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Product is an org-scoped catalog item feeding invoice and quote lines.
// VATRate is a fraction (0.2000 for 20%); HSCode is the 8-digit NC code
// used when the item crosses an intra-EU border.
type Product struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	OrgID       snowflake.ID    `gorm:"column:org_id;not null;index"`
	SKU         string          `gorm:"column:sku;type:text;not null"`
	Name        string          `gorm:"type:text;not null"`
	Description *string         `gorm:"type:text"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(18,4);not null"`
	Currency    string          `gorm:"type:text;not null;default:'EUR'"`
	VATRate     *float64        `gorm:"column:vat_rate;type:numeric(6,4)"`
	HSCode      *string         `gorm:"column:hs_code;type:text"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }
