// Package domain contains persistence models and the provider contract
// for document analysis.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ExtractedField is one key/value pair produced by a document analysis
// pass. Rows are immutable once inserted; re-analysis bumps the owning
// document's revision and inserts a new generation alongside the old one.
type ExtractedField struct {
	ID           snowflake.ID     `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID     `gorm:"column:org_id;not null;index" json:"org_id"`
	DocumentID   snowflake.ID     `gorm:"column:document_id;not null;index" json:"document_id"`
	Revision     int              `gorm:"not null;default:0" json:"revision"`
	FieldName    string           `gorm:"column:field_name;type:text;not null" json:"field_name"`
	Value        *string          `gorm:"type:text" json:"value,omitempty"`
	NumericValue *decimal.Decimal `gorm:"column:numeric_value;type:numeric(18,4)" json:"numeric_value,omitempty"`
	Confidence   *float64         `gorm:"type:numeric(5,4)" json:"confidence,omitempty"`
	Page         *int             `gorm:"" json:"page,omitempty"`
	BBoxX0       *float64         `gorm:"column:bbox_x0" json:"bbox_x0,omitempty"`
	BBoxY0       *float64         `gorm:"column:bbox_y0" json:"bbox_y0,omitempty"`
	BBoxX1       *float64         `gorm:"column:bbox_x1" json:"bbox_x1,omitempty"`
	BBoxY1       *float64         `gorm:"column:bbox_y1" json:"bbox_y1,omitempty"`
	CreatedAt    time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ExtractedField) TableName() string { return "extracted_fields" }
