package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// LeadStatus tracks where a prospect sits in the funnel. Converted and
// lost are terminal: once a lead reaches either, its status never moves
// again.
type LeadStatus string

const (
	StatusNew       LeadStatus = "new"
	StatusContacted LeadStatus = "contacted"
	StatusQualified LeadStatus = "qualified"
	StatusConverted LeadStatus = "converted"
	StatusLost      LeadStatus = "lost"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusConverted, StatusLost:
		return true
	}
	return false
}

func (s LeadStatus) Terminal() bool {
	return s == StatusConverted || s == StatusLost
}

// LeadSource records how a lead entered the system.
type LeadSource string

const (
	SourceManual LeadSource = "manual"
	SourceSearch LeadSource = "search"
	SourceImport LeadSource = "import"
)

type Lead struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID      `gorm:"column:org_id;not null;index" json:"organization_id"`
	CompanyName string            `gorm:"column:company_name;type:text;not null" json:"company_name"`
	ContactName *string           `gorm:"column:contact_name;type:text" json:"contact_name,omitempty"`
	Email       *string           `gorm:"type:text" json:"email,omitempty"`
	Phone       *string           `gorm:"type:text" json:"phone,omitempty"`
	Website     *string           `gorm:"type:text" json:"website,omitempty"`
	CountryCode *string           `gorm:"column:country_code;type:text" json:"country_code,omitempty"`
	Source      LeadSource        `gorm:"type:text;not null;default:'manual'" json:"source"`
	Status      LeadStatus        `gorm:"type:text;not null;default:'new'" json:"status"`
	Score       int               `gorm:"not null;default:0" json:"score"`
	Notes       *string           `gorm:"type:text" json:"notes,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

// ListFilter narrows lead listings.
type ListFilter struct {
	Status LeadStatus
	Source LeadSource
}
