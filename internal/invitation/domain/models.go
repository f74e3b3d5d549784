// Package domain contains persistence models for organization invites.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRevoked  = "revoked"
)

// DefaultTTL is how long an invite stays acceptable.
const DefaultTTL = 7 * 24 * time.Hour

// Invitation tracks a pending invite to an organization.
type Invitation struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"column:org_id;not null;index" json:"org_id"`
	Email     string       `gorm:"type:text;not null" json:"email"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	Status    string       `gorm:"type:text;not null" json:"status"`
	InvitedBy snowflake.ID `gorm:"column:invited_by;not null;index" json:"invited_by"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "organization_invites" }
