package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert kinds emitted by the platform.
const (
	KindPipelineFailure  = "pipeline_failure"
	KindProviderErrors   = "provider_errors"
	KindScreeningFailure = "screening_failure"
)

type Alert struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID      `gorm:"index" json:"org_id"`
	Kind           string            `gorm:"not null" json:"kind"`
	Severity       Severity          `gorm:"not null" json:"severity"`
	Message        string            `gorm:"not null" json:"message"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	AcknowledgedAt *time.Time        `json:"acknowledged_at,omitempty"`
}

func (Alert) TableName() string {
	return "alerts"
}
