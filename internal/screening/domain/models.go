// Package domain contains models and contracts for CV screening jobs.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// JobStatus represents screening job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ScreeningJob scores one candidate document against a job description.
// PromptHash, Provider and Model are stamped by the runner when the job
// executes; a completed job with the same hash in the same org answers
// later jobs from cache without another model call.
type ScreeningJob struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID   `gorm:"column:org_id;not null;index" json:"org_id"`
	DocumentID     snowflake.ID   `gorm:"column:document_id;not null;index" json:"document_id"`
	JobDescription string         `gorm:"column:job_description;type:text;not null" json:"job_description"`
	PromptHash     *string        `gorm:"column:prompt_hash;type:text;index:idx_screening_jobs_org_hash,composite:org_hash" json:"prompt_hash,omitempty"`
	Provider       *string        `gorm:"type:text" json:"provider,omitempty"`
	Model          *string        `gorm:"type:text" json:"model,omitempty"`
	Status         JobStatus      `gorm:"type:text;not null;default:'pending';index" json:"status"`
	Score          *int           `gorm:"" json:"score,omitempty"`
	Summary        *string        `gorm:"type:text" json:"summary,omitempty"`
	Strengths      datatypes.JSON `gorm:"type:jsonb" json:"strengths,omitempty"`
	Concerns       datatypes.JSON `gorm:"type:jsonb" json:"concerns,omitempty"`
	CacheHit       bool           `gorm:"column:cache_hit;not null;default:false" json:"cache_hit"`
	LastError      *string        `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	StartedAt      *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

// TableName sets the database table name.
func (ScreeningJob) TableName() string { return "screening_jobs" }

// Verdict is the structured result a model returns for one screening.
type Verdict struct {
	Score     int      `json:"score"`
	Summary   string   `json:"summary"`
	Strengths []string `json:"strengths"`
	Concerns  []string `json:"concerns"`
}

// PromptHash derives the cache key for a screening run. The same
// provider, model, document text and job description always produce the
// same hash, so identical runs share one result.
func PromptHash(provider, model, documentText, jobDescription string) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(documentText))
	h.Write([]byte{0})
	h.Write([]byte(jobDescription))
	return hex.EncodeToString(h.Sum(nil))
}

// ListFilter narrows screening job list queries. Zero values mean no
// filter.
type ListFilter struct {
	Status     JobStatus
	DocumentID snowflake.ID
}
