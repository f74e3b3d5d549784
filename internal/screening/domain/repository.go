package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository persists screening jobs. Status transitions are
// compare-and-swap updates keyed on the expected current status; callers
// must treat a false return as a lost race, not an error.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *ScreeningJob) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*ScreeningJob, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*ScreeningJob, error)

	// FindCachedResult returns the newest completed job in the org with
	// the same prompt hash, excluding the job being run.
	FindCachedResult(ctx context.Context, db *gorm.DB, orgID snowflake.ID, promptHash string, excludeID snowflake.ID) (*ScreeningJob, error)

	// ClaimPending locks up to limit pending jobs with
	// FOR UPDATE SKIP LOCKED. Must run inside a transaction.
	ClaimPending(ctx context.Context, db *gorm.DB, limit int) ([]*ScreeningJob, error)

	MarkRunning(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)

	// SaveResult completes a running job, writing the hash, provider,
	// model and verdict columns in one update.
	SaveResult(ctx context.Context, db *gorm.DB, job *ScreeningJob, at time.Time) (bool, error)

	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) (bool, error)

	// ResetForRerun flips a failed job back to pending and clears the
	// previous result.
	ResetForRerun(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)
}
