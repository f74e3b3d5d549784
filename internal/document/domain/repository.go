package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository persists documents. Status transitions are compare-and-swap
// updates keyed on the expected current status; callers must treat a
// false return as a lost race, not an error.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, doc *Document) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Document, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Document, error)

	// ListProcessedInPeriod returns processed, undeleted documents whose
	// document date falls inside the YYYY-MM period.
	ListProcessedInPeriod(ctx context.Context, db *gorm.DB, orgID snowflake.ID, period string) ([]*Document, error)

	SoftDelete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)

	// ClaimForProcessing locks up to limit uploaded documents with
	// FOR UPDATE SKIP LOCKED. Must run inside a transaction.
	ClaimForProcessing(ctx context.Context, db *gorm.DB, limit int) ([]*Document, error)

	MarkProcessing(ctx context.Context, db *gorm.DB, id snowflake.ID, from Status, revision int, at time.Time) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) (bool, error)
	SetAnalysisRevision(ctx context.Context, db *gorm.DB, id snowflake.ID, revision int, at time.Time) error

	ApplyNormalization(ctx context.Context, db *gorm.DB, id snowflake.ID, update NormalizedUpdate, at time.Time) error
}
