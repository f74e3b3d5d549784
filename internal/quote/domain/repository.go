package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository takes the database handle per call so accept can compose
// invoice writes in the same transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, quote *Quote) error
	InsertLines(ctx context.Context, db *gorm.DB, lines []*QuoteLine) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Quote, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Quote, error)
	ListLines(ctx context.Context, db *gorm.DB, orgID, quoteID snowflake.ID) ([]QuoteLine, error)

	// NextSequence claims the next quote number for the org. Must run
	// inside a transaction; the sequence-row update serializes callers.
	NextSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)

	UpdateDraft(ctx context.Context, db *gorm.DB, quote *Quote) (bool, error)
	ReplaceLines(ctx context.Context, db *gorm.DB, orgID, quoteID snowflake.ID, lines []*QuoteLine) error

	// Status CAS transitions. Each returns false when the quote was not
	// in the expected source status.
	MarkSent(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)
	MarkAccepted(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, invoiceID snowflake.ID, at time.Time) (bool, error)
	MarkRejected(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)
	MarkExpired(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)
}
