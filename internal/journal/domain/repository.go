package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository takes the database handle per call so the invoice service
// can write posting entries inside its own transactions.
type Repository interface {
	InsertEntry(ctx context.Context, db *gorm.DB, entry *JournalEntry) error
	InsertLines(ctx context.Context, db *gorm.DB, lines []*JournalLine) error
	FindEntryByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*JournalEntry, error)
	ListEntries(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*JournalEntry, error)
	ListLines(ctx context.Context, db *gorm.DB, orgID, entryID snowflake.ID) ([]JournalLine, error)
	MarkPosted(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)
	MarkReversed(ctx context.Context, db *gorm.DB, orgID, id, reversalID snowflake.ID, at time.Time) (bool, error)
}
