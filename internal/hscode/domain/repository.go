package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository persists nomenclature rows and their usage trail. Stateless;
// callers pass the db handle so lookups and learning compose into the
// callers' transactions.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, row *HSCode) error

	// Update rewrites the mutable columns of a learned row (keywords,
	// confidence, description).
	Update(ctx context.Context, db *gorm.DB, row *HSCode) error

	FindByCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*HSCode, error)

	// SearchByTokens returns rows in one org scope whose description or
	// keywords contain any token. Callers scan the real org first and
	// SeedOrgID second; scoring happens in the service.
	SearchByTokens(ctx context.Context, db *gorm.DB, orgID snowflake.ID, tokens []string) ([]HSCode, error)

	// List returns the org's effective reference table: its own learned
	// rows plus the shared seed rows.
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*HSCode, error)

	RecordUsage(ctx context.Context, db *gorm.DB, usage *Usage) error

	// RollupUsage folds usage rows recorded up to cutoff into their
	// hs_codes row (usage_count, last_used_at) and deletes them,
	// returning how many rows were compacted.
	RollupUsage(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
