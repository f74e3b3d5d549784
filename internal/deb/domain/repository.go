package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository persists declarations and lines. Status transitions are
// compare-and-swap updates; a false return is a lost race.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, decl *Declaration) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Declaration, error)
	FindByPeriodFlow(ctx context.Context, db *gorm.DB, orgID snowflake.ID, period string, flow Flow) (*Declaration, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Declaration, error)

	// TouchDraft bumps updated_at while the declaration is still draft.
	// Line writers run it first inside their transaction; a false return
	// means the declaration left draft and the write must not happen.
	TouchDraft(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)

	MarkValidated(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)
	MarkSubmitted(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)

	// MarkDraft reopens a validated declaration for edits.
	MarkDraft(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)

	InsertLine(ctx context.Context, db *gorm.DB, line *Line) error
	UpdateLine(ctx context.Context, db *gorm.DB, line *Line) error
	DeleteLine(ctx context.Context, db *gorm.DB, orgID, declarationID, lineID snowflake.ID) (bool, error)
	FindLine(ctx context.Context, db *gorm.DB, orgID, declarationID, lineID snowflake.ID) (*Line, error)
	ListLines(ctx context.Context, db *gorm.DB, orgID, declarationID snowflake.ID) ([]Line, error)
}
