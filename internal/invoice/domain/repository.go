package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository takes the database handle per call so the quote service can
// reuse invoice writes inside its own transactions.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertLines(ctx context.Context, db *gorm.DB, lines []*InvoiceLine) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Invoice, error)
	ListLines(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) ([]InvoiceLine, error)

	// ListIssuedSalesInPeriod returns open or paid sale invoices issued
	// inside [from, to).
	ListIssuedSalesInPeriod(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to time.Time) ([]*Invoice, error)

	// NextSequence increments the per-org counter and returns the claimed
	// value. Must run inside a transaction; the row lock taken by the
	// update serializes concurrent claims.
	NextSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)

	UpdateDraft(ctx context.Context, db *gorm.DB, invoice *Invoice) (bool, error)
	ReplaceLines(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID, lines []*InvoiceLine) error

	MarkOpen(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, journalEntryID *snowflake.ID, at time.Time) (bool, error)
	MarkPaid(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)
	MarkVoid(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)
	SetPDFPath(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, path string, at time.Time) error
}
