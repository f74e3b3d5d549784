package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository takes the database handle per call so sourcing can insert
// a whole batch inside one transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, lead *Lead) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Lead, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Lead, error)
	Update(ctx context.Context, db *gorm.DB, lead *Lead) error

	// UpdateStatus flips the status only while the current one is not
	// terminal. Returns false when the guard loses.
	UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, status LeadStatus, at time.Time) (bool, error)

	// ExistingWebsites reports which of the given normalized websites
	// already belong to a lead in the org.
	ExistingWebsites(ctx context.Context, db *gorm.DB, orgID snowflake.ID, websites []string) (map[string]bool, error)
}
