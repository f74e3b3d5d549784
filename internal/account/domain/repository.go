package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository takes the database handle per call so journal and invoice
// services can run account lookups inside their own transactions.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Account, error)
	FindByCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*Account, error)
	FindActiveByIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]Account, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter) ([]Account, error)
	Update(ctx context.Context, db *gorm.DB, account *Account) error
}
