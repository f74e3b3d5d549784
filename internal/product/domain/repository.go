package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository takes the database handle per call so invoice and quote
// services can resolve products inside their own transactions.
type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Product, error)
	FindBySKU(ctx context.Context, db *gorm.DB, orgID snowflake.ID, sku string) (*Product, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListRequest) ([]Product, error)
	Update(ctx context.Context, db *gorm.DB, product *Product) error
}
