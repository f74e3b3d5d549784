package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Kind           string
	Unacknowledged bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, alert *Alert) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Alert, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Alert, error)
	Acknowledge(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)
}
