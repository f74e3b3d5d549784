package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invite *Invitation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invitation, error)
	ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Invitation, error)
	HasPending(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string) (bool, error)
	MarkAccepted(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	MarkRevoked(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
}
