package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, fields []*ExtractedField) error
	ListByRevision(ctx context.Context, db *gorm.DB, orgID, documentID snowflake.ID, revision int) ([]ExtractedField, error)
	CountByRevision(ctx context.Context, db *gorm.DB, orgID, documentID snowflake.ID, revision int) (int64, error)
}
