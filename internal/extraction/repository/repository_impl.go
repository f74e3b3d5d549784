package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/extraction/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, fields []*domain.ExtractedField) error {
	if len(fields) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(fields, 200).Error
}

func (r *repo) ListByRevision(ctx context.Context, db *gorm.DB, orgID, documentID snowflake.ID, revision int) ([]domain.ExtractedField, error) {
	var fields []domain.ExtractedField
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, document_id, revision, field_name, value, numeric_value, confidence, page, bbox_x0, bbox_y0, bbox_x1, bbox_y1, created_at
		 FROM extracted_fields
		 WHERE org_id = ? AND document_id = ? AND revision = ?
		 ORDER BY id`,
		orgID,
		documentID,
		revision,
	).Scan(&fields).Error
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func (r *repo) CountByRevision(ctx context.Context, db *gorm.DB, orgID, documentID snowflake.ID, revision int) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM extracted_fields
		 WHERE org_id = ? AND document_id = ? AND revision = ?`,
		orgID,
		documentID,
		revision,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
