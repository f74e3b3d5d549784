package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/option"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, doc *domain.Document) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO documents (id, org_id, filename, content_type, byte_size, storage_path, doc_type, status, analysis_revision, uploaded_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID,
		doc.OrgID,
		doc.Filename,
		doc.ContentType,
		doc.ByteSize,
		doc.StoragePath,
		doc.DocType,
		doc.Status,
		doc.AnalysisRevision,
		doc.UploadedBy,
		doc.CreatedAt,
		doc.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Document, error) {
	var doc domain.Document
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM documents
		 WHERE org_id = ? AND id = ? AND deleted_at IS NULL`,
		orgID,
		id,
	).Scan(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == 0 {
		return nil, nil
	}
	return &doc, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Document, error) {
	var docs []*domain.Document
	stmt := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("org_id = ?", orgID).
		Where("deleted_at IS NULL")
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.DocType != "" {
		stmt = stmt.Where("doc_type = ?", filter.DocType)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *repo) ListProcessedInPeriod(ctx context.Context, db *gorm.DB, orgID snowflake.ID, period string) ([]*domain.Document, error) {
	var docs []*domain.Document
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM documents
		 WHERE org_id = ? AND status = ? AND deleted_at IS NULL AND document_date LIKE ?
		 ORDER BY document_date, id`,
		orgID,
		domain.StatusProcessed,
		period+"%",
	).Scan(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE documents SET deleted_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND deleted_at IS NULL`,
		at,
		at,
		orgID,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ClaimForProcessing(ctx context.Context, db *gorm.DB, limit int) ([]*domain.Document, error) {
	var docs []*domain.Document
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM documents
		 WHERE status = ? AND deleted_at IS NULL
		 ORDER BY created_at
		 LIMIT ?
		 FOR UPDATE SKIP LOCKED`,
		domain.StatusUploaded,
		limit,
	).Scan(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *repo) MarkProcessing(ctx context.Context, db *gorm.DB, id snowflake.ID, from domain.Status, revision int, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE documents
		 SET status = ?, analysis_revision = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND deleted_at IS NULL`,
		domain.StatusProcessing,
		revision,
		at,
		id,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE documents
		 SET status = ?, processed_at = COALESCE(processed_at, ?), last_error = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusProcessed,
		at,
		at,
		id,
		domain.StatusProcessing,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE documents
		 SET status = ?, last_error = ?, last_error_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusFailed,
		reason,
		at,
		at,
		id,
		domain.StatusProcessing,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SetAnalysisRevision(ctx context.Context, db *gorm.DB, id snowflake.ID, revision int, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE documents SET analysis_revision = ?, updated_at = ? WHERE id = ?`,
		revision,
		at,
		id,
	).Error
}

func (r *repo) ApplyNormalization(ctx context.Context, db *gorm.DB, id snowflake.ID, update domain.NormalizedUpdate, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE documents
		 SET vendor_name = ?, vendor_tax_id = ?, customer_name = ?, invoice_number = ?,
		     document_date = ?, due_date = ?, total_amount = ?, tax_amount = ?, net_amount = ?,
		     currency = ?, processing_note = ?, updated_at = ?
		 WHERE id = ?`,
		update.VendorName,
		update.VendorTaxID,
		update.CustomerName,
		update.InvoiceNumber,
		update.DocumentDate,
		update.DueDate,
		update.TotalAmount,
		update.TaxAmount,
		update.NetAmount,
		update.Currency,
		update.ProcessingNote,
		at,
		id,
	).Error
}
