package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/quote/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/option"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, quote *domain.Quote) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO quotes (id, org_id, quote_number, lead_id, customer_name, customer_email, status,
		                     currency, issue_date, valid_until, net_amount, tax_amount, total_amount,
		                     invoice_id, sent_at, decided_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		quote.ID,
		quote.OrgID,
		quote.QuoteNumber,
		quote.LeadID,
		quote.CustomerName,
		quote.CustomerEmail,
		quote.Status,
		quote.Currency,
		quote.IssueDate,
		quote.ValidUntil,
		quote.NetAmount,
		quote.TaxAmount,
		quote.TotalAmount,
		quote.InvoiceID,
		quote.SentAt,
		quote.DecidedAt,
		quote.CreatedAt,
		quote.UpdatedAt,
	).Error
}

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []*domain.QuoteLine) error {
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(lines, 200).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Quote, error) {
	var quote domain.Quote
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM quotes WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&quote).Error
	if err != nil {
		return nil, err
	}
	if quote.ID == 0 {
		return nil, nil
	}
	return &quote, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Quote, error) {
	var quotes []*domain.Quote
	stmt := db.WithContext(ctx).
		Model(&domain.Quote{}).
		Where("org_id = ?", orgID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.LeadID != 0 {
		stmt = stmt.Where("lead_id = ?", filter.LeadID)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&quotes).Error
	if err != nil {
		return nil, err
	}
	return quotes, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, orgID, quoteID snowflake.ID) ([]domain.QuoteLine, error) {
	var lines []domain.QuoteLine
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM quote_lines
		 WHERE org_id = ? AND quote_id = ?
		 ORDER BY position, id`,
		orgID,
		quoteID,
	).Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error) {
	if err := db.WithContext(ctx).Exec(
		`INSERT INTO quote_sequences (org_id, next_number, updated_at)
		 VALUES (?, 1, CURRENT_TIMESTAMP)
		 ON CONFLICT (org_id) DO NOTHING`,
		orgID,
	).Error; err != nil {
		return 0, err
	}
	if err := db.WithContext(ctx).Exec(
		`UPDATE quote_sequences
		 SET next_number = next_number + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ?`,
		orgID,
	).Error; err != nil {
		return 0, err
	}
	var claimed int64
	err := db.WithContext(ctx).Raw(
		`SELECT next_number - 1 FROM quote_sequences WHERE org_id = ?`,
		orgID,
	).Scan(&claimed).Error
	if err != nil {
		return 0, err
	}
	return claimed, nil
}

func (r *repo) UpdateDraft(ctx context.Context, db *gorm.DB, quote *domain.Quote) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE quotes
		 SET customer_name = ?, customer_email = ?, issue_date = ?, valid_until = ?,
		     net_amount = ?, tax_amount = ?, total_amount = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = 'draft'`,
		quote.CustomerName,
		quote.CustomerEmail,
		quote.IssueDate,
		quote.ValidUntil,
		quote.NetAmount,
		quote.TaxAmount,
		quote.TotalAmount,
		quote.UpdatedAt,
		quote.OrgID,
		quote.ID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ReplaceLines(ctx context.Context, db *gorm.DB, orgID, quoteID snowflake.ID, lines []*domain.QuoteLine) error {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM quote_lines WHERE org_id = ? AND quote_id = ?`,
		orgID,
		quoteID,
	).Error; err != nil {
		return err
	}
	return r.InsertLines(ctx, db, lines)
}

func (r *repo) MarkSent(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE quotes
		 SET status = 'sent', sent_at = ?, issue_date = COALESCE(issue_date, ?), updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = 'draft'`,
		at,
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

func (r *repo) MarkAccepted(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, invoiceID snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE quotes
		 SET status = 'accepted', invoice_id = ?, decided_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = 'sent'`,
		invoiceID,
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

func (r *repo) MarkRejected(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE quotes
		 SET status = 'rejected', decided_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = 'sent'`,
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

func (r *repo) MarkExpired(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE quotes
		 SET status = 'expired', updated_at = ?
		 WHERE org_id = ? AND id = ? AND status IN ('draft', 'sent')`,
		at,
		orgID,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
