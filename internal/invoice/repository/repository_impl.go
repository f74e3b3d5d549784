package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/option"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (id, org_id, invoice_number, direction, customer_name, customer_email, customer_vat,
		                       status, currency, issue_date, due_date, net_amount, tax_amount, total_amount,
		                       document_id, journal_entry_id, quote_id, pdf_path, issued_at, paid_at, voided_at,
		                       created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.OrgID,
		invoice.InvoiceNumber,
		invoice.Direction,
		invoice.CustomerName,
		invoice.CustomerEmail,
		invoice.CustomerVAT,
		invoice.Status,
		invoice.Currency,
		invoice.IssueDate,
		invoice.DueDate,
		invoice.NetAmount,
		invoice.TaxAmount,
		invoice.TotalAmount,
		invoice.DocumentID,
		invoice.JournalEntryID,
		invoice.QuoteID,
		invoice.PDFPath,
		invoice.IssuedAt,
		invoice.PaidAt,
		invoice.VoidedAt,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []*domain.InvoiceLine) error {
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(lines, 200).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM invoices WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("org_id = ?", orgID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Direction != "" {
		stmt = stmt.Where("direction = ?", filter.Direction)
	}
	if filter.IssueDateFrom != nil {
		stmt = stmt.Where("issue_date >= ?", *filter.IssueDateFrom)
	}
	if filter.IssueDateTo != nil {
		stmt = stmt.Where("issue_date <= ?", *filter.IssueDateTo)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) ([]domain.InvoiceLine, error) {
	var lines []domain.InvoiceLine
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM invoice_lines
		 WHERE org_id = ? AND invoice_id = ?
		 ORDER BY position, id`,
		orgID,
		invoiceID,
	).Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) ListIssuedSalesInPeriod(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to time.Time) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM invoices
		 WHERE org_id = ? AND direction = ? AND status IN (?, ?)
		   AND issue_date >= ? AND issue_date < ?
		 ORDER BY issue_date, id`,
		orgID,
		domain.DirectionSale,
		domain.InvoiceStatusOpen,
		domain.InvoiceStatusPaid,
		from,
		to,
	).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error) {
	if err := db.WithContext(ctx).Exec(
		`INSERT INTO invoice_sequences (org_id, next_number, updated_at)
		 VALUES (?, 1, CURRENT_TIMESTAMP)
		 ON CONFLICT (org_id) DO NOTHING`,
		orgID,
	).Error; err != nil {
		return 0, err
	}
	if err := db.WithContext(ctx).Exec(
		`UPDATE invoice_sequences
		 SET next_number = next_number + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ?`,
		orgID,
	).Error; err != nil {
		return 0, err
	}
	var claimed int64
	err := db.WithContext(ctx).Raw(
		`SELECT next_number - 1 FROM invoice_sequences WHERE org_id = ?`,
		orgID,
	).Scan(&claimed).Error
	if err != nil {
		return 0, err
	}
	return claimed, nil
}

func (r *repo) UpdateDraft(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET customer_name = ?, customer_email = ?, customer_vat = ?, issue_date = ?, due_date = ?,
		     net_amount = ?, tax_amount = ?, total_amount = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = 'draft'`,
		invoice.CustomerName,
		invoice.CustomerEmail,
		invoice.CustomerVAT,
		invoice.IssueDate,
		invoice.DueDate,
		invoice.NetAmount,
		invoice.TaxAmount,
		invoice.TotalAmount,
		invoice.UpdatedAt,
		invoice.OrgID,
		invoice.ID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ReplaceLines(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID, lines []*domain.InvoiceLine) error {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM invoice_lines WHERE org_id = ? AND invoice_id = ?`,
		orgID,
		invoiceID,
	).Error; err != nil {
		return err
	}
	return r.InsertLines(ctx, db, lines)
}

func (r *repo) MarkOpen(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, journalEntryID *snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = 'open', journal_entry_id = ?, issue_date = COALESCE(issue_date, ?), issued_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = 'draft'`,
		journalEntryID,
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

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = 'paid', paid_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = 'open'`,
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

func (r *repo) MarkVoid(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = 'void', voided_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status IN ('draft', 'open')`,
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

func (r *repo) SetPDFPath(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, path string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET pdf_path = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		path,
		at,
		orgID,
		id,
	).Error
}
