package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/journal/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/option"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, entry *domain.JournalEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO journal_entries (id, org_id, entry_date, reference, description, status, source_type, source_id, posted_at, reversed_entry_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OrgID,
		entry.EntryDate,
		entry.Reference,
		entry.Description,
		entry.Status,
		entry.SourceType,
		entry.SourceID,
		entry.PostedAt,
		entry.ReversedEntryID,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Error
}

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []*domain.JournalLine) error {
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(lines, 200).Error
}

func (r *repo) FindEntryByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.JournalEntry, error) {
	var entry domain.JournalEntry
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM journal_entries WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.JournalEntry, error) {
	var entries []*domain.JournalEntry
	stmt := db.WithContext(ctx).
		Model(&domain.JournalEntry{}).
		Where("org_id = ?", orgID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.SourceType != "" {
		stmt = stmt.Where("source_type = ?", filter.SourceType)
	}
	if filter.DateFrom != nil {
		stmt = stmt.Where("entry_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		stmt = stmt.Where("entry_date <= ?", *filter.DateTo)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, orgID, entryID snowflake.ID) ([]domain.JournalLine, error) {
	var lines []domain.JournalLine
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM journal_lines
		 WHERE org_id = ? AND entry_id = ?
		 ORDER BY position, id`,
		orgID,
		entryID,
	).Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) MarkPosted(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE journal_entries
		 SET status = 'posted', posted_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = 'draft'`,
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

func (r *repo) MarkReversed(ctx context.Context, db *gorm.DB, orgID, id, reversalID snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE journal_entries
		 SET status = 'reversed', reversed_entry_id = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = 'posted'`,
		reversalID,
		at,
		orgID,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
