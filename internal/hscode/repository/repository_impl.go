package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/hscode/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/option"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, row *domain.HSCode) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO hs_codes (id, org_id, code, description, keywords, source, confidence, usage_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID,
		row.OrgID,
		row.Code,
		row.Description,
		row.Keywords,
		row.Source,
		row.Confidence,
		row.UsageCount,
		row.CreatedAt,
		row.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, row *domain.HSCode) error {
	return db.WithContext(ctx).Exec(
		`UPDATE hs_codes
		 SET description = ?, keywords = ?, confidence = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		row.Description,
		row.Keywords,
		row.Confidence,
		row.UpdatedAt,
		row.OrgID,
		row.ID,
	).Error
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*domain.HSCode, error) {
	var row domain.HSCode
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM hs_codes WHERE org_id = ? AND code = ?`,
		orgID,
		code,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) SearchByTokens(ctx context.Context, db *gorm.DB, orgID snowflake.ID, tokens []string) ([]domain.HSCode, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	conds := make([]string, 0, len(tokens))
	args := make([]any, 0, 1+2*len(tokens))
	args = append(args, orgID)
	for _, tok := range tokens {
		conds = append(conds, "(lower(description) LIKE ? OR lower(keywords) LIKE ?)")
		pattern := "%" + tok + "%"
		args = append(args, pattern, pattern)
	}

	var rows []domain.HSCode
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM hs_codes WHERE org_id = ? AND (`+strings.Join(conds, " OR ")+`)`,
		args...,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.HSCode, error) {
	var rows []*domain.HSCode
	stmt := db.WithContext(ctx).
		Model(&domain.HSCode{}).
		Where("org_id IN (?, ?)", orgID, domain.SeedOrgID)
	if filter.Source != "" {
		stmt = stmt.Where("source = ?", filter.Source)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		stmt = stmt.Where("(code LIKE ? OR lower(description) LIKE ? OR lower(keywords) LIKE ?)", pattern, pattern, pattern)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) RecordUsage(ctx context.Context, db *gorm.DB, usage *domain.Usage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO hs_code_usage (id, org_id, hs_code_id, used_at)
		 VALUES (?, ?, ?, ?)`,
		usage.ID,
		usage.OrgID,
		usage.HSCodeID,
		usage.UsedAt,
	).Error
}

func (r *repo) RollupUsage(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	err := db.WithContext(ctx).Exec(
		`UPDATE hs_codes
		 SET usage_count = usage_count + (
		         SELECT COUNT(*) FROM hs_code_usage u
		         WHERE u.hs_code_id = hs_codes.id AND u.used_at <= ?),
		     last_used_at = (
		         SELECT MAX(u.used_at) FROM hs_code_usage u
		         WHERE u.hs_code_id = hs_codes.id AND u.used_at <= ?),
		     updated_at = ?
		 WHERE id IN (SELECT hs_code_id FROM hs_code_usage WHERE used_at <= ?)`,
		cutoff,
		cutoff,
		cutoff,
		cutoff,
	).Error
	if err != nil {
		return 0, err
	}

	result := db.WithContext(ctx).Exec(
		`DELETE FROM hs_code_usage WHERE used_at <= ?`,
		cutoff,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
