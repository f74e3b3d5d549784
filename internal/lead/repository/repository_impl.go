package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/lead/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/option"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, lead *domain.Lead) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO leads (
			id, org_id, company_name, contact_name, email, phone, website,
			country_code, source, status, score, notes, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID,
		lead.OrgID,
		lead.CompanyName,
		lead.ContactName,
		lead.Email,
		lead.Phone,
		lead.Website,
		lead.CountryCode,
		lead.Source,
		lead.Status,
		lead.Score,
		lead.Notes,
		lead.Metadata,
		lead.CreatedAt,
		lead.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Lead, error) {
	var lead domain.Lead
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM leads WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&lead).Error
	if err != nil {
		return nil, err
	}
	if lead.ID == 0 {
		return nil, nil
	}
	return &lead, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Lead, error) {
	var leads []*domain.Lead
	stmt := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("org_id = ?", orgID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Source != "" {
		stmt = stmt.Where("source = ?", filter.Source)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&leads).Error
	if err != nil {
		return nil, err
	}
	return leads, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, lead *domain.Lead) error {
	return db.WithContext(ctx).Exec(
		`UPDATE leads SET
			company_name = ?, contact_name = ?, email = ?, phone = ?,
			website = ?, country_code = ?, score = ?, notes = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		lead.CompanyName,
		lead.ContactName,
		lead.Email,
		lead.Phone,
		lead.Website,
		lead.CountryCode,
		lead.Score,
		lead.Notes,
		lead.UpdatedAt,
		lead.OrgID,
		lead.ID,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, status domain.LeadStatus, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE leads SET status = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status NOT IN (?, ?)`,
		status,
		at,
		orgID,
		id,
		domain.StatusConverted,
		domain.StatusLost,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ExistingWebsites(ctx context.Context, db *gorm.DB, orgID snowflake.ID, websites []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(websites))
	if len(websites) == 0 {
		return existing, nil
	}

	lowered := make([]string, 0, len(websites))
	for _, site := range websites {
		lowered = append(lowered, strings.ToLower(site))
	}

	var rows []string
	err := db.WithContext(ctx).Raw(
		`SELECT lower(website) FROM leads
		 WHERE org_id = ? AND website IS NOT NULL AND lower(website) IN (?)`,
		orgID,
		lowered,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		existing[row] = true
	}
	return existing, nil
}
