package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/deb/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/option"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, decl *domain.Declaration) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO deb_declarations (id, org_id, period, flow, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		decl.ID,
		decl.OrgID,
		decl.Period,
		decl.Flow,
		decl.Status,
		decl.CreatedAt,
		decl.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Declaration, error) {
	var decl domain.Declaration
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM deb_declarations WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&decl).Error
	if err != nil {
		return nil, err
	}
	if decl.ID == 0 {
		return nil, nil
	}
	return &decl, nil
}

func (r *repo) FindByPeriodFlow(ctx context.Context, db *gorm.DB, orgID snowflake.ID, period string, flow domain.Flow) (*domain.Declaration, error) {
	var decl domain.Declaration
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM deb_declarations WHERE org_id = ? AND period = ? AND flow = ?`,
		orgID,
		period,
		flow,
	).Scan(&decl).Error
	if err != nil {
		return nil, err
	}
	if decl.ID == 0 {
		return nil, nil
	}
	return &decl, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Declaration, error) {
	var decls []*domain.Declaration
	stmt := db.WithContext(ctx).
		Model(&domain.Declaration{}).
		Where("org_id = ?", orgID)
	if filter.Period != "" {
		stmt = stmt.Where("period = ?", filter.Period)
	}
	if filter.Flow != "" {
		stmt = stmt.Where("flow = ?", filter.Flow)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&decls).Error
	if err != nil {
		return nil, err
	}
	return decls, nil
}

func (r *repo) TouchDraft(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE deb_declarations SET updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ?`,
		at,
		orgID,
		id,
		domain.StatusDraft,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkValidated(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE deb_declarations SET status = ?, validated_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ?`,
		domain.StatusValidated,
		at,
		at,
		orgID,
		id,
		domain.StatusDraft,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkSubmitted(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE deb_declarations SET status = ?, submitted_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ?`,
		domain.StatusSubmitted,
		at,
		at,
		orgID,
		id,
		domain.StatusValidated,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkDraft(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE deb_declarations SET status = ?, validated_at = NULL, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ?`,
		domain.StatusDraft,
		at,
		orgID,
		id,
		domain.StatusValidated,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertLine(ctx context.Context, db *gorm.DB, line *domain.Line) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO deb_lines (id, org_id, declaration_id, document_id, invoice_id, description, hs_code, country_code, value, mass_kg, nature, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		line.ID,
		line.OrgID,
		line.DeclarationID,
		line.DocumentID,
		line.InvoiceID,
		line.Description,
		line.HSCode,
		line.CountryCode,
		line.Value,
		line.MassKG,
		line.Nature,
		line.CreatedAt,
		line.UpdatedAt,
	).Error
}

func (r *repo) UpdateLine(ctx context.Context, db *gorm.DB, line *domain.Line) error {
	return db.WithContext(ctx).Exec(
		`UPDATE deb_lines
		 SET description = ?, hs_code = ?, country_code = ?, value = ?, mass_kg = ?, nature = ?, updated_at = ?
		 WHERE org_id = ? AND declaration_id = ? AND id = ?`,
		line.Description,
		line.HSCode,
		line.CountryCode,
		line.Value,
		line.MassKG,
		line.Nature,
		line.UpdatedAt,
		line.OrgID,
		line.DeclarationID,
		line.ID,
	).Error
}

func (r *repo) DeleteLine(ctx context.Context, db *gorm.DB, orgID, declarationID, lineID snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM deb_lines WHERE org_id = ? AND declaration_id = ? AND id = ?`,
		orgID,
		declarationID,
		lineID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindLine(ctx context.Context, db *gorm.DB, orgID, declarationID, lineID snowflake.ID) (*domain.Line, error) {
	var line domain.Line
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM deb_lines WHERE org_id = ? AND declaration_id = ? AND id = ?`,
		orgID,
		declarationID,
		lineID,
	).Scan(&line).Error
	if err != nil {
		return nil, err
	}
	if line.ID == 0 {
		return nil, nil
	}
	return &line, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, orgID, declarationID snowflake.ID) ([]domain.Line, error) {
	var lines []domain.Line
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM deb_lines
		 WHERE org_id = ? AND declaration_id = ?
		 ORDER BY created_at, id`,
		orgID,
		declarationID,
	).Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}
