package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/alert/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/option"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, alert *domain.Alert) error {
	if alert == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO alerts (id, org_id, kind, severity, message, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.OrgID,
		alert.Kind,
		alert.Severity,
		alert.Message,
		alert.Metadata,
		alert.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Alert, error) {
	var alert domain.Alert
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM alerts WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&alert).Error
	if err != nil {
		return nil, err
	}
	if alert.ID == 0 {
		return nil, nil
	}
	return &alert, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Alert, error) {
	var alerts []*domain.Alert
	stmt := db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("org_id = ?", orgID)
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		stmt = stmt.Where("kind = ?", kind)
	}
	if filter.Unacknowledged {
		stmt = stmt.Where("acknowledged_at IS NULL")
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *repo) Acknowledge(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE alerts SET acknowledged_at = ?
		 WHERE org_id = ? AND id = ? AND acknowledged_at IS NULL`,
		at,
		orgID,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
