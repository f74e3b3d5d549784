package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/invitation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invite *domain.Invitation) error {
	if invite == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO organization_invites (id, org_id, email, role, status, invited_by, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invite.ID,
		invite.OrgID,
		invite.Email,
		invite.Role,
		invite.Status,
		invite.InvitedBy,
		invite.ExpiresAt,
		invite.CreatedAt,
		invite.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invitation, error) {
	var invite domain.Invitation
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, email, role, status, invited_by, expires_at, created_at, updated_at
		 FROM organization_invites
		 WHERE id = ?`,
		id,
	).First(&invite).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, err
	}
	return &invite, nil
}

func (r *repo) ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.Invitation, error) {
	var invites []domain.Invitation
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, email, role, status, invited_by, expires_at, created_at, updated_at
		 FROM organization_invites
		 WHERE org_id = ?
		 ORDER BY created_at DESC`,
		orgID,
	).Scan(&invites).Error
	if err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *repo) HasPending(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM organization_invites
		 WHERE org_id = ? AND lower(email) = ? AND status = ?`,
		orgID,
		strings.ToLower(strings.TrimSpace(email)),
		domain.StatusPending,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) MarkAccepted(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	return r.transition(ctx, db, id, domain.StatusAccepted, at)
}

func (r *repo) MarkRevoked(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	return r.transition(ctx, db, id, domain.StatusRevoked, at)
}

func (r *repo) transition(ctx context.Context, db *gorm.DB, id snowflake.ID, to string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE organization_invites
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		at,
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
