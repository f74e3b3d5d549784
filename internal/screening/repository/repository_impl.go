package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/screening/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/option"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *domain.ScreeningJob) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO screening_jobs (id, org_id, document_id, job_description, status, cache_hit, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.OrgID,
		job.DocumentID,
		job.JobDescription,
		job.Status,
		job.CacheHit,
		job.CreatedAt,
		job.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.ScreeningJob, error) {
	var job domain.ScreeningJob
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM screening_jobs WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.ScreeningJob, error) {
	var jobs []*domain.ScreeningJob
	stmt := db.WithContext(ctx).
		Model(&domain.ScreeningJob{}).
		Where("org_id = ?", orgID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.DocumentID != 0 {
		stmt = stmt.Where("document_id = ?", filter.DocumentID)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) FindCachedResult(ctx context.Context, db *gorm.DB, orgID snowflake.ID, promptHash string, excludeID snowflake.ID) (*domain.ScreeningJob, error) {
	var job domain.ScreeningJob
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM screening_jobs
		 WHERE org_id = ? AND prompt_hash = ? AND status = ? AND id <> ?
		 ORDER BY completed_at DESC
		 LIMIT 1`,
		orgID,
		promptHash,
		domain.JobStatusCompleted,
		excludeID,
	).Scan(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *repo) ClaimPending(ctx context.Context, db *gorm.DB, limit int) ([]*domain.ScreeningJob, error) {
	var jobs []*domain.ScreeningJob
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM screening_jobs
		 WHERE status = ?
		 ORDER BY created_at
		 LIMIT ?
		 FOR UPDATE SKIP LOCKED`,
		domain.JobStatusPending,
		limit,
	).Scan(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) MarkRunning(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE screening_jobs
		 SET status = ?, started_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.JobStatusRunning,
		at,
		at,
		id,
		domain.JobStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SaveResult(ctx context.Context, db *gorm.DB, job *domain.ScreeningJob, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE screening_jobs
		 SET status = ?, prompt_hash = ?, provider = ?, model = ?,
		     score = ?, summary = ?, strengths = ?, concerns = ?,
		     cache_hit = ?, last_error = NULL, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.JobStatusCompleted,
		job.PromptHash,
		job.Provider,
		job.Model,
		job.Score,
		job.Summary,
		job.Strengths,
		job.Concerns,
		job.CacheHit,
		at,
		at,
		job.ID,
		domain.JobStatusRunning,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE screening_jobs
		 SET status = ?, last_error = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.JobStatusFailed,
		reason,
		at,
		id,
		domain.JobStatusRunning,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ResetForRerun(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE screening_jobs
		 SET status = ?, prompt_hash = NULL, provider = NULL, model = NULL,
		     score = NULL, summary = NULL, strengths = NULL, concerns = NULL,
		     cache_hit = ?, last_error = NULL, started_at = NULL, completed_at = NULL, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ?`,
		domain.JobStatusPending,
		false,
		at,
		orgID,
		id,
		domain.JobStatusFailed,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
