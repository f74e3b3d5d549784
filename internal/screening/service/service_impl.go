package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	documentdomain "github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/internal/screening/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Docs  documentdomain.Repository
	Audit auditdomain.Service
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	docs     documentdomain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("screening.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		docs:     p.Docs,
		auditSvc: p.Audit,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (domain.ScreeningJob, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ScreeningJob{}, domain.ErrInvalidOrganization
	}

	documentID, err := snowflake.ParseString(strings.TrimSpace(req.DocumentID))
	if err != nil {
		return domain.ScreeningJob{}, domain.ErrInvalidDocument
	}
	doc, err := s.docs.FindByID(ctx, s.db, snowflake.ID(orgID), documentID)
	if err != nil {
		return domain.ScreeningJob{}, err
	}
	if doc == nil {
		return domain.ScreeningJob{}, domain.ErrInvalidDocument
	}

	description := strings.TrimSpace(req.JobDescription)
	if description == "" {
		return domain.ScreeningJob{}, domain.ErrMissingDescription
	}

	now := s.clock.Now()
	job := domain.ScreeningJob{
		ID:             s.genID.Generate(),
		OrgID:          snowflake.ID(orgID),
		DocumentID:     documentID,
		JobDescription: description,
		Status:         domain.JobStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, &job)
	})
	if err != nil {
		return domain.ScreeningJob{}, err
	}

	s.writeAuditLog(ctx, snowflake.ID(orgID), "screening.create", job.ID, map[string]any{
		"document_id": documentID.String(),
	})
	return job, nil
}

func (s *service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	filter := domain.ListFilter{
		Status: domain.JobStatus(strings.ToLower(strings.TrimSpace(req.Status))),
	}
	if raw := strings.TrimSpace(req.DocumentID); raw != "" {
		documentID, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidDocument
		}
		filter.DocumentID = documentID
	}

	jobs, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageSize:  int(pageSize),
		PageToken: req.PageToken,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(jobs, pageSize, func(job *domain.ScreeningJob) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        job.ID.String(),
			CreatedAt: job.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(jobs) > int(pageSize) {
		jobs = jobs[:pageSize]
	}

	items := make([]domain.ScreeningJob, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		items = append(items, *job)
	}

	resp := domain.ListResponse{Jobs: items}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *service) GetByID(ctx context.Context, id string) (domain.ScreeningJob, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return domain.ScreeningJob{}, err
	}
	return *job, nil
}

func (s *service) Rerun(ctx context.Context, id string) (domain.ScreeningJob, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return domain.ScreeningJob{}, err
	}
	if job.Status != domain.JobStatusFailed {
		return domain.ScreeningJob{}, domain.ErrNotFailed
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(job.OrgID)); err != nil {
			return err
		}
		ok, err := s.repo.ResetForRerun(ctx, tx, job.OrgID, job.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFailed
		}
		return nil
	})
	if err != nil {
		return domain.ScreeningJob{}, err
	}

	s.writeAuditLog(ctx, job.OrgID, "screening.rerun", job.ID, map[string]any{
		"document_id": job.DocumentID.String(),
	})

	reloaded, err := s.repo.FindByID(ctx, s.db, job.OrgID, job.ID)
	if err != nil {
		return domain.ScreeningJob{}, err
	}
	return *reloaded, nil
}

func (s *service) load(ctx context.Context, id string) (*domain.ScreeningJob, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	jobID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	job, err := s.repo.FindByID(ctx, s.db, snowflake.ID(orgID), jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (s *service) writeAuditLog(ctx context.Context, orgID snowflake.ID, action string, jobID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := jobID.String()
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "screening_job", &targetID, metadata)
}
