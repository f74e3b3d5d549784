package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/lead/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/search"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
	Search search.Provider
	Audit  auditdomain.Service
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	search   search.Provider
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("lead.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		search:   p.Search,
		auditSvc: p.Audit,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (domain.Lead, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Lead{}, domain.ErrInvalidOrganization
	}

	company := strings.TrimSpace(req.CompanyName)
	if company == "" {
		return domain.Lead{}, domain.ErrInvalidCompany
	}

	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return domain.Lead{}, domain.ErrInvalidEmail
	}

	score := 0
	if req.Score != nil {
		if *req.Score < 0 || *req.Score > 100 {
			return domain.Lead{}, domain.ErrInvalidScore
		}
		score = *req.Score
	}

	now := s.clock.Now()
	lead := domain.Lead{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		CompanyName: company,
		ContactName: optionalText(req.ContactName),
		Email:       optionalText(email),
		Phone:       optionalText(req.Phone),
		Website:     optionalText(req.Website),
		CountryCode: optionalText(strings.ToUpper(req.CountryCode)),
		Source:      domain.SourceManual,
		Status:      domain.StatusNew,
		Score:       score,
		Notes:       optionalText(req.Notes),
		Metadata:    datatypes.JSONMap{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, &lead)
	})
	if err != nil {
		return domain.Lead{}, err
	}

	s.writeAuditLog(ctx, orgID, "lead.create", lead.ID, map[string]any{
		"company_name": lead.CompanyName,
		"source":       string(lead.Source),
	})

	return lead, nil
}

func (s *service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListFilter{
		Status: domain.LeadStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Source: domain.LeadSource(strings.ToLower(strings.TrimSpace(req.Source))),
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(lead *domain.Lead) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        lead.ID.String(),
			CreatedAt: lead.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	resp := domain.ListResponse{Leads: make([]domain.Lead, 0, len(items))}
	for _, item := range items {
		if item == nil {
			continue
		}
		resp.Leads = append(resp.Leads, *item)
	}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *service) GetByID(ctx context.Context, id string) (domain.Lead, error) {
	_, lead, err := s.load(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	return *lead, nil
}

func (s *service) Update(ctx context.Context, req domain.UpdateRequest) (domain.Lead, error) {
	orgID, lead, err := s.load(ctx, req.ID)
	if err != nil {
		return domain.Lead{}, err
	}

	if req.CompanyName != nil {
		company := strings.TrimSpace(*req.CompanyName)
		if company == "" {
			return domain.Lead{}, domain.ErrInvalidCompany
		}
		lead.CompanyName = company
	}
	if req.ContactName != nil {
		lead.ContactName = optionalText(*req.ContactName)
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != "" && !strings.Contains(email, "@") {
			return domain.Lead{}, domain.ErrInvalidEmail
		}
		lead.Email = optionalText(email)
	}
	if req.Phone != nil {
		lead.Phone = optionalText(*req.Phone)
	}
	if req.Website != nil {
		lead.Website = optionalText(*req.Website)
	}
	if req.CountryCode != nil {
		lead.CountryCode = optionalText(strings.ToUpper(*req.CountryCode))
	}
	if req.Score != nil {
		if *req.Score < 0 || *req.Score > 100 {
			return domain.Lead{}, domain.ErrInvalidScore
		}
		lead.Score = *req.Score
	}
	if req.Notes != nil {
		lead.Notes = optionalText(*req.Notes)
	}
	lead.UpdatedAt = s.clock.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		return s.repo.Update(ctx, tx, lead)
	})
	if err != nil {
		return domain.Lead{}, err
	}

	s.writeAuditLog(ctx, orgID, "lead.update", lead.ID, nil)

	return *lead, nil
}

func (s *service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.Lead, error) {
	orgID, lead, err := s.load(ctx, req.ID)
	if err != nil {
		return domain.Lead{}, err
	}

	status := domain.LeadStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		return domain.Lead{}, domain.ErrInvalidStatus
	}
	if lead.Status.Terminal() {
		return domain.Lead{}, domain.ErrTerminalStatus
	}

	now := s.clock.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		ok, err := s.repo.UpdateStatus(ctx, tx, orgID, lead.ID, status, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrTerminalStatus
		}
		return nil
	})
	if err != nil {
		return domain.Lead{}, err
	}

	previous := lead.Status
	lead.Status = status
	lead.UpdatedAt = now

	s.writeAuditLog(ctx, orgID, "lead.status", lead.ID, map[string]any{
		"from": string(previous),
		"to":   string(status),
	})

	return *lead, nil
}

func (s *service) load(ctx context.Context, id string) (snowflake.ID, *domain.Lead, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, nil, domain.ErrInvalidOrganization
	}

	leadID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || leadID == 0 {
		return 0, nil, domain.ErrInvalidID
	}

	lead, err := s.repo.FindByID(ctx, s.db, orgID, leadID)
	if err != nil {
		return 0, nil, err
	}
	if lead == nil {
		return 0, nil, domain.ErrNotFound
	}
	return orgID, lead, nil
}

func (s *service) writeAuditLog(ctx context.Context, orgID snowflake.ID, action string, leadID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	var targetID *string
	if leadID != 0 {
		value := leadID.String()
		targetID = &value
	}
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "lead", targetID, metadata)
}

func optionalText(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
