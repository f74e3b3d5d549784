package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/zyalhor1961/corematch-web-sub006/internal/alert/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/email"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/slack"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Repo    alertdomain.Repository
	Email   email.Provider
	Slack   slack.Provider
	Metrics *telemetry.Metrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	cfg     config.Config
	repo    alertdomain.Repository
	email   email.Provider
	slack   slack.Provider
	metrics *telemetry.Metrics
}

func NewService(p Params) alertdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("alert.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		cfg:     p.Config,
		repo:    p.Repo,
		email:   p.Email,
		slack:   p.Slack,
		metrics: p.Metrics,
	}
}

func (s *Service) Emit(ctx context.Context, req alertdomain.EmitRequest) error {
	kind := strings.TrimSpace(req.Kind)
	if kind == "" {
		return alertdomain.ErrInvalidKind
	}

	orgID := req.OrgID
	if orgID == 0 {
		if ctxOrg, ok := orgcontext.OrgIDFromContext(ctx); ok {
			orgID = ctxOrg
		}
	}
	if orgID == 0 {
		return alertdomain.ErrInvalidOrganization
	}

	severity := req.Severity
	if severity == "" {
		severity = alertdomain.SeverityWarning
	}

	now := s.clock.Now()
	entry := alertdomain.Alert{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Kind:      kind,
		Severity:  severity,
		Message:   strings.TrimSpace(req.Message),
		Metadata:  datatypes.JSONMap(req.Metadata),
		CreatedAt: now,
	}
	if entry.Metadata == nil {
		entry.Metadata = datatypes.JSONMap{}
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Error("failed to record alert", zap.String("kind", kind), zap.Error(err))
		return err
	}
	s.metrics.RecordAlert(kind)

	// Delivery is best effort; a down channel must not fail the caller.
	s.deliver(ctx, entry)
	return nil
}

func (s *Service) deliver(ctx context.Context, entry alertdomain.Alert) {
	text := fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(entry.Severity)), entry.Kind, entry.Message)
	if err := s.slack.PostMessage(ctx, text); err != nil {
		s.log.Warn("slack alert delivery failed", zap.String("kind", entry.Kind), zap.Error(err))
	}

	if s.cfg.Alert.Email == "" {
		return
	}
	data := map[string]any{
		"Kind":      entry.Kind,
		"Severity":  strings.ToUpper(string(entry.Severity)),
		"Message":   entry.Message,
		"Metadata":  map[string]any(entry.Metadata),
		"CreatedAt": entry.CreatedAt.Format(time.RFC3339),
	}
	subject := fmt.Sprintf("[CoreMatch] %s alert: %s", entry.Severity, entry.Kind)
	if err := s.email.SendTemplate(ctx, []string{s.cfg.Alert.Email}, "alert", subject, data); err != nil {
		s.log.Warn("email alert delivery failed", zap.String("kind", entry.Kind), zap.Error(err))
	}
}

func (s *Service) List(ctx context.Context, req alertdomain.ListRequest) (alertdomain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return alertdomain.ListResponse{}, alertdomain.ErrInvalidOrganization
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, orgID, alertdomain.ListFilter{
		Kind:           req.Kind,
		Unacknowledged: req.Unacknowledged,
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return alertdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *alertdomain.Alert) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	alerts := make([]alertdomain.Alert, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		alerts = append(alerts, *item)
	}

	resp := alertdomain.ListResponse{Alerts: alerts}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Acknowledge(ctx context.Context, id string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return alertdomain.ErrInvalidOrganization
	}

	alertID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || alertID == 0 {
		return alertdomain.ErrInvalidID
	}

	updated, err := s.repo.Acknowledge(ctx, s.db, orgID, alertID, s.clock.Now())
	if err != nil {
		return err
	}
	if updated {
		return nil
	}

	// Either the alert does not exist or it was already acknowledged;
	// re-acknowledging is a no-op.
	existing, err := s.repo.FindByID(ctx, s.db, orgID, alertID)
	if err != nil {
		return err
	}
	if existing == nil {
		return alertdomain.ErrNotFound
	}
	return nil
}
