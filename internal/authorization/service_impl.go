package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrganization = "organization"
	ObjectMember       = "member"
	ObjectAPIKey       = "api_key"
	ObjectAuditLog     = "audit"
	ObjectDocument     = "document"
	ObjectJournal      = "journal"
	ObjectInvoice      = "invoice"
	ObjectAccount      = "account"
	ObjectLead         = "lead"
	ObjectQuote        = "quote"
	ObjectScreening    = "screening"
	ObjectHSCode       = "hscode"
	ObjectDEB          = "deb"
	ObjectDashboard    = "dashboard"
)

const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
	ActionAdmin  = "admin"
)

var allObjects = []string{
	ObjectOrganization,
	ObjectMember,
	ObjectAPIKey,
	ObjectAuditLog,
	ObjectDocument,
	ObjectJournal,
	ObjectInvoice,
	ObjectAccount,
	ObjectLead,
	ObjectQuote,
	ObjectScreening,
	ObjectHSCode,
	ObjectDEB,
	ObjectDashboard,
}

// memberWritableObjects lists day-to-day business objects a plain member may
// mutate. Tenancy and credential objects stay owner/admin only.
var memberWritableObjects = []string{
	ObjectDocument,
	ObjectJournal,
	ObjectInvoice,
	ObjectAccount,
	ObjectLead,
	ObjectQuote,
	ObjectScreening,
	ObjectHSCode,
	ObjectDEB,
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, orgID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := s.resolveActor(ctx, actor, orgID)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, orgID, object, action)
		return err
	}

	domain := fmt.Sprintf("org:%s", orgID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorType, actorID, orgID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.auditGranted(ctx, actorType, actorID, orgID, object, action)
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string, orgID string) (string, string, string, *string, error) {
	if actor == "system" {
		roleName := "role:system"
		return actor, roleName, "system", nil, nil
	}
	if strings.HasPrefix(actor, "api_key:") {
		// API keys act with the system role; scoping narrows them later.
		apiKeyIDRaw := strings.TrimPrefix(actor, "api_key:")
		apiKeyID, err := snowflake.ParseString(apiKeyIDRaw)
		if err != nil || apiKeyID == 0 {
			return "", "", "", nil, ErrInvalidActor
		}
		apiKeyIDStr := apiKeyID.String()
		roleName := "role:system"
		return actor, roleName, "api_key", &apiKeyIDStr, nil
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", "", "", nil, ErrInvalidActor
		}
		parsedOrgID, err := snowflake.ParseString(orgID)
		userIDStr := userID.String()
		if err != nil || parsedOrgID == 0 {
			return actor, "", "user", &userIDStr, ErrInvalidOrganization
		}
		role, err := s.roleForUser(ctx, parsedOrgID, userID)
		if err != nil {
			return actor, "", "user", &userIDStr, err
		}
		roleName := fmt.Sprintf("role:%s", strings.ToLower(role))
		return actor, roleName, "user", &userIDStr, nil
	}
	return "", "", "", nil, ErrInvalidActor
}

func (s *ServiceImpl) roleForUser(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM organization_members
		 WHERE org_id = ? AND user_id = ?
		 LIMIT 1`,
		orgID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, orgID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, &parsedOrgID, actorType, actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"actor":   actorType,
		"org_id":  orgID,
		"subject": actorSubject(actorType, actorID),
	})
}

func (s *ServiceImpl) auditGranted(ctx context.Context, actorType string, actorID *string, orgID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, &parsedOrgID, actorType, actorID, "authorization.granted", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"actor":   actorType,
		"org_id":  orgID,
		"subject": actorSubject(actorType, actorID),
	})
}

func actorSubject(actorType string, actorID *string) string {
	switch actorType {
	case "system":
		return "system"
	case "user":
		if actorID != nil && strings.TrimSpace(*actorID) != "" {
			return fmt.Sprintf("user:%s", strings.TrimSpace(*actorID))
		}
	}
	return ""
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionDelete, ActionAdmin:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := make([][]string, 0, len(allObjects)*13)
	for _, object := range allObjects {
		for _, action := range []string{ActionRead, ActionWrite, ActionDelete, ActionAdmin} {
			policies = append(policies,
				[]string{"role:owner", object, action},
				[]string{"role:admin", object, action},
				[]string{"role:system", object, action},
			)
		}
		policies = append(policies, []string{"role:member", object, ActionRead})
	}
	for _, object := range memberWritableObjects {
		policies = append(policies, []string{"role:member", object, ActionWrite})
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
