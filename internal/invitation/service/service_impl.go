package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"github.com/zyalhor1961/corematch-web-sub006/internal/invitation/domain"
	orgdomain "github.com/zyalhor1961/corematch-web-sub006/internal/organization/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Repo    domain.Repository
	OrgRepo orgdomain.Repository
	Email   email.Provider
	Audit   auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	cfg      config.Config
	repo     domain.Repository
	orgRepo  orgdomain.Repository
	email    email.Provider
	auditSvc auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invitation.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		cfg:      p.Config,
		repo:     p.Repo,
		orgRepo:  p.OrgRepo,
		email:    p.Email,
		auditSvc: p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, invitedBy snowflake.ID, req domain.CreateInviteRequest) (*domain.InviteResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if invitedBy == 0 {
		return nil, domain.ErrInvalidInvite
	}

	address := strings.ToLower(strings.TrimSpace(req.Email))
	if address == "" || !strings.Contains(address, "@") {
		return nil, domain.ErrInvalidEmail
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = orgdomain.RoleMember
	}
	// Ownership is not grantable by invite.
	if role == orgdomain.RoleOwner || !orgdomain.ValidRole(role) {
		return nil, domain.ErrInvalidRole
	}

	memberID, err := s.userIDByEmail(ctx, address)
	if err != nil {
		return nil, err
	}
	if memberID != 0 {
		isMember, err := s.orgRepo.IsMember(ctx, orgID, memberID)
		if err != nil {
			return nil, err
		}
		if isMember {
			return nil, domain.ErrAlreadyMember
		}
	}

	pending, err := s.repo.HasPending(ctx, s.db, orgID, address)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, domain.ErrAlreadyInvited
	}

	now := s.clock.Now()
	invite := domain.Invitation{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Email:     address,
		Role:      role,
		Status:    domain.StatusPending,
		InvitedBy: invitedBy,
		ExpiresAt: now.Add(domain.DefaultTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &invite); err != nil {
		return nil, err
	}

	s.sendInviteMail(ctx, invite)
	s.writeAuditLog(ctx, orgID, "invite.created", invite.ID, map[string]any{
		"email": address,
		"role":  role,
	})

	resp := toResponse(invite)
	return &resp, nil
}

func (s *Service) List(ctx context.Context) ([]domain.InviteResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	invites, err := s.repo.ListByOrg(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.InviteResponse, 0, len(invites))
	for _, invite := range invites {
		resp = append(resp, toResponse(invite))
	}
	return resp, nil
}

// Accept joins the authenticated user to the inviting org. The caller is
// not yet a member, so the org scope comes from the invite row rather
// than the request context.
func (s *Service) Accept(ctx context.Context, userID snowflake.ID, userEmail string, inviteID string) error {
	if userID == 0 {
		return domain.ErrInvalidInvite
	}
	id, err := parseInviteID(inviteID)
	if err != nil {
		return err
	}

	invite, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if invite.Status != domain.StatusPending {
		return domain.ErrInviteNotPending
	}
	now := s.clock.Now()
	if now.After(invite.ExpiresAt) {
		return domain.ErrInviteExpired
	}
	if !strings.EqualFold(strings.TrimSpace(userEmail), invite.Email) {
		return domain.ErrEmailMismatch
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		isMember, err := s.orgRepo.WithTx(tx).IsMember(ctx, invite.OrgID, userID)
		if err != nil {
			return err
		}
		if isMember {
			return domain.ErrAlreadyMember
		}

		member := orgdomain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     invite.OrgID,
			UserID:    userID,
			Role:      invite.Role,
			CreatedAt: now,
		}
		if err := s.orgRepo.WithTx(tx).AddMember(ctx, member); err != nil {
			return err
		}

		accepted, err := s.repo.MarkAccepted(ctx, tx, invite.ID, now)
		if err != nil {
			return err
		}
		if !accepted {
			return domain.ErrInviteNotPending
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.writeAuditLog(ctx, invite.OrgID, "invite.accepted", invite.ID, map[string]any{
		"user_id": userID.String(),
		"role":    invite.Role,
	})
	return nil
}

func (s *Service) Revoke(ctx context.Context, inviteID string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	id, err := parseInviteID(inviteID)
	if err != nil {
		return err
	}

	invite, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if invite.OrgID != orgID {
		return domain.ErrInviteNotFound
	}

	revoked, err := s.repo.MarkRevoked(ctx, s.db, invite.ID, s.clock.Now())
	if err != nil {
		return err
	}
	if !revoked {
		return domain.ErrInviteNotPending
	}

	s.writeAuditLog(ctx, orgID, "invite.revoked", invite.ID, map[string]any{
		"email": invite.Email,
	})
	return nil
}

func (s *Service) sendInviteMail(ctx context.Context, invite domain.Invitation) {
	orgName, inviterName := s.inviteMailNames(ctx, invite)
	data := map[string]string{
		"OrgName":     orgName,
		"InviterName": inviterName,
		"Role":        invite.Role,
		"AcceptURL":   fmt.Sprintf("%s/invites/%s", s.cfg.AppBaseURL, invite.ID.String()),
		"ExpiresAt":   invite.ExpiresAt.Format("2006-01-02"),
	}
	subject := fmt.Sprintf("Invitation to join %s", orgName)
	if err := s.email.SendTemplate(ctx, []string{invite.Email}, "invitation", subject, data); err != nil {
		s.log.Warn("invite mail delivery failed",
			zap.String("invite_id", invite.ID.String()),
			zap.Error(err))
	}
}

func (s *Service) inviteMailNames(ctx context.Context, invite domain.Invitation) (string, string) {
	orgName := "your workspace"
	var orgRow struct {
		Name string `gorm:"column:name"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT name FROM organizations WHERE id = ?`, invite.OrgID,
	).Scan(&orgRow).Error; err == nil && strings.TrimSpace(orgRow.Name) != "" {
		orgName = orgRow.Name
	}

	inviterName := "A teammate"
	var userRow struct {
		Email       string `gorm:"column:email"`
		DisplayName string `gorm:"column:display_name"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT email, COALESCE(metadata ->> 'display_name', '') AS display_name
		 FROM users WHERE id = ?`, invite.InvitedBy,
	).Scan(&userRow).Error; err == nil {
		if strings.TrimSpace(userRow.DisplayName) != "" {
			inviterName = userRow.DisplayName
		} else if strings.TrimSpace(userRow.Email) != "" {
			inviterName = userRow.Email
		}
	}

	return orgName, inviterName
}

func (s *Service) userIDByEmail(ctx context.Context, address string) (snowflake.ID, error) {
	var row struct {
		ID snowflake.ID `gorm:"column:id"`
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT id FROM users WHERE lower(email) = ? LIMIT 1`,
		address,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (s *Service) writeAuditLog(ctx context.Context, orgID snowflake.ID, action string, inviteID snowflake.ID, metadata map[string]any) {
	targetID := inviteID.String()
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "invite", &targetID, metadata)
}

func parseInviteID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidInvite
	}
	return id, nil
}

func toResponse(invite domain.Invitation) domain.InviteResponse {
	return domain.InviteResponse{
		ID:        invite.ID.String(),
		OrgID:     invite.OrgID.String(),
		Email:     invite.Email,
		Role:      invite.Role,
		Status:    invite.Status,
		InvitedBy: invite.InvitedBy.String(),
		ExpiresAt: invite.ExpiresAt,
		CreatedAt: invite.CreatedAt,
	}
}
