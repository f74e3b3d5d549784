package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/zyalhor1961/corematch-web-sub006/internal/organization/domain"
	referencedomain "github.com/zyalhor1961/corematch-web-sub006/internal/reference/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/seed"
	"gorm.io/gorm"
)

type service struct {
	db    *gorm.DB
	repo  domain.Repository
	ref   referencedomain.Repository
	genID *snowflake.Node
}

func NewService(db *gorm.DB, repo domain.Repository, ref referencedomain.Repository, genID *snowflake.Node) domain.Service {
	return &service{
		db:    db,
		repo:  repo,
		ref:   ref,
		genID: genID,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	countryCode := strings.TrimSpace(req.CountryCode)
	if countryCode == "" {
		return nil, domain.ErrInvalidCountry
	}

	timezoneName := strings.TrimSpace(req.TimezoneName)
	if timezoneName == "" {
		return nil, domain.ErrInvalidTimezone
	}

	countryOK, err := s.countryExists(ctx, countryCode)
	if err != nil {
		return nil, err
	}
	if !countryOK {
		return nil, domain.ErrInvalidCountry
	}

	timezoneOK, err := s.timezoneAllowed(ctx, countryCode, timezoneName)
	if err != nil {
		return nil, err
	}
	if !timezoneOK {
		return nil, domain.ErrInvalidTimezone
	}

	now := time.Now().UTC()
	orgID := s.genID.Generate()
	org := domain.Organization{
		ID:           orgID,
		Name:         name,
		Slug:         slug.Make(name),
		CountryCode:  countryCode,
		TimezoneName: timezoneName,
		CreatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}

		member := domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			UserID:    userID,
			Role:      domain.RoleOwner,
			CreatedAt: now,
		}

		if err := repo.AddMember(ctx, member); err != nil {
			return err
		}

		// A fresh org needs its working set before the first document
		// or invoice lands: number sequences, chart of accounts, VAT.
		return seed.EnsureOrgDefaults(ctx, tx, s.genID, orgID)
	})
	if err != nil {
		return nil, err
	}

	return &domain.OrganizationResponse{
		ID:           orgID.String(),
		Name:         name,
		Slug:         org.Slug,
		CountryCode:  countryCode,
		TimezoneName: timezoneName,
	}, nil
}

func (s *service) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListResponseItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.OrganizationListResponseItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*domain.OrganizationResponse, error) {
	orgID, err := parseOrgID(id)
	if err != nil {
		return nil, err
	}

	var org domain.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", orgID).Error; err != nil {
		return nil, err
	}

	return &domain.OrganizationResponse{
		ID:           org.ID.String(),
		Name:         org.Name,
		Slug:         org.Slug,
		CountryCode:  org.CountryCode,
		TimezoneName: org.TimezoneName,
	}, nil
}

func (s *service) ListMembers(ctx context.Context, orgID string) ([]domain.MemberResponse, error) {
	parsed, err := parseOrgID(orgID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListMembers(ctx, parsed)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.MemberResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.MemberResponse{
			ID:          item.ID.String(),
			UserID:      item.UserID.String(),
			Email:       item.Email,
			DisplayName: item.DisplayName,
			Role:        item.Role,
			CreatedAt:   item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) MemberRole(ctx context.Context, orgID string, userID snowflake.ID) (string, error) {
	if userID == 0 {
		return "", domain.ErrInvalidUser
	}
	parsed, err := parseOrgID(orgID)
	if err != nil {
		return "", err
	}
	return s.repo.MemberRole(ctx, parsed, userID)
}

func parseOrgID(raw string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidOrganization
	}
	return id, nil
}

func (s *service) countryExists(ctx context.Context, code string) (bool, error) {
	countries, err := s.ref.ListCountries(ctx)
	if err != nil {
		return false, err
	}
	for _, country := range countries {
		if country.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) timezoneAllowed(ctx context.Context, countryCode, timezoneName string) (bool, error) {
	timezones, err := s.ref.ListTimezonesByCountry(ctx, countryCode)
	if err != nil {
		return false, err
	}
	for _, tz := range timezones {
		if tz.Name == timezoneName {
			return true, nil
		}
	}
	return false, nil
}
