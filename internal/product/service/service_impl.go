package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/internal/product/domain"
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
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	filter := domain.ListRequest{
		Name:    strings.TrimSpace(req.Name),
		SKU:     strings.TrimSpace(req.SKU),
		Active:  req.Active,
		SortBy:  strings.TrimSpace(req.SortBy),
		OrderBy: strings.TrimSpace(req.OrderBy),
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, toResponse(&item))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		return nil, domain.ErrInvalidSKU
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.UnitPrice.Sign() < 0 {
		return nil, domain.ErrInvalidPrice
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "EUR"
	}

	existing, err := s.repo.FindBySKU(ctx, s.db, orgID, sku)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrSKUTaken
	}

	var descriptionPtr *string
	if req.Description != nil {
		if description := strings.TrimSpace(*req.Description); description != "" {
			descriptionPtr = &description
		}
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		SKU:         sku,
		Name:        name,
		Description: descriptionPtr,
		UnitPrice:   req.UnitPrice,
		Currency:    currency,
		VATRate:     req.VATRate,
		HSCode:      req.HSCode,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, s.db, p); err != nil {
		return nil, err
	}

	resp := toResponse(p)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	item, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		item.Name = name
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			item.Description = nil
		} else {
			item.Description = &description
		}
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.Sign() < 0 {
			return nil, domain.ErrInvalidPrice
		}
		item.UnitPrice = *req.UnitPrice
	}
	if req.VATRate != nil {
		item.VATRate = req.VATRate
	}
	if req.HSCode != nil {
		code := strings.TrimSpace(*req.HSCode)
		if code == "" {
			item.HSCode = nil
		} else {
			item.HSCode = &code
		}
	}
	if req.Active != nil {
		item.IsActive = *req.Active
	}

	item.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}

	resp := toResponse(item)
	return &resp, nil
}

// Archive deactivates the product; existing invoice and quote lines keep
// their denormalized copy of it.
func (s *Service) Archive(ctx context.Context, id string) (*domain.Response, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	item.IsActive = false
	item.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}

	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) load(ctx context.Context, id string) (*domain.Product, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || productID == 0 {
		return nil, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, orgID, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func toResponse(p *domain.Product) domain.Response {
	return domain.Response{
		ID:             p.ID.String(),
		OrganizationID: p.OrgID.String(),
		SKU:            p.SKU,
		Name:           p.Name,
		Description:    p.Description,
		UnitPrice:      p.UnitPrice,
		Currency:       p.Currency,
		VATRate:        p.VATRate,
		HSCode:         p.HSCode,
		Active:         p.IsActive,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
