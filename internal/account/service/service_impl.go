package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/account/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
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

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("account.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (domain.Account, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Account{}, domain.ErrInvalidOrganization
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		return domain.Account{}, domain.ErrInvalidCode
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Account{}, domain.ErrInvalidName
	}
	accountType := domain.AccountType(strings.ToLower(strings.TrimSpace(req.AccountType)))
	if !domain.ValidType(accountType) {
		return domain.Account{}, domain.ErrInvalidType
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "EUR"
	}

	existing, err := s.repo.FindByCode(ctx, s.db, orgID, code)
	if err != nil {
		return domain.Account{}, err
	}
	if existing != nil {
		return domain.Account{}, domain.ErrCodeTaken
	}

	now := s.clock.Now()
	account := domain.Account{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Code:        code,
		Name:        name,
		AccountType: accountType,
		Currency:    currency,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, &account); err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

func (s *service) List(ctx context.Context, req domain.ListRequest) ([]domain.Account, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	filter := domain.ListFilter{
		AccountType: domain.AccountType(strings.ToLower(strings.TrimSpace(req.AccountType))),
		IsActive:    req.IsActive,
	}
	return s.repo.List(ctx, s.db, orgID, filter)
}

func (s *service) GetByID(ctx context.Context, id string) (domain.Account, error) {
	account, err := s.load(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}
	return *account, nil
}

func (s *service) Update(ctx context.Context, req domain.UpdateRequest) (domain.Account, error) {
	account, err := s.load(ctx, req.ID)
	if err != nil {
		return domain.Account{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Account{}, domain.ErrInvalidName
		}
		account.Name = name
	}
	if req.IsActive != nil {
		account.IsActive = *req.IsActive
	}

	account.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, account); err != nil {
		return domain.Account{}, err
	}
	return *account, nil
}

// Deactivate retires an account without deleting it; posted journal lines
// keep referencing the row.
func (s *service) Deactivate(ctx context.Context, id string) (domain.Account, error) {
	account, err := s.load(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}

	account.IsActive = false
	account.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, account); err != nil {
		return domain.Account{}, err
	}
	return *account, nil
}

func (s *service) load(ctx context.Context, id string) (*domain.Account, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	accountID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || accountID == 0 {
		return nil, domain.ErrInvalidID
	}
	account, err := s.repo.FindByID(ctx, s.db, orgID, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account, nil
}
