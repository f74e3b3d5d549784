package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/zyalhor1961/corematch-web-sub006/internal/account/domain"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/journal/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// balanceTolerance bounds the accepted debit/credit drift. Stored amounts
// are rounded to cents, so anything past a cent is a real imbalance.
var balanceTolerance = decimal.New(1, -2)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Accounts accountdomain.Repository
	Audit    auditdomain.Service
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	accounts accountdomain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("journal.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		accounts: p.Accounts,
		auditSvc: p.Audit,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (domain.EntryDetail, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.EntryDetail{}, domain.ErrInvalidOrganization
	}

	entryDate, err := time.Parse(dateLayout, strings.TrimSpace(req.EntryDate))
	if err != nil {
		return domain.EntryDetail{}, domain.ErrInvalidDate
	}

	sourceType := strings.TrimSpace(req.SourceType)
	if sourceType == "" {
		sourceType = domain.SourceManual
	}
	switch sourceType {
	case domain.SourceManual, domain.SourceInvoice, domain.SourceDocument:
	default:
		return domain.EntryDetail{}, domain.ErrInvalidSource
	}

	if len(req.Lines) < 2 {
		return domain.EntryDetail{}, domain.ErrTooFewLines
	}

	now := s.clock.Now()
	entry := domain.JournalEntry{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		EntryDate:  entryDate,
		Status:     domain.StatusDraft,
		SourceType: sourceType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if ref := strings.TrimSpace(req.Reference); ref != "" {
		entry.Reference = &ref
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		entry.Description = &desc
	}
	if raw := strings.TrimSpace(req.SourceID); raw != "" {
		sourceID, err := snowflake.ParseString(raw)
		if err != nil || sourceID == 0 {
			return domain.EntryDetail{}, domain.ErrInvalidSource
		}
		entry.SourceID = &sourceID
	}

	lines := make([]*domain.JournalLine, 0, len(req.Lines))
	accountIDs := make([]snowflake.ID, 0, len(req.Lines))
	seen := make(map[snowflake.ID]bool, len(req.Lines))
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero

	for i, in := range req.Lines {
		accountID, err := snowflake.ParseString(strings.TrimSpace(in.AccountID))
		if err != nil || accountID == 0 {
			return domain.EntryDetail{}, fmt.Errorf("%w: %s", domain.ErrUnknownAccount, in.AccountID)
		}
		if in.Amount.Sign() < 0 {
			return domain.EntryDetail{}, domain.ErrNegativeAmount
		}

		line := domain.JournalLine{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			EntryID:   entry.ID,
			AccountID: accountID,
			Position:  i,
		}
		switch strings.ToLower(strings.TrimSpace(in.Direction)) {
		case domain.DirectionDebit:
			line.Debit = in.Amount.Round(2)
			totalDebit = totalDebit.Add(line.Debit)
		case domain.DirectionCredit:
			line.Credit = in.Amount.Round(2)
			totalCredit = totalCredit.Add(line.Credit)
		default:
			return domain.EntryDetail{}, domain.ErrInvalidDirection
		}
		if desc := strings.TrimSpace(in.Description); desc != "" {
			line.Description = &desc
		}

		lines = append(lines, &line)
		if !seen[accountID] {
			seen[accountID] = true
			accountIDs = append(accountIDs, accountID)
		}
	}

	if totalDebit.Sub(totalCredit).Abs().GreaterThan(balanceTolerance) {
		return domain.EntryDetail{}, fmt.Errorf("%w: debits=%s credits=%s",
			domain.ErrUnbalanced, totalDebit.StringFixed(2), totalCredit.StringFixed(2))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		if err := s.requireActiveAccounts(ctx, tx, orgID, accountIDs); err != nil {
			return err
		}
		if err := s.repo.InsertEntry(ctx, tx, &entry); err != nil {
			return err
		}
		return s.repo.InsertLines(ctx, tx, lines)
	})
	if err != nil {
		return domain.EntryDetail{}, err
	}

	s.writeAuditLog(ctx, orgID, "journal.create", entry.ID, map[string]any{
		"lines":   len(lines),
		"debits":  totalDebit.StringFixed(2),
		"credits": totalCredit.StringFixed(2),
	})

	detail := domain.EntryDetail{JournalEntry: entry}
	for _, line := range lines {
		detail.Lines = append(detail.Lines, *line)
	}
	return detail, nil
}

func (s *service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
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
		Status:     domain.EntryStatus(strings.TrimSpace(req.Status)),
		SourceType: strings.TrimSpace(req.SourceType),
	}
	if from := strings.TrimSpace(req.DateFrom); from != "" {
		parsed, err := time.Parse(dateLayout, from)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidDate
		}
		filter.DateFrom = &parsed
	}
	if to := strings.TrimSpace(req.DateTo); to != "" {
		parsed, err := time.Parse(dateLayout, to)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidDate
		}
		filter.DateTo = &parsed
	}

	items, err := s.repo.ListEntries(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.JournalEntry) string {
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

	resp := domain.ListResponse{Entries: make([]domain.JournalEntry, 0, len(items))}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	for _, item := range items {
		resp.Entries = append(resp.Entries, *item)
	}
	return resp, nil
}

func (s *service) GetByID(ctx context.Context, id string) (domain.EntryDetail, error) {
	orgID, entry, err := s.load(ctx, id)
	if err != nil {
		return domain.EntryDetail{}, err
	}
	lines, err := s.repo.ListLines(ctx, s.db, orgID, entry.ID)
	if err != nil {
		return domain.EntryDetail{}, err
	}
	return domain.EntryDetail{JournalEntry: *entry, Lines: lines}, nil
}

func (s *service) Post(ctx context.Context, id string) (domain.JournalEntry, error) {
	orgID, entry, err := s.load(ctx, id)
	if err != nil {
		return domain.JournalEntry{}, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		posted, err := s.repo.MarkPosted(ctx, tx, orgID, entry.ID, now)
		if err != nil {
			return err
		}
		if !posted {
			return domain.ErrStatusConflict
		}
		return nil
	})
	if err != nil {
		return domain.JournalEntry{}, err
	}

	entry.Status = domain.StatusPosted
	entry.PostedAt = &now
	entry.UpdatedAt = now

	s.writeAuditLog(ctx, orgID, "journal.post", entry.ID, nil)
	return *entry, nil
}

// Reverse keeps posted history immutable: the original flips to reversed
// and a mirrored entry with debits and credits swapped is posted in the
// same transaction.
func (s *service) Reverse(ctx context.Context, id string) (domain.EntryDetail, error) {
	orgID, entry, err := s.load(ctx, id)
	if err != nil {
		return domain.EntryDetail{}, err
	}
	if entry.Status != domain.StatusPosted {
		return domain.EntryDetail{}, domain.ErrStatusConflict
	}

	lines, err := s.repo.ListLines(ctx, s.db, orgID, entry.ID)
	if err != nil {
		return domain.EntryDetail{}, err
	}

	now := s.clock.Now()
	mirror, mirrorLines := domain.BuildReversal(entry, lines, s.genID, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		reversed, err := s.repo.MarkReversed(ctx, tx, orgID, entry.ID, mirror.ID, now)
		if err != nil {
			return err
		}
		if !reversed {
			return domain.ErrStatusConflict
		}
		if err := s.repo.InsertEntry(ctx, tx, mirror); err != nil {
			return err
		}
		return s.repo.InsertLines(ctx, tx, mirrorLines)
	})
	if err != nil {
		return domain.EntryDetail{}, err
	}

	s.writeAuditLog(ctx, orgID, "journal.reverse", entry.ID, map[string]any{
		"reversal_id": mirror.ID.String(),
	})

	detail := domain.EntryDetail{JournalEntry: *mirror}
	for _, line := range mirrorLines {
		detail.Lines = append(detail.Lines, *line)
	}
	return detail, nil
}

func (s *service) requireActiveAccounts(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) error {
	accounts, err := s.accounts.FindActiveByIDs(ctx, db, orgID, ids)
	if err != nil {
		return err
	}
	found := make(map[snowflake.ID]bool, len(accounts))
	for _, a := range accounts {
		found[a.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, id)
		}
	}
	return nil
}

func (s *service) load(ctx context.Context, id string) (snowflake.ID, *domain.JournalEntry, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, nil, domain.ErrInvalidOrganization
	}
	entryID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || entryID == 0 {
		return 0, nil, domain.ErrInvalidID
	}
	entry, err := s.repo.FindEntryByID(ctx, s.db, orgID, entryID)
	if err != nil {
		return 0, nil, err
	}
	if entry == nil {
		return 0, nil, domain.ErrNotFound
	}
	return orgID, entry, nil
}

func (s *service) writeAuditLog(ctx context.Context, orgID snowflake.ID, action string, entryID snowflake.ID, metadata map[string]any) {
	targetID := entryID.String()
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "journal_entry", &targetID, metadata)
}
