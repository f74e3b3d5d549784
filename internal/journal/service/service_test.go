package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/zyalhor1961/corematch-web-sub006/internal/account/domain"
	accountrepo "github.com/zyalhor1961/corematch-web-sub006/internal/account/repository"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/journal/domain"
	journalrepo "github.com/zyalhor1961/corematch-web-sub006/internal/journal/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testOrgID = snowflake.ID(7001)

type noopAudit struct{}

func (noopAudit) AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	return nil
}

func (noopAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type harness struct {
	db       *gorm.DB
	svc      domain.Service
	repo     domain.Repository
	accounts accountdomain.Repository
	clock    *clock.FakeClock
	genID    *snowflake.Node

	receivable snowflake.ID
	sales      snowflake.ID
	vat        snowflake.ID
	inactive   snowflake.ID
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&accountdomain.Account{}, &domain.JournalEntry{}, &domain.JournalLine{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	h := &harness{
		db:       dbConn,
		repo:     journalrepo.Provide(),
		accounts: accountrepo.Provide(),
		clock:    clock.NewFakeClock(time.Date(2025, 7, 31, 10, 30, 0, 0, time.UTC)),
		genID:    node,
	}

	h.receivable = h.seedAccount(t, "411", "Clients", accountdomain.TypeAsset, true)
	h.sales = h.seedAccount(t, "707", "Ventes", accountdomain.TypeRevenue, true)
	h.vat = h.seedAccount(t, "44571", "TVA collectee", accountdomain.TypeLiability, true)
	h.inactive = h.seedAccount(t, "999", "Retired", accountdomain.TypeExpense, false)

	h.svc = New(Params{
		DB:       dbConn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    h.clock,
		Repo:     h.repo,
		Accounts: h.accounts,
		Audit:    noopAudit{},
	})
	return h
}

func (h *harness) seedAccount(t *testing.T, code, name string, accountType accountdomain.AccountType, active bool) snowflake.ID {
	t.Helper()

	account := accountdomain.Account{
		ID:          h.genID.Generate(),
		OrgID:       testOrgID,
		Code:        code,
		Name:        name,
		AccountType: accountType,
		Currency:    "EUR",
		IsActive:    active,
		CreatedAt:   h.clock.Now(),
		UpdatedAt:   h.clock.Now(),
	}
	if err := h.accounts.Insert(context.Background(), h.db, &account); err != nil {
		t.Fatalf("failed to seed account %s: %v", code, err)
	}
	return account.ID
}

func orgCtx() context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(testOrgID))
}

func balancedRequest(h *harness) domain.CreateRequest {
	return domain.CreateRequest{
		EntryDate: "2025-07-31",
		Reference: "FAC-2025-0001",
		Lines: []domain.LineInput{
			{AccountID: h.receivable.String(), Direction: "debit", Amount: decimal.RequireFromString("120.00")},
			{AccountID: h.sales.String(), Direction: "credit", Amount: decimal.RequireFromString("100.00")},
			{AccountID: h.vat.String(), Direction: "credit", Amount: decimal.RequireFromString("20.00")},
		},
	}
}

func TestCreateBalancedEntry(t *testing.T) {
	h := newHarness(t)

	detail, err := h.svc.Create(orgCtx(), balancedRequest(h))
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if detail.Status != domain.StatusDraft {
		t.Errorf("expected draft status, got %s", detail.Status)
	}
	if len(detail.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(detail.Lines))
	}
	if !detail.Lines[0].Debit.Equal(decimal.RequireFromString("120.00")) {
		t.Errorf("unexpected debit %s", detail.Lines[0].Debit)
	}

	stored, err := h.repo.FindEntryByID(context.Background(), h.db, testOrgID, detail.ID)
	if err != nil || stored == nil {
		t.Fatalf("expected persisted entry, got %v err %v", stored, err)
	}
	lines, err := h.repo.ListLines(context.Background(), h.db, testOrgID, detail.ID)
	if err != nil {
		t.Fatalf("failed to list lines: %v", err)
	}
	if len(lines) != 3 {
		t.Errorf("expected 3 persisted lines, got %d", len(lines))
	}
}

func TestCreateRejectsImbalance(t *testing.T) {
	h := newHarness(t)

	req := balancedRequest(h)
	req.Lines[2].Amount = decimal.RequireFromString("19.98")

	_, err := h.svc.Create(orgCtx(), req)
	if !errors.Is(err, domain.ErrUnbalanced) {
		t.Fatalf("expected ErrUnbalanced, got %v", err)
	}
	if !strings.Contains(err.Error(), "debits=120.00") || !strings.Contains(err.Error(), "credits=119.98") {
		t.Errorf("expected both totals in error, got %q", err.Error())
	}
}

func TestCreateAcceptsPennyDrift(t *testing.T) {
	h := newHarness(t)

	req := balancedRequest(h)
	req.Lines[2].Amount = decimal.RequireFromString("19.99")

	if _, err := h.svc.Create(orgCtx(), req); err != nil {
		t.Fatalf("expected 0.01 drift to pass, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)

	if _, err := h.svc.Create(context.Background(), balancedRequest(h)); !errors.Is(err, domain.ErrInvalidOrganization) {
		t.Errorf("expected ErrInvalidOrganization, got %v", err)
	}

	req := balancedRequest(h)
	req.EntryDate = "31/07/2025"
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}

	req = balancedRequest(h)
	req.Lines = req.Lines[:1]
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrTooFewLines) {
		t.Errorf("expected ErrTooFewLines, got %v", err)
	}

	req = balancedRequest(h)
	req.Lines[0].Direction = "sideways"
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidDirection) {
		t.Errorf("expected ErrInvalidDirection, got %v", err)
	}

	req = balancedRequest(h)
	req.Lines[0].Amount = decimal.RequireFromString("-120.00")
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrNegativeAmount) {
		t.Errorf("expected ErrNegativeAmount, got %v", err)
	}

	req = balancedRequest(h)
	req.SourceType = "teleport"
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidSource) {
		t.Errorf("expected ErrInvalidSource, got %v", err)
	}
}

func TestCreateRejectsUnknownAndInactiveAccounts(t *testing.T) {
	h := newHarness(t)

	req := balancedRequest(h)
	req.Lines[0].AccountID = snowflake.ID(424242).String()
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrUnknownAccount) {
		t.Errorf("expected ErrUnknownAccount for missing account, got %v", err)
	}

	req = balancedRequest(h)
	req.Lines[0].AccountID = h.inactive.String()
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrUnknownAccount) {
		t.Errorf("expected ErrUnknownAccount for inactive account, got %v", err)
	}
}

func TestPostEntry(t *testing.T) {
	h := newHarness(t)

	detail, err := h.svc.Create(orgCtx(), balancedRequest(h))
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	posted, err := h.svc.Post(orgCtx(), detail.ID.String())
	if err != nil {
		t.Fatalf("failed to post: %v", err)
	}
	if posted.Status != domain.StatusPosted {
		t.Errorf("expected posted status, got %s", posted.Status)
	}
	if posted.PostedAt == nil {
		t.Error("expected posted_at to be set")
	}

	if _, err := h.svc.Post(orgCtx(), detail.ID.String()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict on double post, got %v", err)
	}
}

func TestReverseMirrorsLines(t *testing.T) {
	h := newHarness(t)

	detail, err := h.svc.Create(orgCtx(), balancedRequest(h))
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if _, err := h.svc.Post(orgCtx(), detail.ID.String()); err != nil {
		t.Fatalf("failed to post: %v", err)
	}

	mirror, err := h.svc.Reverse(orgCtx(), detail.ID.String())
	if err != nil {
		t.Fatalf("failed to reverse: %v", err)
	}
	if mirror.Status != domain.StatusPosted {
		t.Errorf("expected mirror to be posted, got %s", mirror.Status)
	}
	if mirror.SourceType != domain.SourceReversal {
		t.Errorf("expected reversal source, got %s", mirror.SourceType)
	}
	if mirror.SourceID == nil || *mirror.SourceID != detail.ID {
		t.Errorf("expected source_id %s, got %v", detail.ID, mirror.SourceID)
	}
	if mirror.Reference == nil || *mirror.Reference != "REV-FAC-2025-0001" {
		t.Errorf("unexpected mirror reference %v", mirror.Reference)
	}
	if len(mirror.Lines) != 3 {
		t.Fatalf("expected 3 mirror lines, got %d", len(mirror.Lines))
	}
	// First original line was a 120.00 debit; the mirror credits it.
	if !mirror.Lines[0].Credit.Equal(decimal.RequireFromString("120.00")) || !mirror.Lines[0].Debit.IsZero() {
		t.Errorf("expected swapped legs, got debit=%s credit=%s", mirror.Lines[0].Debit, mirror.Lines[0].Credit)
	}

	original, err := h.repo.FindEntryByID(context.Background(), h.db, testOrgID, detail.ID)
	if err != nil || original == nil {
		t.Fatalf("failed to reload original: %v", err)
	}
	if original.Status != domain.StatusReversed {
		t.Errorf("expected original reversed, got %s", original.Status)
	}
	if original.ReversedEntryID == nil || *original.ReversedEntryID != mirror.ID {
		t.Errorf("expected reversed_entry_id %s, got %v", mirror.ID, original.ReversedEntryID)
	}
}

func TestReverseRequiresPosted(t *testing.T) {
	h := newHarness(t)

	detail, err := h.svc.Create(orgCtx(), balancedRequest(h))
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	if _, err := h.svc.Reverse(orgCtx(), detail.ID.String()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict for draft reverse, got %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	h := newHarness(t)

	first, err := h.svc.Create(orgCtx(), balancedRequest(h))
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	h.clock.Advance(time.Second)
	if _, err := h.svc.Create(orgCtx(), balancedRequest(h)); err != nil {
		t.Fatalf("failed to create second: %v", err)
	}
	if _, err := h.svc.Post(orgCtx(), first.ID.String()); err != nil {
		t.Fatalf("failed to post: %v", err)
	}

	resp, err := h.svc.List(orgCtx(), domain.ListRequest{Status: "posted"})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("expected 1 posted entry, got %d", len(resp.Entries))
	}
	if resp.Entries[0].ID != first.ID {
		t.Errorf("unexpected entry %s", resp.Entries[0].ID)
	}

	resp, err = h.svc.List(orgCtx(), domain.ListRequest{PageSize: 1})
	if err != nil {
		t.Fatalf("failed to list page: %v", err)
	}
	if len(resp.Entries) != 1 || !resp.HasMore || resp.NextPageToken == "" {
		t.Errorf("expected single page with more, got %d entries has_more=%v", len(resp.Entries), resp.HasMore)
	}
}

func TestGetByIDReturnsLines(t *testing.T) {
	h := newHarness(t)

	detail, err := h.svc.Create(orgCtx(), balancedRequest(h))
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	got, err := h.svc.GetByID(orgCtx(), detail.ID.String())
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got.ID != detail.ID || len(got.Lines) != 3 {
		t.Errorf("unexpected detail id=%s lines=%d", got.ID, len(got.Lines))
	}

	if _, err := h.svc.GetByID(orgCtx(), "bogus"); !errors.Is(err, domain.ErrInvalidID) {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
	if _, err := h.svc.GetByID(orgCtx(), snowflake.ID(31337).String()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
