package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/hscode/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/hscode/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/llm"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testOrgID = snowflake.ID(9001)

type noopAudit struct{}

func (noopAudit) AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	return nil
}

func (noopAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type fakeLLM struct {
	reply string
	err   error
	calls int
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Model() string { return "fake-model" }

type harness struct {
	db    *gorm.DB
	svc   domain.Service
	repo  domain.Repository
	llm   *fakeLLM
	clock *clock.FakeClock
	genID *snowflake.Node
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&domain.HSCode{}, &domain.Usage{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(6)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	h := &harness{
		db:    dbConn,
		repo:  repository.Provide(),
		llm:   &fakeLLM{reply: `{"code": "8471.30.00", "confidence": 0.82, "reasoning": "Portable computer"}`},
		clock: clock.NewFakeClock(time.Date(2025, 7, 31, 10, 30, 0, 0, time.UTC)),
		genID: node,
	}
	h.svc = New(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: h.clock,
		Repo:  h.repo,
		LLM:   h.llm,
		Audit: noopAudit{},
	})
	return h
}

func orgCtx() context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(testOrgID))
}

func orgCtxFor(id snowflake.ID) context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(id))
}

func (h *harness) seedRow(t *testing.T, orgID snowflake.ID, code, description, keywords string, source domain.Source) *domain.HSCode {
	t.Helper()

	now := h.clock.Now()
	row := &domain.HSCode{
		ID:          h.genID.Generate(),
		OrgID:       orgID,
		Code:        code,
		Description: description,
		Keywords:    keywords,
		Source:      source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.repo.Insert(context.Background(), h.db, row); err != nil {
		t.Fatalf("failed to insert hs code: %v", err)
	}
	return row
}

func (h *harness) usageCount(t *testing.T) int64 {
	t.Helper()

	var n int64
	if err := h.db.Model(&domain.Usage{}).Count(&n).Error; err != nil {
		t.Fatalf("failed to count usage: %v", err)
	}
	return n
}

func TestSuggestAnswersFromSeedRow(t *testing.T) {
	h := newHarness(t)
	h.seedRow(t, domain.SeedOrgID, "84713000", "Ordinateurs portables", "laptop, ordinateur portable, notebook", domain.SourceSeed)

	got, err := h.svc.Suggest(orgCtx(), domain.SuggestRequest{Description: "Laptop 15 pouces"})
	if err != nil {
		t.Fatalf("failed to suggest: %v", err)
	}
	if got.Code != "84713000" {
		t.Errorf("expected 84713000, got %s", got.Code)
	}
	if got.Source != string(domain.SourceSeed) {
		t.Errorf("expected seed source, got %s", got.Source)
	}
	if h.llm.calls != 0 {
		t.Errorf("expected no model call on table hit, got %d", h.llm.calls)
	}
	if n := h.usageCount(t); n != 1 {
		t.Errorf("expected 1 usage row, got %d", n)
	}
}

func TestSuggestPrefersOrgRowOverSeed(t *testing.T) {
	h := newHarness(t)
	h.seedRow(t, domain.SeedOrgID, "85444290", "Cables electriques", "cable, cordon", domain.SourceSeed)
	h.seedRow(t, testOrgID, "85444210", "Cables USB-C", "cable, usb", domain.SourceLearned)

	got, err := h.svc.Suggest(orgCtx(), domain.SuggestRequest{Description: "cable usb 2 metres"})
	if err != nil {
		t.Fatalf("failed to suggest: %v", err)
	}
	if got.Code != "85444210" {
		t.Errorf("expected the org's learned row to win, got %s", got.Code)
	}
	if got.Source != string(domain.SourceLearned) {
		t.Errorf("expected learned source, got %s", got.Source)
	}
	if h.llm.calls != 0 {
		t.Errorf("expected no model call, got %d", h.llm.calls)
	}
}

func TestSuggestPicksBestTokenMatch(t *testing.T) {
	h := newHarness(t)
	h.seedRow(t, domain.SeedOrgID, "84716070", "Claviers et souris", "clavier, souris", domain.SourceSeed)
	h.seedRow(t, domain.SeedOrgID, "84716072", "Claviers mecaniques", "clavier, mecanique", domain.SourceSeed)

	got, err := h.svc.Suggest(orgCtx(), domain.SuggestRequest{Description: "clavier mecanique retroeclaire"})
	if err != nil {
		t.Fatalf("failed to suggest: %v", err)
	}
	if got.Code != "84716072" {
		t.Errorf("expected the two-token match to win, got %s", got.Code)
	}
}

func TestSuggestLearnsFromModel(t *testing.T) {
	h := newHarness(t)

	got, err := h.svc.Suggest(orgCtx(), domain.SuggestRequest{Description: "MacBook Pro 14 pouces"})
	if err != nil {
		t.Fatalf("failed to suggest: %v", err)
	}
	if got.Code != "84713000" {
		t.Errorf("expected normalized code 84713000, got %s", got.Code)
	}
	if got.Source != domain.SuggestionSourceModel {
		t.Errorf("expected llm source, got %s", got.Source)
	}
	if got.Confidence == nil || *got.Confidence != 0.82 {
		t.Errorf("expected confidence 0.82, got %v", got.Confidence)
	}
	if got.Reasoning != "Portable computer" {
		t.Errorf("expected reasoning carried, got %q", got.Reasoning)
	}
	if h.llm.calls != 1 {
		t.Fatalf("expected 1 model call, got %d", h.llm.calls)
	}

	learned, err := h.repo.FindByCode(context.Background(), h.db, testOrgID, "84713000")
	if err != nil {
		t.Fatalf("failed to load learned row: %v", err)
	}
	if learned == nil {
		t.Fatal("expected a learned row")
	}
	if learned.Source != domain.SourceLearned {
		t.Errorf("expected learned source, got %s", learned.Source)
	}

	again, err := h.svc.Suggest(orgCtx(), domain.SuggestRequest{Description: "MacBook Pro 14 pouces"})
	if err != nil {
		t.Fatalf("failed to suggest again: %v", err)
	}
	if again.Source != string(domain.SourceLearned) {
		t.Errorf("expected the second lookup to hit the learned row, got %s", again.Source)
	}
	if h.llm.calls != 1 {
		t.Errorf("expected the learned row to absorb the second call, got %d", h.llm.calls)
	}
}

func TestSuggestMergesKeywordsIntoExistingCode(t *testing.T) {
	h := newHarness(t)
	h.seedRow(t, testOrgID, "84713000", "MacBook Pro 14 pouces", "macbook, pro, pouces", domain.SourceLearned)

	if _, err := h.svc.Suggest(orgCtx(), domain.SuggestRequest{Description: "ultrabook leger"}); err != nil {
		t.Fatalf("failed to suggest: %v", err)
	}
	if h.llm.calls != 1 {
		t.Fatalf("expected a model call for the unseen wording, got %d", h.llm.calls)
	}

	row, err := h.repo.FindByCode(context.Background(), h.db, testOrgID, "84713000")
	if err != nil || row == nil {
		t.Fatalf("failed to load row: %v", err)
	}
	if row.Keywords != "macbook, pro, pouces, ultrabook, leger" {
		t.Errorf("expected merged keywords, got %q", row.Keywords)
	}

	if _, err := h.svc.Suggest(orgCtx(), domain.SuggestRequest{Description: "ultrabook leger"}); err != nil {
		t.Fatalf("failed to suggest again: %v", err)
	}
	if h.llm.calls != 1 {
		t.Errorf("expected the merged keywords to answer locally, got %d calls", h.llm.calls)
	}
}

func TestSuggestUnavailableOnModelFailure(t *testing.T) {
	h := newHarness(t)

	h.llm.err = errors.New("upstream timeout")
	if _, err := h.svc.Suggest(orgCtx(), domain.SuggestRequest{Description: "perceuse sans fil"}); !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}

	h.llm.err = nil
	h.llm.reply = "not json at all"
	if _, err := h.svc.Suggest(orgCtx(), domain.SuggestRequest{Description: "perceuse sans fil"}); !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for junk reply, got %v", err)
	}

	h.llm.reply = `{"code": "12", "confidence": 0.9, "reasoning": "too short"}`
	if _, err := h.svc.Suggest(orgCtx(), domain.SuggestRequest{Description: "perceuse sans fil"}); !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for short code, got %v", err)
	}
}

func TestSuggestValidation(t *testing.T) {
	h := newHarness(t)

	if _, err := h.svc.Suggest(orgCtx(), domain.SuggestRequest{Description: "   "}); !errors.Is(err, domain.ErrMissingDescription) {
		t.Errorf("expected ErrMissingDescription, got %v", err)
	}
	if _, err := h.svc.Suggest(context.Background(), domain.SuggestRequest{Description: "laptop"}); !errors.Is(err, domain.ErrInvalidOrganization) {
		t.Errorf("expected ErrInvalidOrganization, got %v", err)
	}
}

func TestLearnedRowsAreOrgScoped(t *testing.T) {
	h := newHarness(t)

	if _, err := h.svc.Suggest(orgCtx(), domain.SuggestRequest{Description: "MacBook Pro 14 pouces"}); err != nil {
		t.Fatalf("failed to suggest in org A: %v", err)
	}
	if _, err := h.svc.Suggest(orgCtxFor(9002), domain.SuggestRequest{Description: "MacBook Pro 14 pouces"}); err != nil {
		t.Fatalf("failed to suggest in org B: %v", err)
	}
	if h.llm.calls != 2 {
		t.Errorf("expected each org to learn separately, got %d calls", h.llm.calls)
	}
}

func TestRollupCompactsUsage(t *testing.T) {
	h := newHarness(t)
	seedRow := h.seedRow(t, domain.SeedOrgID, "84713000", "Ordinateurs portables", "laptop, notebook", domain.SourceSeed)

	for i := 0; i < 3; i++ {
		if _, err := h.svc.Suggest(orgCtx(), domain.SuggestRequest{Description: "laptop de bureau"}); err != nil {
			t.Fatalf("failed to suggest: %v", err)
		}
		h.clock.Advance(time.Minute)
	}
	if n := h.usageCount(t); n != 3 {
		t.Fatalf("expected 3 usage rows, got %d", n)
	}

	compacted, err := h.svc.RollupUsage(context.Background())
	if err != nil {
		t.Fatalf("failed to roll up: %v", err)
	}
	if compacted != 3 {
		t.Errorf("expected 3 compacted rows, got %d", compacted)
	}

	row, err := h.repo.FindByCode(context.Background(), h.db, domain.SeedOrgID, seedRow.Code)
	if err != nil || row == nil {
		t.Fatalf("failed to reload row: %v", err)
	}
	if row.UsageCount != 3 {
		t.Errorf("expected usage_count 3, got %d", row.UsageCount)
	}
	if row.LastUsedAt == nil {
		t.Error("expected last_used_at set")
	}
	if n := h.usageCount(t); n != 0 {
		t.Errorf("expected usage trail emptied, got %d rows", n)
	}

	if again, err := h.svc.RollupUsage(context.Background()); err != nil || again != 0 {
		t.Errorf("expected nothing left to compact, got %d (%v)", again, err)
	}
}

func TestListShowsSeedAndOrgRows(t *testing.T) {
	h := newHarness(t)
	h.seedRow(t, domain.SeedOrgID, "84713000", "Ordinateurs portables", "laptop", domain.SourceSeed)
	h.clock.Advance(time.Minute)
	h.seedRow(t, testOrgID, "85444210", "Cables USB-C", "cable, usb", domain.SourceLearned)
	h.clock.Advance(time.Minute)
	h.seedRow(t, snowflake.ID(9002), "85171300", "Smartphones", "smartphone", domain.SourceLearned)

	all, err := h.svc.List(orgCtx(), domain.ListRequest{})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all.Codes) != 2 {
		t.Fatalf("expected seed row plus own row, got %d", len(all.Codes))
	}

	seedOnly, err := h.svc.List(orgCtx(), domain.ListRequest{Source: "seed"})
	if err != nil {
		t.Fatalf("failed to list seed: %v", err)
	}
	if len(seedOnly.Codes) != 1 || seedOnly.Codes[0].Code != "84713000" {
		t.Errorf("expected only the seed row, got %+v", seedOnly.Codes)
	}

	matched, err := h.svc.List(orgCtx(), domain.ListRequest{Search: "usb"})
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	if len(matched.Codes) != 1 || matched.Codes[0].Code != "85444210" {
		t.Errorf("expected the usb row, got %+v", matched.Codes)
	}
}
