package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	invoicedomain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
	invoicerepo "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/repository"
	leaddomain "github.com/zyalhor1961/corematch-web-sub006/internal/lead/domain"
	leadrepo "github.com/zyalhor1961/corematch-web-sub006/internal/lead/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	organizationdomain "github.com/zyalhor1961/corematch-web-sub006/internal/organization/domain"
	productdomain "github.com/zyalhor1961/corematch-web-sub006/internal/product/domain"
	productrepo "github.com/zyalhor1961/corematch-web-sub006/internal/product/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/pdf"
	domain "github.com/zyalhor1961/corematch-web-sub006/internal/quote/domain"
	quoterepo "github.com/zyalhor1961/corematch-web-sub006/internal/quote/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/reference"
	referencedomain "github.com/zyalhor1961/corematch-web-sub006/internal/reference/domain"
	taxdomain "github.com/zyalhor1961/corematch-web-sub006/internal/tax/domain"
	taxrepo "github.com/zyalhor1961/corematch-web-sub006/internal/tax/repository"
	taxservice "github.com/zyalhor1961/corematch-web-sub006/internal/tax/service"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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

type harness struct {
	db       *gorm.DB
	svc      domain.Service
	repo     domain.Repository
	leads    leaddomain.Repository
	invoices invoicedomain.Repository
	clock    *clock.FakeClock
	genID    *snowflake.Node
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(
		&organizationdomain.Organization{},
		&referencedomain.Currency{},
		&taxdomain.TaxDefinition{},
		&productdomain.Product{},
		&leaddomain.Lead{},
		&domain.Quote{},
		&domain.QuoteLine{},
		&domain.QuoteSequence{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
		&invoicedomain.InvoiceSequence{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(4)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	h := &harness{
		db:       dbConn,
		repo:     quoterepo.Provide(),
		leads:    leadrepo.Provide(),
		invoices: invoicerepo.Provide(),
		clock:    clock.NewFakeClock(time.Date(2025, 7, 31, 10, 30, 0, 0, time.UTC)),
		genID:    node,
	}

	org := organizationdomain.Organization{
		ID:        testOrgID,
		Name:      "Corematch SARL",
		Slug:      "corematch",
		Metadata:  datatypes.JSONMap{},
		CreatedAt: h.clock.Now(),
		UpdatedAt: h.clock.Now(),
	}
	if err := dbConn.Create(&org).Error; err != nil {
		t.Fatalf("failed to seed org: %v", err)
	}
	if err := dbConn.Create(&referencedomain.Currency{Code: "EUR", Name: "Euro", Symbol: "EUR", DecimalDigits: 2}).Error; err != nil {
		t.Fatalf("failed to seed currency: %v", err)
	}
	rate := 0.20
	def := taxdomain.TaxDefinition{
		ID:        node.Generate(),
		OrgID:     testOrgID,
		Name:      "TVA 20%",
		Code:      taxdomain.TaxCodeFRStandard,
		TaxMode:   taxdomain.TaxModeExclusive,
		Rate:      &rate,
		IsEnabled: true,
		CreatedAt: h.clock.Now(),
		UpdatedAt: h.clock.Now(),
	}
	if err := dbConn.Create(&def).Error; err != nil {
		t.Fatalf("failed to seed tax definition: %v", err)
	}

	h.svc = New(Params{
		DB:        dbConn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     h.clock,
		Repo:      h.repo,
		Products:  productrepo.Provide(),
		Taxes:     taxservice.NewResolver(taxservice.ResolverParams{Repository: taxrepo.NewRepository(dbConn)}),
		Leads:     h.leads,
		Invoices:  h.invoices,
		Reference: reference.NewRepository(dbConn),
		PDF:       pdf.New(),
		Audit:     noopAudit{},
	})
	return h
}

func (h *harness) seedLead(t *testing.T, company string) leaddomain.Lead {
	t.Helper()

	email := "contact@acme.fr"
	lead := leaddomain.Lead{
		ID:          h.genID.Generate(),
		OrgID:       testOrgID,
		CompanyName: company,
		Email:       &email,
		Source:      leaddomain.SourceManual,
		Status:      leaddomain.StatusQualified,
		Metadata:    datatypes.JSONMap{},
		CreatedAt:   h.clock.Now(),
		UpdatedAt:   h.clock.Now(),
	}
	if err := h.leads.Insert(context.Background(), h.db, &lead); err != nil {
		t.Fatalf("failed to seed lead: %v", err)
	}
	return lead
}

func orgCtx() context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(testOrgID))
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func draftRequest() domain.CreateRequest {
	rate := 0.20
	return domain.CreateRequest{
		CustomerName: "ACME SARL",
		ValidUntil:   "2025-08-15",
		Lines: []domain.LineInput{
			{Description: "Prestation conseil", Quantity: decimal.NewFromInt(2), UnitPrice: decPtr("50.00"), VATRate: &rate},
			{Description: "Forfait audit", Quantity: decimal.NewFromInt(1), UnitPrice: decPtr("25.00"), VATRate: &rate},
		},
	}
}

func TestCreateComputesTotalsAndNumber(t *testing.T) {
	h := newHarness(t)

	detail, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if detail.Status != domain.QuoteStatusDraft {
		t.Errorf("expected draft, got %s", detail.Status)
	}
	if detail.QuoteNumber != "Q-000001" {
		t.Errorf("expected Q-000001, got %s", detail.QuoteNumber)
	}
	if detail.Currency != "EUR" {
		t.Errorf("expected EUR default, got %s", detail.Currency)
	}
	if !detail.NetAmount.Equal(decimal.RequireFromString("125.00")) ||
		!detail.TaxAmount.Equal(decimal.RequireFromString("25.00")) ||
		!detail.TotalAmount.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("unexpected totals: net=%s tax=%s total=%s",
			detail.NetAmount, detail.TaxAmount, detail.TotalAmount)
	}
	if len(detail.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(detail.Lines))
	}

	h.clock.Advance(time.Second)
	second, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create second: %v", err)
	}
	if second.QuoteNumber != "Q-000002" {
		t.Errorf("expected Q-000002, got %s", second.QuoteNumber)
	}
}

func TestCreateDefaultsCustomerFromLead(t *testing.T) {
	h := newHarness(t)

	lead := h.seedLead(t, "ACME SARL")
	req := draftRequest()
	req.CustomerName = ""
	req.LeadID = lead.ID.String()

	detail, err := h.svc.Create(orgCtx(), req)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if detail.CustomerName != "ACME SARL" {
		t.Errorf("expected lead company as customer, got %s", detail.CustomerName)
	}
	if detail.CustomerEmail == nil || *detail.CustomerEmail != "contact@acme.fr" {
		t.Errorf("expected lead email carried, got %v", detail.CustomerEmail)
	}
	if detail.LeadID == nil || *detail.LeadID != lead.ID {
		t.Errorf("expected lead link, got %v", detail.LeadID)
	}
}

func TestCreateRejectsBadLead(t *testing.T) {
	h := newHarness(t)

	req := draftRequest()
	req.LeadID = "not-a-snowflake"
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidLead) {
		t.Errorf("expected ErrInvalidLead for bad id, got %v", err)
	}

	req.LeadID = snowflake.ID(777777).String()
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidLead) {
		t.Errorf("expected ErrInvalidLead for missing lead, got %v", err)
	}
}

func TestCreateRejectsSuppliedTotalMismatch(t *testing.T) {
	h := newHarness(t)

	req := draftRequest()
	req.TotalAmount = decPtr("149.00")
	_, err := h.svc.Create(orgCtx(), req)
	if !errors.Is(err, domain.ErrTotalsMismatch) {
		t.Fatalf("expected ErrTotalsMismatch, got %v", err)
	}
}

func TestSendTransitions(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	sent, err := h.svc.Send(orgCtx(), created.ID.String())
	if err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	if sent.Status != domain.QuoteStatusSent || sent.SentAt == nil {
		t.Errorf("expected sent quote, got %s sent_at=%v", sent.Status, sent.SentAt)
	}
	if sent.IssueDate == nil {
		t.Error("expected issue date stamped on send")
	}

	if _, err := h.svc.Send(orgCtx(), created.ID.String()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict on double send, got %v", err)
	}
}

func TestAcceptCreatesInvoiceAndConvertsLead(t *testing.T) {
	h := newHarness(t)

	lead := h.seedLead(t, "ACME SARL")
	req := draftRequest()
	req.LeadID = lead.ID.String()
	created, err := h.svc.Create(orgCtx(), req)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if _, err := h.svc.Send(orgCtx(), created.ID.String()); err != nil {
		t.Fatalf("failed to send: %v", err)
	}

	accepted, err := h.svc.Accept(orgCtx(), created.ID.String())
	if err != nil {
		t.Fatalf("failed to accept: %v", err)
	}
	if accepted.Status != domain.QuoteStatusAccepted || accepted.DecidedAt == nil {
		t.Errorf("expected accepted quote, got %s", accepted.Status)
	}
	if accepted.InvoiceID == nil {
		t.Fatal("expected invoice link")
	}

	invoice, err := h.invoices.FindByID(context.Background(), h.db, testOrgID, *accepted.InvoiceID)
	if err != nil || invoice == nil {
		t.Fatalf("expected draft invoice, got %v err %v", invoice, err)
	}
	if invoice.Status != invoicedomain.InvoiceStatusDraft || invoice.Direction != invoicedomain.DirectionSale {
		t.Errorf("expected draft sale invoice, got %s/%s", invoice.Status, invoice.Direction)
	}
	if invoice.InvoiceNumber != "INV-000001" {
		t.Errorf("expected INV-000001, got %s", invoice.InvoiceNumber)
	}
	if !invoice.TotalAmount.Equal(accepted.TotalAmount) {
		t.Errorf("expected totals carried over, got %s vs %s", invoice.TotalAmount, accepted.TotalAmount)
	}
	if invoice.QuoteID == nil || *invoice.QuoteID != created.ID {
		t.Errorf("expected quote back-link, got %v", invoice.QuoteID)
	}

	lines, err := h.invoices.ListLines(context.Background(), h.db, testOrgID, invoice.ID)
	if err != nil {
		t.Fatalf("failed to list invoice lines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 carried lines, got %d", len(lines))
	}
	if !lines[0].LineNet.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("expected line amounts carried as stored, got %s", lines[0].LineNet)
	}

	reloaded, err := h.leads.FindByID(context.Background(), h.db, testOrgID, lead.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("failed to reload lead: %v", err)
	}
	if reloaded.Status != leaddomain.StatusConverted {
		t.Errorf("expected converted lead, got %s", reloaded.Status)
	}

	if _, err := h.svc.Accept(orgCtx(), created.ID.String()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict on double accept, got %v", err)
	}
}

func TestAcceptRequiresSent(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if _, err := h.svc.Accept(orgCtx(), created.ID.String()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict accepting a draft, got %v", err)
	}
}

func TestAcceptExpiredQuoteFlipsToExpired(t *testing.T) {
	h := newHarness(t)

	req := draftRequest()
	req.ValidUntil = "2025-07-30"
	created, err := h.svc.Create(orgCtx(), req)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if _, err := h.svc.Send(orgCtx(), created.ID.String()); err != nil {
		t.Fatalf("failed to send: %v", err)
	}

	if _, err := h.svc.Accept(orgCtx(), created.ID.String()); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	stored, err := h.repo.FindByID(context.Background(), h.db, testOrgID, created.ID)
	if err != nil || stored == nil {
		t.Fatalf("failed to reload quote: %v", err)
	}
	if stored.Status != domain.QuoteStatusExpired {
		t.Errorf("expected expired quote, got %s", stored.Status)
	}

	var count int64
	if err := h.db.Model(&invoicedomain.Invoice{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count invoices: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no invoice for expired quote, got %d", count)
	}
}

func TestRejectTransitions(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if _, err := h.svc.Reject(orgCtx(), created.ID.String()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict rejecting a draft, got %v", err)
	}

	if _, err := h.svc.Send(orgCtx(), created.ID.String()); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	rejected, err := h.svc.Reject(orgCtx(), created.ID.String())
	if err != nil {
		t.Fatalf("failed to reject: %v", err)
	}
	if rejected.Status != domain.QuoteStatusRejected || rejected.DecidedAt == nil {
		t.Errorf("expected rejected quote, got %s", rejected.Status)
	}

	if _, err := h.svc.Accept(orgCtx(), created.ID.String()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict accepting a rejected quote, got %v", err)
	}
}

func TestUpdateDraftReplacesLines(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	rate := 0.20
	updated, err := h.svc.UpdateDraft(orgCtx(), domain.UpdateDraftRequest{
		ID: created.ID.String(),
		Lines: []domain.LineInput{
			{Description: "Forfait revise", Quantity: decimal.NewFromInt(1), UnitPrice: decPtr("40.00"), VATRate: &rate},
		},
	})
	if err != nil {
		t.Fatalf("failed to update: %v", err)
	}
	if !updated.TotalAmount.Equal(decimal.RequireFromString("48.00")) {
		t.Errorf("expected recomputed total 48.00, got %s", updated.TotalAmount)
	}
	if len(updated.Lines) != 1 {
		t.Errorf("expected 1 replacement line, got %d", len(updated.Lines))
	}

	if _, err := h.svc.Send(orgCtx(), created.ID.String()); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	name := "ACME Group"
	if _, err := h.svc.UpdateDraft(orgCtx(), domain.UpdateDraftRequest{ID: created.ID.String(), CustomerName: &name}); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict updating a sent quote, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	h := newHarness(t)

	first, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	h.clock.Advance(time.Second)
	if _, err := h.svc.Create(orgCtx(), draftRequest()); err != nil {
		t.Fatalf("failed to create second: %v", err)
	}
	if _, err := h.svc.Send(orgCtx(), first.ID.String()); err != nil {
		t.Fatalf("failed to send: %v", err)
	}

	resp, err := h.svc.List(orgCtx(), domain.ListRequest{Status: "sent"})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(resp.Quotes) != 1 || resp.Quotes[0].ID != first.ID {
		t.Errorf("expected single sent quote, got %d", len(resp.Quotes))
	}

	resp, err = h.svc.List(orgCtx(), domain.ListRequest{PageSize: 1})
	if err != nil {
		t.Fatalf("failed to list page: %v", err)
	}
	if len(resp.Quotes) != 1 || !resp.HasMore {
		t.Errorf("expected page with more, got %d has_more=%v", len(resp.Quotes), resp.HasMore)
	}
}

func TestRenderPDF(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	content, err := h.svc.RenderPDF(orgCtx(), created.ID.String())
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}
	if !bytes.HasPrefix(content, []byte("%PDF")) {
		t.Errorf("expected pdf bytes, got %q", content[:min(8, len(content))])
	}
}
