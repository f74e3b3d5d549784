package service

import (
	"bytes"
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
	documentdomain "github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	documentrepo "github.com/zyalhor1961/corematch-web-sub006/internal/document/repository"
	domain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
	invoicerepo "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/repository"
	journaldomain "github.com/zyalhor1961/corematch-web-sub006/internal/journal/domain"
	journalrepo "github.com/zyalhor1961/corematch-web-sub006/internal/journal/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	organizationdomain "github.com/zyalhor1961/corematch-web-sub006/internal/organization/domain"
	productdomain "github.com/zyalhor1961/corematch-web-sub006/internal/product/domain"
	productrepo "github.com/zyalhor1961/corematch-web-sub006/internal/product/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/pdf"
	"github.com/zyalhor1961/corematch-web-sub006/internal/reference"
	referencedomain "github.com/zyalhor1961/corematch-web-sub006/internal/reference/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/storage"
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

type countingPDF struct {
	inner pdf.Provider
	calls int
}

func (c *countingPDF) RenderInvoice(ctx context.Context, data pdf.InvoiceData) ([]byte, error) {
	c.calls++
	return c.inner.RenderInvoice(ctx, data)
}

func (c *countingPDF) RenderQuote(ctx context.Context, data pdf.QuoteData) ([]byte, error) {
	c.calls++
	return c.inner.RenderQuote(ctx, data)
}

type harness struct {
	db      *gorm.DB
	svc     domain.Service
	repo    domain.Repository
	journal journaldomain.Repository
	storage *storage.Memory
	pdf     *countingPDF
	clock   *clock.FakeClock
	genID   *snowflake.Node

	customers    snowflake.ID
	sales        snowflake.ID
	vatCollected snowflake.ID
	suppliers    snowflake.ID
	purchases    snowflake.ID
	vatDeducted  snowflake.ID
	productID    snowflake.ID
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(
		&organizationdomain.Organization{},
		&accountdomain.Account{},
		&taxdomain.TaxDefinition{},
		&productdomain.Product{},
		&documentdomain.Document{},
		&journaldomain.JournalEntry{},
		&journaldomain.JournalLine{},
		&domain.Invoice{},
		&domain.InvoiceLine{},
		&domain.InvoiceSequence{},
		&referencedomain.Currency{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	h := &harness{
		db:      dbConn,
		repo:    invoicerepo.Provide(),
		journal: journalrepo.Provide(),
		storage: storage.NewMemory(),
		pdf:     &countingPDF{inner: pdf.New()},
		clock:   clock.NewFakeClock(time.Date(2025, 7, 31, 10, 30, 0, 0, time.UTC)),
		genID:   node,
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

	h.customers = h.seedAccount(t, accountdomain.CodeCustomers, "Clients", accountdomain.TypeAsset)
	h.sales = h.seedAccount(t, accountdomain.CodeSales, "Ventes de services", accountdomain.TypeRevenue)
	h.vatCollected = h.seedAccount(t, accountdomain.CodeVATCollected, "TVA collectee", accountdomain.TypeLiability)
	h.suppliers = h.seedAccount(t, accountdomain.CodeSuppliers, "Fournisseurs", accountdomain.TypeLiability)
	h.purchases = h.seedAccount(t, accountdomain.CodePurchases, "Achats", accountdomain.TypeExpense)
	h.vatDeducted = h.seedAccount(t, accountdomain.CodeVATDeducted, "TVA deductible", accountdomain.TypeAsset)

	h.seedTaxDefinition(t, "TVA 20%", taxdomain.TaxCodeFRStandard, 0.20)
	h.seedTaxDefinition(t, "TVA 5.5%", taxdomain.TaxCodeFRReduced, 0.055)
	h.productID = h.seedProduct(t)

	h.svc = New(Params{
		DB:        dbConn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     h.clock,
		Repo:      h.repo,
		Products:  productrepo.Provide(),
		Taxes:     taxservice.NewResolver(taxservice.ResolverParams{Repository: taxrepo.NewRepository(dbConn)}),
		Journal:   h.journal,
		Accounts:  accountrepo.Provide(),
		Documents: documentrepo.Provide(),
		Reference: reference.NewRepository(dbConn),
		Storage:   h.storage,
		PDF:       h.pdf,
		Audit:     noopAudit{},
	})
	return h
}

func (h *harness) seedAccount(t *testing.T, code, name string, accountType accountdomain.AccountType) snowflake.ID {
	t.Helper()

	account := accountdomain.Account{
		ID:          h.genID.Generate(),
		OrgID:       testOrgID,
		Code:        code,
		Name:        name,
		AccountType: accountType,
		Currency:    "EUR",
		IsActive:    true,
		CreatedAt:   h.clock.Now(),
		UpdatedAt:   h.clock.Now(),
	}
	if err := accountrepo.Provide().Insert(context.Background(), h.db, &account); err != nil {
		t.Fatalf("failed to seed account %s: %v", code, err)
	}
	return account.ID
}

func (h *harness) seedTaxDefinition(t *testing.T, name, code string, rate float64) {
	t.Helper()

	def := taxdomain.TaxDefinition{
		ID:        h.genID.Generate(),
		OrgID:     testOrgID,
		Name:      name,
		Code:      code,
		TaxMode:   taxdomain.TaxModeExclusive,
		Rate:      &rate,
		IsEnabled: true,
		CreatedAt: h.clock.Now(),
		UpdatedAt: h.clock.Now(),
	}
	if err := h.db.Create(&def).Error; err != nil {
		t.Fatalf("failed to seed tax definition %s: %v", code, err)
	}
}

func (h *harness) seedProduct(t *testing.T) snowflake.ID {
	t.Helper()

	rate := 0.20
	product := productdomain.Product{
		ID:        h.genID.Generate(),
		OrgID:     testOrgID,
		SKU:       "SVC-001",
		Name:      "Prestation conseil",
		UnitPrice: decimal.RequireFromString("100.00"),
		Currency:  "EUR",
		VATRate:   &rate,
		IsActive:  true,
		CreatedAt: h.clock.Now(),
		UpdatedAt: h.clock.Now(),
	}
	if err := productrepo.Provide().Create(context.Background(), h.db, &product); err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return product.ID
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
		Lines: []domain.LineInput{
			{Description: "Prestation conseil", Quantity: decimal.NewFromInt(2), UnitPrice: decPtr("50.00"), VATRate: &rate},
			{Description: "Forfait audit", Quantity: decimal.NewFromInt(1), UnitPrice: decPtr("25.00"), VATRate: &rate},
		},
	}
}

func legByAccount(t *testing.T, lines []journaldomain.JournalLine, accountID snowflake.ID) journaldomain.JournalLine {
	t.Helper()
	for _, line := range lines {
		if line.AccountID == accountID {
			return line
		}
	}
	t.Fatalf("no journal leg for account %s", accountID)
	return journaldomain.JournalLine{}
}

func TestCreateComputesTotalsAndNumber(t *testing.T) {
	h := newHarness(t)

	detail, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if detail.Status != domain.InvoiceStatusDraft {
		t.Errorf("expected draft status, got %s", detail.Status)
	}
	if detail.InvoiceNumber != "INV-000001" {
		t.Errorf("expected INV-000001, got %s", detail.InvoiceNumber)
	}
	if detail.Currency != "EUR" {
		t.Errorf("expected EUR default, got %s", detail.Currency)
	}
	if !detail.NetAmount.Equal(decimal.RequireFromString("125.00")) {
		t.Errorf("expected net 125.00, got %s", detail.NetAmount)
	}
	if !detail.TaxAmount.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("expected tax 25.00, got %s", detail.TaxAmount)
	}
	if !detail.TotalAmount.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("expected total 150.00, got %s", detail.TotalAmount)
	}
	if len(detail.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(detail.Lines))
	}
	if !detail.Lines[0].LineNet.Equal(decimal.RequireFromString("100.00")) ||
		!detail.Lines[0].LineTax.Equal(decimal.RequireFromString("20.00")) ||
		!detail.Lines[0].LineTotal.Equal(decimal.RequireFromString("120.00")) {
		t.Errorf("unexpected first line math: net=%s tax=%s total=%s",
			detail.Lines[0].LineNet, detail.Lines[0].LineTax, detail.Lines[0].LineTotal)
	}

	stored, err := h.repo.FindByID(context.Background(), h.db, testOrgID, detail.ID)
	if err != nil || stored == nil {
		t.Fatalf("expected persisted invoice, got %v err %v", stored, err)
	}
	lines, err := h.repo.ListLines(context.Background(), h.db, testOrgID, detail.ID)
	if err != nil {
		t.Fatalf("failed to list lines: %v", err)
	}
	if len(lines) != 2 {
		t.Errorf("expected 2 persisted lines, got %d", len(lines))
	}
}

func TestCreateSequenceIncrements(t *testing.T) {
	h := newHarness(t)

	first, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create first: %v", err)
	}
	h.clock.Advance(time.Second)
	second, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create second: %v", err)
	}

	if first.InvoiceNumber != "INV-000001" || second.InvoiceNumber != "INV-000002" {
		t.Errorf("expected sequential numbers, got %s then %s", first.InvoiceNumber, second.InvoiceNumber)
	}
}

func TestCreateRejectsSuppliedTotalMismatch(t *testing.T) {
	h := newHarness(t)

	req := draftRequest()
	req.TotalAmount = decPtr("151.00")

	_, err := h.svc.Create(orgCtx(), req)
	if !errors.Is(err, domain.ErrTotalsMismatch) {
		t.Fatalf("expected ErrTotalsMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "computed=150.00") || !strings.Contains(err.Error(), "supplied=151.00") {
		t.Errorf("expected both totals in error, got %q", err.Error())
	}
}

func TestCreateAcceptsSuppliedTotalsWithinTolerance(t *testing.T) {
	h := newHarness(t)

	req := draftRequest()
	req.NetAmount = decPtr("125.00")
	req.TaxAmount = decPtr("25.00")
	req.TotalAmount = decPtr("150.01")

	if _, err := h.svc.Create(orgCtx(), req); err != nil {
		t.Fatalf("expected 0.01 drift to pass, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)

	if _, err := h.svc.Create(context.Background(), draftRequest()); !errors.Is(err, domain.ErrInvalidOrganization) {
		t.Errorf("expected ErrInvalidOrganization, got %v", err)
	}

	req := draftRequest()
	req.CustomerName = "   "
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidCustomer) {
		t.Errorf("expected ErrInvalidCustomer, got %v", err)
	}

	req = draftRequest()
	req.Direction = "both"
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidDirection) {
		t.Errorf("expected ErrInvalidDirection, got %v", err)
	}

	req = draftRequest()
	req.Currency = "EURO"
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidCurrency) {
		t.Errorf("expected ErrInvalidCurrency, got %v", err)
	}

	req = draftRequest()
	req.IssueDate = "31/07/2025"
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}

	req = draftRequest()
	req.Lines = nil
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrNoLines) {
		t.Errorf("expected ErrNoLines, got %v", err)
	}

	req = draftRequest()
	req.Lines[0].Quantity = decimal.NewFromInt(-1)
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}

	req = draftRequest()
	req.Lines[0].UnitPrice = nil
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidUnitPrice) {
		t.Errorf("expected ErrInvalidUnitPrice, got %v", err)
	}

	req = draftRequest()
	percent := 20.0
	req.Lines[0].VATRate = &percent
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidVATRate) {
		t.Errorf("expected ErrInvalidVATRate for a percent rate, got %v", err)
	}
}

func TestCreateResolvesProductLines(t *testing.T) {
	h := newHarness(t)

	req := domain.CreateRequest{
		CustomerName: "ACME SARL",
		Lines: []domain.LineInput{
			{ProductID: h.productID.String(), Quantity: decimal.NewFromInt(3)},
		},
	}
	detail, err := h.svc.Create(orgCtx(), req)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	line := detail.Lines[0]
	if line.Description != "Prestation conseil" {
		t.Errorf("expected product name as description, got %q", line.Description)
	}
	if !line.UnitPrice.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("expected catalog price, got %s", line.UnitPrice)
	}
	if line.VATRate == nil || *line.VATRate != 0.20 {
		t.Errorf("expected catalog vat rate, got %v", line.VATRate)
	}
	if !line.LineNet.Equal(decimal.RequireFromString("300.00")) || !line.LineTax.Equal(decimal.RequireFromString("60.00")) {
		t.Errorf("unexpected line math: net=%s tax=%s", line.LineNet, line.LineTax)
	}

	req.Lines[0].ProductID = snowflake.ID(424242).String()
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrUnknownProduct) {
		t.Errorf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestCreateResolvesVATCode(t *testing.T) {
	h := newHarness(t)

	req := domain.CreateRequest{
		CustomerName: "ACME SARL",
		Lines: []domain.LineInput{
			{Description: "Livres", Quantity: decimal.NewFromInt(1), UnitPrice: decPtr("100.00"), VATCode: taxdomain.TaxCodeFRReduced},
		},
	}
	detail, err := h.svc.Create(orgCtx(), req)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if !detail.TaxAmount.Equal(decimal.RequireFromString("5.50")) {
		t.Errorf("expected reduced-rate tax 5.50, got %s", detail.TaxAmount)
	}

	req.Lines[0].VATCode = "FR_VAT_IMAGINARY"
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrUnknownTaxCode) {
		t.Errorf("expected ErrUnknownTaxCode, got %v", err)
	}
}

func TestCreateDefaultsVATFromOrg(t *testing.T) {
	h := newHarness(t)

	req := domain.CreateRequest{
		CustomerName: "ACME SARL",
		Lines: []domain.LineInput{
			{Description: "Prestation", Quantity: decimal.NewFromInt(1), UnitPrice: decPtr("100.00")},
		},
	}
	detail, err := h.svc.Create(orgCtx(), req)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if !detail.TaxAmount.Equal(decimal.RequireFromString("20.00")) {
		t.Errorf("expected default 20%% rate, got tax %s", detail.TaxAmount)
	}
	if detail.Lines[0].VATRate == nil || *detail.Lines[0].VATRate != 0.20 {
		t.Errorf("expected stored default rate, got %v", detail.Lines[0].VATRate)
	}
}

func TestCreateLinksDocument(t *testing.T) {
	h := newHarness(t)

	doc := documentdomain.Document{
		ID:          h.genID.Generate(),
		OrgID:       testOrgID,
		Filename:    "facture.pdf",
		ContentType: "application/pdf",
		StoragePath: "org/9001/documents/x/facture.pdf",
		DocType:     documentdomain.DocTypeInvoice,
		Status:      documentdomain.StatusProcessed,
		CreatedAt:   h.clock.Now(),
		UpdatedAt:   h.clock.Now(),
	}
	if err := h.db.Create(&doc).Error; err != nil {
		t.Fatalf("failed to seed document: %v", err)
	}

	req := draftRequest()
	req.DocumentID = doc.ID.String()
	detail, err := h.svc.Create(orgCtx(), req)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if detail.DocumentID == nil || *detail.DocumentID != doc.ID {
		t.Errorf("expected document link, got %v", detail.DocumentID)
	}

	req = draftRequest()
	req.DocumentID = "not-a-snowflake"
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("expected ErrInvalidDocument for bad id, got %v", err)
	}

	req = draftRequest()
	req.DocumentID = snowflake.ID(55555).String()
	if _, err := h.svc.Create(orgCtx(), req); !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("expected ErrInvalidDocument for missing doc, got %v", err)
	}
}

func TestOpenPostsSaleEntry(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	opened, err := h.svc.Open(orgCtx(), created.ID.String())
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if opened.Status != domain.InvoiceStatusOpen {
		t.Errorf("expected open status, got %s", opened.Status)
	}
	if opened.IssuedAt == nil || opened.IssueDate == nil {
		t.Error("expected issued_at and issue_date to be set")
	}
	if opened.JournalEntryID == nil {
		t.Fatal("expected journal entry link")
	}

	entry, err := h.journal.FindEntryByID(context.Background(), h.db, testOrgID, *opened.JournalEntryID)
	if err != nil || entry == nil {
		t.Fatalf("expected posted entry, got %v err %v", entry, err)
	}
	if entry.Status != journaldomain.StatusPosted {
		t.Errorf("expected posted entry, got %s", entry.Status)
	}
	if entry.SourceType != journaldomain.SourceInvoice || entry.SourceID == nil || *entry.SourceID != created.ID {
		t.Errorf("expected invoice source, got %s %v", entry.SourceType, entry.SourceID)
	}
	if entry.Reference == nil || *entry.Reference != "INV-000001" {
		t.Errorf("expected invoice number reference, got %v", entry.Reference)
	}

	legs, err := h.journal.ListLines(context.Background(), h.db, testOrgID, entry.ID)
	if err != nil {
		t.Fatalf("failed to list legs: %v", err)
	}
	if len(legs) != 3 {
		t.Fatalf("expected 3 legs, got %d", len(legs))
	}
	if leg := legByAccount(t, legs, h.customers); !leg.Debit.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("expected 411 debit 150.00, got %s", leg.Debit)
	}
	if leg := legByAccount(t, legs, h.sales); !leg.Credit.Equal(decimal.RequireFromString("125.00")) {
		t.Errorf("expected 707 credit 125.00, got %s", leg.Credit)
	}
	if leg := legByAccount(t, legs, h.vatCollected); !leg.Credit.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("expected 44571 credit 25.00, got %s", leg.Credit)
	}
}

func TestOpenPostsPurchaseEntry(t *testing.T) {
	h := newHarness(t)

	req := draftRequest()
	req.Direction = "purchase"
	req.CustomerName = "Fournitout SAS"
	created, err := h.svc.Create(orgCtx(), req)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	opened, err := h.svc.Open(orgCtx(), created.ID.String())
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}

	legs, err := h.journal.ListLines(context.Background(), h.db, testOrgID, *opened.JournalEntryID)
	if err != nil {
		t.Fatalf("failed to list legs: %v", err)
	}
	if leg := legByAccount(t, legs, h.purchases); !leg.Debit.Equal(decimal.RequireFromString("125.00")) {
		t.Errorf("expected 606 debit 125.00, got %s", leg.Debit)
	}
	if leg := legByAccount(t, legs, h.vatDeducted); !leg.Debit.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("expected 44566 debit 25.00, got %s", leg.Debit)
	}
	if leg := legByAccount(t, legs, h.suppliers); !leg.Credit.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("expected 401 credit 150.00, got %s", leg.Credit)
	}
}

func TestOpenTwiceConflicts(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if _, err := h.svc.Open(orgCtx(), created.ID.String()); err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if _, err := h.svc.Open(orgCtx(), created.ID.String()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict on second open, got %v", err)
	}
}

func TestMarkPaidTransitions(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	if _, err := h.svc.MarkPaid(orgCtx(), created.ID.String()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict paying a draft, got %v", err)
	}

	if _, err := h.svc.Open(orgCtx(), created.ID.String()); err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	paid, err := h.svc.MarkPaid(orgCtx(), created.ID.String())
	if err != nil {
		t.Fatalf("failed to mark paid: %v", err)
	}
	if paid.Status != domain.InvoiceStatusPaid || paid.PaidAt == nil {
		t.Errorf("expected paid invoice, got %s paid_at=%v", paid.Status, paid.PaidAt)
	}

	if _, err := h.svc.MarkPaid(orgCtx(), created.ID.String()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict on double pay, got %v", err)
	}
}

func TestVoidDraftSkipsJournal(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	voided, err := h.svc.Void(orgCtx(), created.ID.String(), "duplicate entry")
	if err != nil {
		t.Fatalf("failed to void: %v", err)
	}
	if voided.Status != domain.InvoiceStatusVoid || voided.VoidedAt == nil {
		t.Errorf("expected void invoice, got %s voided_at=%v", voided.Status, voided.VoidedAt)
	}

	var count int64
	if err := h.db.Model(&journaldomain.JournalEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count entries: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no journal entries for a draft void, got %d", count)
	}
}

func TestVoidOpenReversesPosting(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	opened, err := h.svc.Open(orgCtx(), created.ID.String())
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}

	if _, err := h.svc.Void(orgCtx(), created.ID.String(), ""); err != nil {
		t.Fatalf("failed to void: %v", err)
	}

	original, err := h.journal.FindEntryByID(context.Background(), h.db, testOrgID, *opened.JournalEntryID)
	if err != nil || original == nil {
		t.Fatalf("failed to reload posting: %v", err)
	}
	if original.Status != journaldomain.StatusReversed {
		t.Errorf("expected reversed posting, got %s", original.Status)
	}
	if original.ReversedEntryID == nil {
		t.Fatal("expected reversal link")
	}

	mirror, err := h.journal.FindEntryByID(context.Background(), h.db, testOrgID, *original.ReversedEntryID)
	if err != nil || mirror == nil {
		t.Fatalf("failed to load mirror: %v", err)
	}
	if mirror.SourceType != journaldomain.SourceReversal {
		t.Errorf("expected reversal source, got %s", mirror.SourceType)
	}
	legs, err := h.journal.ListLines(context.Background(), h.db, testOrgID, mirror.ID)
	if err != nil {
		t.Fatalf("failed to list mirror legs: %v", err)
	}
	if leg := legByAccount(t, legs, h.customers); !leg.Credit.Equal(decimal.RequireFromString("150.00")) || !leg.Debit.IsZero() {
		t.Errorf("expected swapped receivable leg, got debit=%s credit=%s", leg.Debit, leg.Credit)
	}
}

func TestVoidPaidConflicts(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if _, err := h.svc.Open(orgCtx(), created.ID.String()); err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if _, err := h.svc.MarkPaid(orgCtx(), created.ID.String()); err != nil {
		t.Fatalf("failed to mark paid: %v", err)
	}

	if _, err := h.svc.Void(orgCtx(), created.ID.String(), ""); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict voiding a paid invoice, got %v", err)
	}
}

func TestUpdateDraftReplacesLines(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	rate := 0.20
	name := "ACME Group"
	updated, err := h.svc.UpdateDraft(orgCtx(), domain.UpdateDraftRequest{
		ID:           created.ID.String(),
		CustomerName: &name,
		Lines: []domain.LineInput{
			{Description: "Forfait revise", Quantity: decimal.NewFromInt(1), UnitPrice: decPtr("40.00"), VATRate: &rate},
		},
	})
	if err != nil {
		t.Fatalf("failed to update: %v", err)
	}
	if updated.CustomerName != "ACME Group" {
		t.Errorf("expected renamed customer, got %s", updated.CustomerName)
	}
	if !updated.TotalAmount.Equal(decimal.RequireFromString("48.00")) {
		t.Errorf("expected recomputed total 48.00, got %s", updated.TotalAmount)
	}
	if len(updated.Lines) != 1 {
		t.Errorf("expected 1 replacement line, got %d", len(updated.Lines))
	}

	lines, err := h.repo.ListLines(context.Background(), h.db, testOrgID, created.ID)
	if err != nil {
		t.Fatalf("failed to list lines: %v", err)
	}
	if len(lines) != 1 {
		t.Errorf("expected old lines gone, got %d", len(lines))
	}

	if _, err := h.svc.Open(orgCtx(), created.ID.String()); err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if _, err := h.svc.UpdateDraft(orgCtx(), domain.UpdateDraftRequest{ID: created.ID.String(), CustomerName: &name}); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict updating an open invoice, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	h := newHarness(t)

	if _, err := h.svc.Create(orgCtx(), draftRequest()); err != nil {
		t.Fatalf("failed to create sale: %v", err)
	}
	h.clock.Advance(time.Second)
	req := draftRequest()
	req.Direction = "purchase"
	if _, err := h.svc.Create(orgCtx(), req); err != nil {
		t.Fatalf("failed to create purchase: %v", err)
	}

	resp, err := h.svc.List(orgCtx(), domain.ListRequest{Direction: "purchase"})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(resp.Invoices) != 1 || resp.Invoices[0].Direction != domain.DirectionPurchase {
		t.Errorf("expected single purchase invoice, got %d", len(resp.Invoices))
	}

	resp, err = h.svc.List(orgCtx(), domain.ListRequest{Status: "draft"})
	if err != nil {
		t.Fatalf("failed to list drafts: %v", err)
	}
	if len(resp.Invoices) != 2 {
		t.Errorf("expected 2 drafts, got %d", len(resp.Invoices))
	}

	resp, err = h.svc.List(orgCtx(), domain.ListRequest{PageSize: 1})
	if err != nil {
		t.Fatalf("failed to list page: %v", err)
	}
	if len(resp.Invoices) != 1 || !resp.HasMore || resp.NextPageToken == "" {
		t.Errorf("expected single page with more, got %d has_more=%v", len(resp.Invoices), resp.HasMore)
	}
}

func TestGetByIDErrors(t *testing.T) {
	h := newHarness(t)

	if _, err := h.svc.GetByID(orgCtx(), "bogus"); !errors.Is(err, domain.ErrInvalidID) {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
	if _, err := h.svc.GetByID(orgCtx(), snowflake.ID(31337).String()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRenderPDFCachesOpenInvoices(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if _, err := h.svc.Open(orgCtx(), created.ID.String()); err != nil {
		t.Fatalf("failed to open: %v", err)
	}

	content, err := h.svc.RenderPDF(orgCtx(), created.ID.String())
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}
	if !bytes.HasPrefix(content, []byte("%PDF")) {
		t.Errorf("expected pdf bytes, got %q", content[:min(8, len(content))])
	}

	stored, err := h.repo.FindByID(context.Background(), h.db, testOrgID, created.ID)
	if err != nil || stored == nil {
		t.Fatalf("failed to reload invoice: %v", err)
	}
	if stored.PDFPath == nil {
		t.Fatal("expected cached pdf path")
	}
	if _, err := h.storage.Get(context.Background(), *stored.PDFPath); err != nil {
		t.Errorf("expected cached object, got %v", err)
	}

	if _, err := h.svc.RenderPDF(orgCtx(), created.ID.String()); err != nil {
		t.Fatalf("failed to re-render: %v", err)
	}
	if h.pdf.calls != 1 {
		t.Errorf("expected a single render for cached invoice, got %d", h.pdf.calls)
	}
}

func TestRenderPDFDraftNeverCached(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.Create(orgCtx(), draftRequest())
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	if _, err := h.svc.RenderPDF(orgCtx(), created.ID.String()); err != nil {
		t.Fatalf("failed to render draft: %v", err)
	}
	if _, err := h.svc.RenderPDF(orgCtx(), created.ID.String()); err != nil {
		t.Fatalf("failed to re-render draft: %v", err)
	}
	if h.pdf.calls != 2 {
		t.Errorf("expected fresh render per draft call, got %d", h.pdf.calls)
	}

	stored, err := h.repo.FindByID(context.Background(), h.db, testOrgID, created.ID)
	if err != nil || stored == nil {
		t.Fatalf("failed to reload invoice: %v", err)
	}
	if stored.PDFPath != nil {
		t.Errorf("expected no cached path for draft, got %v", *stored.PDFPath)
	}
}
