package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/deb/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/deb/repository"
	documentdomain "github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	documentrepo "github.com/zyalhor1961/corematch-web-sub006/internal/document/repository"
	hscodedomain "github.com/zyalhor1961/corematch-web-sub006/internal/hscode/domain"
	invoicedomain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
	invoicerepo "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testOrgID = snowflake.ID(6101)

type noopAudit struct{}

func (noopAudit) AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	return nil
}

func (noopAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type fakeHSCodes struct {
	code        string
	unavailable bool
	asked       []string
}

func (f *fakeHSCodes) Suggest(ctx context.Context, req hscodedomain.SuggestRequest) (hscodedomain.Suggestion, error) {
	f.asked = append(f.asked, req.Description)
	if f.unavailable {
		return hscodedomain.Suggestion{}, hscodedomain.ErrUnavailable
	}
	return hscodedomain.Suggestion{Code: f.code, Description: req.Description, Source: "seed"}, nil
}

func (f *fakeHSCodes) List(ctx context.Context, req hscodedomain.ListRequest) (hscodedomain.ListResponse, error) {
	return hscodedomain.ListResponse{}, nil
}

func (f *fakeHSCodes) RollupUsage(ctx context.Context) (int64, error) { return 0, nil }

type harness struct {
	db      *gorm.DB
	svc     domain.Service
	hscodes *fakeHSCodes
	clock   *clock.FakeClock
	genID   *snowflake.Node
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	err = dbConn.AutoMigrate(
		&domain.Declaration{},
		&domain.Line{},
		&documentdomain.Document{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(9)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	h := &harness{
		db:      dbConn,
		hscodes: &fakeHSCodes{code: "84713000"},
		clock:   clock.NewFakeClock(time.Date(2025, 8, 4, 9, 0, 0, 0, time.UTC)),
		genID:   node,
	}
	h.svc = NewService(Params{
		DB:       dbConn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    h.clock,
		Repo:     repository.Provide(),
		Docs:     documentrepo.Provide(),
		Invoices: invoicerepo.Provide(),
		HSCodes:  h.hscodes,
		Audit:    noopAudit{},
	})
	return h
}

func orgCtx() context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(testOrgID))
}

func strPtr(v string) *string { return &v }

func (h *harness) seedProcessedDoc(t *testing.T, vendorVAT *string, vendorName, invoiceNumber, docDate, net string) snowflake.ID {
	t.Helper()
	netAmount := decimal.RequireFromString(net)
	doc := documentdomain.Document{
		ID:            h.genID.Generate(),
		OrgID:         testOrgID,
		Filename:      invoiceNumber + ".pdf",
		StoragePath:   "documents/" + invoiceNumber + ".pdf",
		DocType:       documentdomain.DocTypeInvoice,
		Status:        documentdomain.StatusProcessed,
		VendorName:    strPtr(vendorName),
		VendorTaxID:   vendorVAT,
		InvoiceNumber: strPtr(invoiceNumber),
		DocumentDate:  strPtr(docDate),
		NetAmount:     &netAmount,
		CreatedAt:     h.clock.Now(),
		UpdatedAt:     h.clock.Now(),
	}
	if err := h.db.Create(&doc).Error; err != nil {
		t.Fatalf("failed to seed document: %v", err)
	}
	return doc.ID
}

func (h *harness) seedSaleInvoice(t *testing.T, number, customer string, vat *string, status invoicedomain.InvoiceStatus, issued time.Time, net string) snowflake.ID {
	t.Helper()
	netAmount := decimal.RequireFromString(net)
	invoice := invoicedomain.Invoice{
		ID:            h.genID.Generate(),
		OrgID:         testOrgID,
		InvoiceNumber: number,
		Direction:     invoicedomain.DirectionSale,
		CustomerName:  customer,
		CustomerVAT:   vat,
		Status:        status,
		Currency:      "EUR",
		IssueDate:     &issued,
		NetAmount:     netAmount,
		TotalAmount:   netAmount,
		CreatedAt:     h.clock.Now(),
		UpdatedAt:     h.clock.Now(),
	}
	if err := h.db.Create(&invoice).Error; err != nil {
		t.Fatalf("failed to seed invoice: %v", err)
	}
	return invoice.ID
}

func (h *harness) mustCreate(t *testing.T, period string, flow domain.Flow) domain.Declaration {
	t.Helper()
	decl, err := h.svc.Create(orgCtx(), domain.CreateRequest{Period: period, Flow: string(flow)})
	if err != nil {
		t.Fatalf("create declaration: %v", err)
	}
	return decl
}

func validLine(description string) domain.LineInput {
	return domain.LineInput{
		Description: description,
		HSCode:      "84713000",
		CountryCode: "DE",
		Value:       decimal.RequireFromString("1500.00"),
	}
}

func TestCreateDeclaration(t *testing.T) {
	h := newHarness(t)

	decl := h.mustCreate(t, "2025-07", domain.FlowIntroduction)
	if decl.Status != domain.StatusDraft {
		t.Fatalf("expected draft declaration, got %q", decl.Status)
	}
	if decl.Period != "2025-07" || decl.Flow != domain.FlowIntroduction {
		t.Fatalf("unexpected declaration %+v", decl)
	}

	// Same month and flow again is a duplicate; the other flow is not.
	_, err := h.svc.Create(orgCtx(), domain.CreateRequest{Period: "2025-07", Flow: "introduction"})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := h.svc.Create(orgCtx(), domain.CreateRequest{Period: "2025-07", Flow: "expedition"}); err != nil {
		t.Fatalf("expedition for same month: %v", err)
	}

	_, err = h.svc.Create(orgCtx(), domain.CreateRequest{Period: "2025-13", Flow: "introduction"})
	if !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	_, err = h.svc.Create(orgCtx(), domain.CreateRequest{Period: "2025-07", Flow: "import"})
	if !errors.Is(err, domain.ErrInvalidFlow) {
		t.Fatalf("expected ErrInvalidFlow, got %v", err)
	}
}

func TestGenerateIntroduction(t *testing.T) {
	h := newHarness(t)
	decl := h.mustCreate(t, "2025-07", domain.FlowIntroduction)

	german := h.seedProcessedDoc(t, strPtr("DE 123 456 789"), "Siemens AG", "RE-4711", "2025-07-12", "1250.00")
	h.seedProcessedDoc(t, strPtr("EL123456789"), "Hellenic Parts", "GR-88", "2025-07-20", "300.00")
	h.seedProcessedDoc(t, strPtr("FR40303265045"), "Fournisseur SARL", "F-2025-19", "2025-07-05", "990.00")
	h.seedProcessedDoc(t, nil, "No VAT Ltd", "NV-1", "2025-07-09", "120.00")
	h.seedProcessedDoc(t, strPtr("DE999999999"), "Siemens AG", "RE-4800", "2025-06-28", "770.00")

	resp, err := h.svc.Generate(orgCtx(), decl.ID.String())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Added != 2 {
		t.Fatalf("expected 2 generated lines, got %d", resp.Added)
	}
	if len(resp.Lines) != 2 {
		t.Fatalf("expected 2 lines on detail, got %d", len(resp.Lines))
	}

	byCountry := make(map[string]domain.Line, len(resp.Lines))
	for _, line := range resp.Lines {
		byCountry[line.CountryCode] = line
	}

	de, ok := byCountry["DE"]
	if !ok {
		t.Fatalf("expected a DE line, got %+v", resp.Lines)
	}
	if de.DocumentID == nil || *de.DocumentID != german {
		t.Fatalf("expected DE line sourced from document %v, got %+v", german, de)
	}
	if !de.Value.Equal(decimal.RequireFromString("1250.00")) {
		t.Fatalf("expected net amount on line, got %s", de.Value)
	}
	if de.HSCode != "84713000" {
		t.Fatalf("expected suggested code on line, got %q", de.HSCode)
	}
	if de.Description != "Siemens AG RE-4711" {
		t.Fatalf("unexpected description %q", de.Description)
	}
	if de.Nature != domain.NatureDefault {
		t.Fatalf("expected default nature, got %q", de.Nature)
	}

	// Greek VAT numbers carry the EL prefix but declare as GR.
	if _, ok := byCountry["GR"]; !ok {
		t.Fatalf("expected a GR line, got %+v", resp.Lines)
	}

	if !resp.TotalValue.Equal(decimal.RequireFromString("1550.00")) {
		t.Fatalf("expected total 1550.00, got %s", resp.TotalValue)
	}

	// A second run must not duplicate lines already sourced.
	again, err := h.svc.Generate(orgCtx(), decl.ID.String())
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if again.Added != 0 || len(again.Lines) != 2 {
		t.Fatalf("expected idempotent re-run, added %d with %d lines", again.Added, len(again.Lines))
	}
}

func TestGenerateIntroductionWithoutSuggestions(t *testing.T) {
	h := newHarness(t)
	h.hscodes.unavailable = true
	decl := h.mustCreate(t, "2025-07", domain.FlowIntroduction)
	h.seedProcessedDoc(t, strPtr("IT12345678901"), "Ferrari SpA", "IT-1", "2025-07-03", "5000.00")

	resp, err := h.svc.Generate(orgCtx(), decl.ID.String())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Added != 1 {
		t.Fatalf("expected 1 line, got %d", resp.Added)
	}
	if resp.Lines[0].HSCode != "" {
		t.Fatalf("expected unclassified line when suggestions fail, got %q", resp.Lines[0].HSCode)
	}
}

func TestGenerateExpedition(t *testing.T) {
	h := newHarness(t)
	decl := h.mustCreate(t, "2025-07", domain.FlowExpedition)

	july := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	italian := h.seedSaleInvoice(t, "FAC-2025-000021", "Bella Cucina Srl", strPtr("IT98765432109"), invoicedomain.InvoiceStatusOpen, july, "2400.00")
	h.seedSaleInvoice(t, "FAC-2025-000022", "Van Dijk BV", strPtr("NL123456789B01"), invoicedomain.InvoiceStatusPaid, july.AddDate(0, 0, 5), "800.00")
	h.seedSaleInvoice(t, "FAC-2025-000023", "Draft GmbH", strPtr("DE111111111"), invoicedomain.InvoiceStatusDraft, july, "999.00")
	h.seedSaleInvoice(t, "FAC-2025-000024", "Client Local", nil, invoicedomain.InvoiceStatusOpen, july, "150.00")
	h.seedSaleInvoice(t, "FAC-2025-000025", "Late Kft", strPtr("HU12345678"), invoicedomain.InvoiceStatusOpen, july.AddDate(0, 1, 0), "420.00")

	resp, err := h.svc.Generate(orgCtx(), decl.ID.String())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Added != 2 {
		t.Fatalf("expected 2 generated lines, got %d", resp.Added)
	}

	byCountry := make(map[string]domain.Line, len(resp.Lines))
	for _, line := range resp.Lines {
		byCountry[line.CountryCode] = line
	}
	it, ok := byCountry["IT"]
	if !ok {
		t.Fatalf("expected an IT line, got %+v", resp.Lines)
	}
	if it.InvoiceID == nil || *it.InvoiceID != italian {
		t.Fatalf("expected IT line sourced from invoice %v, got %+v", italian, it)
	}
	if !it.Value.Equal(decimal.RequireFromString("2400.00")) {
		t.Fatalf("expected invoice net on line, got %s", it.Value)
	}
	if _, ok := byCountry["NL"]; !ok {
		t.Fatalf("expected a NL line, got %+v", resp.Lines)
	}
}

func TestGenerateRejectsNonDraft(t *testing.T) {
	h := newHarness(t)
	decl := h.mustCreate(t, "2025-07", domain.FlowIntroduction)
	if _, err := h.svc.AddLine(orgCtx(), decl.ID.String(), validLine("machine parts")); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := h.svc.Validate(orgCtx(), decl.ID.String()); err != nil {
		t.Fatalf("validate: %v", err)
	}

	_, err := h.svc.Generate(orgCtx(), decl.ID.String())
	if !errors.Is(err, domain.ErrNotDraft) {
		t.Fatalf("expected ErrNotDraft, got %v", err)
	}
}

func TestLineEditing(t *testing.T) {
	h := newHarness(t)
	decl := h.mustCreate(t, "2025-07", domain.FlowIntroduction)

	line, err := h.svc.AddLine(orgCtx(), decl.ID.String(), validLine("steel coils"))
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if line.Nature != domain.NatureDefault {
		t.Fatalf("expected default nature, got %q", line.Nature)
	}

	mass := decimal.RequireFromString("120.500")
	updated, err := h.svc.UpdateLine(orgCtx(), decl.ID.String(), line.ID.String(), domain.UpdateLineRequest{
		HSCode:      strPtr("72083900"),
		CountryCode: strPtr("be"),
		MassKG:      &mass,
	})
	if err != nil {
		t.Fatalf("update line: %v", err)
	}
	if updated.HSCode != "72083900" || updated.CountryCode != "BE" {
		t.Fatalf("unexpected updated line %+v", updated)
	}
	if updated.MassKG == nil || !updated.MassKG.Equal(mass) {
		t.Fatalf("expected mass on line, got %+v", updated.MassKG)
	}
	// Untouched fields keep their values.
	if updated.Description != "steel coils" {
		t.Fatalf("expected description preserved, got %q", updated.Description)
	}

	_, err = h.svc.UpdateLine(orgCtx(), decl.ID.String(), h.genID.Generate().String(), domain.UpdateLineRequest{})
	if !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}

	if err := h.svc.DeleteLine(orgCtx(), decl.ID.String(), line.ID.String()); err != nil {
		t.Fatalf("delete line: %v", err)
	}
	if err := h.svc.DeleteLine(orgCtx(), decl.ID.String(), line.ID.String()); !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound on second delete, got %v", err)
	}
}

func TestLineEditingLockedOutsideDraft(t *testing.T) {
	h := newHarness(t)
	decl := h.mustCreate(t, "2025-07", domain.FlowIntroduction)
	line, err := h.svc.AddLine(orgCtx(), decl.ID.String(), validLine("machine parts"))
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := h.svc.Validate(orgCtx(), decl.ID.String()); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if _, err := h.svc.AddLine(orgCtx(), decl.ID.String(), validLine("more parts")); !errors.Is(err, domain.ErrNotDraft) {
		t.Fatalf("expected ErrNotDraft on add, got %v", err)
	}
	_, err = h.svc.UpdateLine(orgCtx(), decl.ID.String(), line.ID.String(), domain.UpdateLineRequest{HSCode: strPtr("72083900")})
	if !errors.Is(err, domain.ErrNotDraft) {
		t.Fatalf("expected ErrNotDraft on update, got %v", err)
	}
	if err := h.svc.DeleteLine(orgCtx(), decl.ID.String(), line.ID.String()); !errors.Is(err, domain.ErrNotDraft) {
		t.Fatalf("expected ErrNotDraft on delete, got %v", err)
	}
}

func TestValidateFlagsBadLines(t *testing.T) {
	h := newHarness(t)
	decl := h.mustCreate(t, "2025-07", domain.FlowIntroduction)

	_, err := h.svc.AddLine(orgCtx(), decl.ID.String(), domain.LineInput{
		Description: "mystery goods",
		HSCode:      "1234",
		CountryCode: "US",
		Value:       decimal.Zero,
	})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}

	_, err = h.svc.Validate(orgCtx(), decl.ID.String())
	if !errors.Is(err, domain.ErrInvalidLines) {
		t.Fatalf("expected ErrInvalidLines, got %v", err)
	}
	var lineErr *domain.LineValidationError
	if !errors.As(err, &lineErr) {
		t.Fatalf("expected LineValidationError, got %T", err)
	}
	if len(lineErr.Issues) != 3 {
		t.Fatalf("expected 3 issues, got %+v", lineErr.Issues)
	}
	fields := make(map[string]bool, len(lineErr.Issues))
	for _, issue := range lineErr.Issues {
		fields[issue.Field] = true
	}
	if !fields["hs_code"] || !fields["value"] || !fields["country_code"] {
		t.Fatalf("unexpected issue fields %+v", lineErr.Issues)
	}

	// A failed validation leaves the declaration editable.
	detail, err := h.svc.GetByID(orgCtx(), decl.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Status != domain.StatusDraft {
		t.Fatalf("expected declaration still draft, got %q", detail.Status)
	}
}

func TestStatusTransitions(t *testing.T) {
	h := newHarness(t)
	decl := h.mustCreate(t, "2025-07", domain.FlowIntroduction)
	if _, err := h.svc.AddLine(orgCtx(), decl.ID.String(), validLine("machine parts")); err != nil {
		t.Fatalf("add line: %v", err)
	}

	// Submitting a draft must fail; only validated declarations close.
	if _, err := h.svc.Submit(orgCtx(), decl.ID.String()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict on draft submit, got %v", err)
	}

	validated, err := h.svc.Validate(orgCtx(), decl.ID.String())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.Status != domain.StatusValidated || validated.ValidatedAt == nil {
		t.Fatalf("unexpected validated declaration %+v", validated)
	}
	if _, err := h.svc.Validate(orgCtx(), decl.ID.String()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict on re-validate, got %v", err)
	}

	reopened, err := h.svc.Reopen(orgCtx(), decl.ID.String())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Status != domain.StatusDraft || reopened.ValidatedAt != nil {
		t.Fatalf("unexpected reopened declaration %+v", reopened)
	}

	if _, err := h.svc.Validate(orgCtx(), decl.ID.String()); err != nil {
		t.Fatalf("re-validate: %v", err)
	}
	submitted, err := h.svc.Submit(orgCtx(), decl.ID.String())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Status != domain.StatusSubmitted || submitted.SubmittedAt == nil {
		t.Fatalf("unexpected submitted declaration %+v", submitted)
	}

	// Submitted declarations are immutable.
	if _, err := h.svc.Reopen(orgCtx(), decl.ID.String()); !errors.Is(err, domain.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict on submitted reopen, got %v", err)
	}
}

func TestExportWorkbook(t *testing.T) {
	h := newHarness(t)
	decl := h.mustCreate(t, "2025-07", domain.FlowExpedition)

	mass := decimal.RequireFromString("42.000")
	_, err := h.svc.AddLine(orgCtx(), decl.ID.String(), domain.LineInput{
		Description: "espresso machines",
		HSCode:      "84198100",
		CountryCode: "IT",
		Value:       decimal.RequireFromString("2400.00"),
		MassKG:      &mass,
	})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := h.svc.AddLine(orgCtx(), decl.ID.String(), validLine("spare parts")); err != nil {
		t.Fatalf("add line: %v", err)
	}

	res, err := h.svc.Export(orgCtx(), decl.ID.String())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.Filename != "deb_2025-07_expedition.xlsx" {
		t.Fatalf("unexpected filename %q", res.Filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(res.Content))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	header, err := f.GetCellValue("DEB", "B1")
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if header != "Nomenclature (NC8)" {
		t.Fatalf("unexpected header cell %q", header)
	}
	code, err := f.GetCellValue("DEB", "B2")
	if err != nil {
		t.Fatalf("read line: %v", err)
	}
	if code != "84198100" {
		t.Fatalf("unexpected line code %q", code)
	}
	total, err := f.GetCellValue("DEB", "A4")
	if err != nil {
		t.Fatalf("read totals: %v", err)
	}
	if total != "TOTAL" {
		t.Fatalf("expected totals row, got %q", total)
	}
}

func TestGetByIDUnknown(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.GetByID(orgCtx(), h.genID.Generate().String())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = h.svc.GetByID(orgCtx(), "not-a-snowflake")
	if !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestListFiltersAndScopes(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "2025-06", domain.FlowIntroduction)
	h.clock.Advance(time.Second)
	h.mustCreate(t, "2025-07", domain.FlowIntroduction)
	h.clock.Advance(time.Second)
	h.mustCreate(t, "2025-07", domain.FlowExpedition)

	resp, err := h.svc.List(orgCtx(), domain.ListRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.Declarations) != 3 {
		t.Fatalf("expected 3 declarations, got %d", len(resp.Declarations))
	}

	resp, err = h.svc.List(orgCtx(), domain.ListRequest{Period: "2025-07", Flow: "introduction"})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(resp.Declarations) != 1 || resp.Declarations[0].Period != "2025-07" {
		t.Fatalf("unexpected filtered result %+v", resp.Declarations)
	}

	// Another org sees nothing.
	otherCtx := orgcontext.WithOrgID(context.Background(), int64(testOrgID)+1)
	resp, err = h.svc.List(otherCtx, domain.ListRequest{})
	if err != nil {
		t.Fatalf("other org list: %v", err)
	}
	if len(resp.Declarations) != 0 {
		t.Fatalf("expected empty list for other org, got %d", len(resp.Declarations))
	}
}
