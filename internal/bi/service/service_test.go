package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/zyalhor1961/corematch-web-sub006/internal/bi/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	documentdomain "github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	extractiondomain "github.com/zyalhor1961/corematch-web-sub006/internal/extraction/domain"
	hscodedomain "github.com/zyalhor1961/corematch-web-sub006/internal/hscode/domain"
	invoicedomain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
	journaldomain "github.com/zyalhor1961/corematch-web-sub006/internal/journal/domain"
	leaddomain "github.com/zyalhor1961/corematch-web-sub006/internal/lead/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	screeningdomain "github.com/zyalhor1961/corematch-web-sub006/internal/screening/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testOrgID  = snowflake.ID(8301)
	otherOrgID = snowflake.ID(8302)
)

type harness struct {
	db    *gorm.DB
	svc   domain.Service
	clock *clock.FakeClock
	genID *snowflake.Node
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	err = dbConn.AutoMigrate(
		&documentdomain.Document{},
		&extractiondomain.ExtractedField{},
		&invoicedomain.Invoice{},
		&journaldomain.JournalEntry{},
		&leaddomain.Lead{},
		&screeningdomain.ScreeningJob{},
		&hscodedomain.HSCode{},
		&hscodedomain.Usage{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(11)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	h := &harness{
		db:    dbConn,
		clock: clock.NewFakeClock(time.Date(2025, 8, 4, 9, 0, 0, 0, time.UTC)),
		genID: node,
	}
	h.svc = NewService(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		Clock: h.clock,
	})
	return h
}

func orgCtx() context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(testOrgID))
}

func (h *harness) create(t *testing.T, value any) {
	t.Helper()
	if err := h.db.Create(value).Error; err != nil {
		t.Fatalf("failed to seed %T: %v", value, err)
	}
}

func (h *harness) seedDocument(t *testing.T, orgID snowflake.ID, status documentdomain.Status, deleted bool) snowflake.ID {
	t.Helper()
	doc := documentdomain.Document{
		ID:          h.genID.Generate(),
		OrgID:       orgID,
		Filename:    "doc.pdf",
		StoragePath: "documents/doc.pdf",
		Status:      status,
		CreatedAt:   h.clock.Now(),
		UpdatedAt:   h.clock.Now(),
	}
	if deleted {
		at := h.clock.Now()
		doc.DeletedAt = &at
	}
	h.create(t, &doc)
	return doc.ID
}

func (h *harness) seedField(t *testing.T, docID snowflake.ID, age time.Duration) {
	t.Helper()
	value := "some value"
	h.create(t, &extractiondomain.ExtractedField{
		ID:         h.genID.Generate(),
		OrgID:      testOrgID,
		DocumentID: docID,
		FieldName:  "Total TTC",
		Value:      &value,
		CreatedAt:  h.clock.Now().Add(-age),
	})
}

func (h *harness) seedInvoice(t *testing.T, direction invoicedomain.InvoiceDirection, status invoicedomain.InvoiceStatus, issued time.Time, net, total string) {
	t.Helper()
	h.create(t, &invoicedomain.Invoice{
		ID:            h.genID.Generate(),
		OrgID:         testOrgID,
		InvoiceNumber: "INV-000001",
		Direction:     direction,
		CustomerName:  "Client",
		Status:        status,
		Currency:      "EUR",
		IssueDate:     &issued,
		NetAmount:     decimal.RequireFromString(net),
		TotalAmount:   decimal.RequireFromString(total),
		CreatedAt:     h.clock.Now(),
		UpdatedAt:     h.clock.Now(),
	})
}

func (h *harness) seedScreening(t *testing.T, status screeningdomain.JobStatus, cacheHit bool) {
	t.Helper()
	h.create(t, &screeningdomain.ScreeningJob{
		ID:             h.genID.Generate(),
		OrgID:          testOrgID,
		DocumentID:     h.genID.Generate(),
		JobDescription: "Backend engineer",
		Status:         status,
		CacheHit:       cacheHit,
		CreatedAt:      h.clock.Now(),
		UpdatedAt:      h.clock.Now(),
	})
}

func TestOverviewAggregates(t *testing.T) {
	h := newHarness(t)

	docA := h.seedDocument(t, testOrgID, documentdomain.StatusProcessed, false)
	h.seedDocument(t, testOrgID, documentdomain.StatusProcessed, false)
	h.seedDocument(t, testOrgID, documentdomain.StatusFailed, false)
	h.seedDocument(t, testOrgID, documentdomain.StatusUploaded, true)
	h.seedDocument(t, otherOrgID, documentdomain.StatusProcessed, false)

	h.seedField(t, docA, time.Hour)
	h.seedField(t, docA, 10*24*time.Hour)
	h.seedField(t, docA, 40*24*time.Hour)

	h.seedInvoice(t, invoicedomain.DirectionSale, invoicedomain.InvoiceStatusOpen, time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC), "100.00", "120.00")
	h.seedInvoice(t, invoicedomain.DirectionSale, invoicedomain.InvoiceStatusPaid, time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), "50.00", "60.00")
	h.seedInvoice(t, invoicedomain.DirectionSale, invoicedomain.InvoiceStatusDraft, time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC), "999.00", "999.00")
	h.seedInvoice(t, invoicedomain.DirectionPurchase, invoicedomain.InvoiceStatusOpen, time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC), "500.00", "600.00")
	h.seedInvoice(t, invoicedomain.DirectionSale, invoicedomain.InvoiceStatusOpen, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), "42.00", "42.00")

	h.create(t, &journaldomain.JournalEntry{
		ID:        h.genID.Generate(),
		OrgID:     testOrgID,
		EntryDate: h.clock.Now(),
		Status:    journaldomain.StatusDraft,
		CreatedAt: h.clock.Now(),
		UpdatedAt: h.clock.Now(),
	})
	for i := 0; i < 2; i++ {
		h.create(t, &journaldomain.JournalEntry{
			ID:        h.genID.Generate(),
			OrgID:     testOrgID,
			EntryDate: h.clock.Now(),
			Status:    journaldomain.StatusPosted,
			CreatedAt: h.clock.Now(),
			UpdatedAt: h.clock.Now(),
		})
	}

	for i := 0; i < 2; i++ {
		h.create(t, &leaddomain.Lead{
			ID:          h.genID.Generate(),
			OrgID:       testOrgID,
			CompanyName: "Prospect",
			Status:      leaddomain.StatusNew,
			CreatedAt:   h.clock.Now(),
			UpdatedAt:   h.clock.Now(),
		})
	}
	h.create(t, &leaddomain.Lead{
		ID:          h.genID.Generate(),
		OrgID:       testOrgID,
		CompanyName: "Customer",
		Status:      leaddomain.StatusConverted,
		CreatedAt:   h.clock.Now(),
		UpdatedAt:   h.clock.Now(),
	})
	h.create(t, &leaddomain.Lead{
		ID:          h.genID.Generate(),
		OrgID:       otherOrgID,
		CompanyName: "Not ours",
		Status:      leaddomain.StatusNew,
		CreatedAt:   h.clock.Now(),
		UpdatedAt:   h.clock.Now(),
	})

	h.seedScreening(t, screeningdomain.JobStatusCompleted, true)
	h.seedScreening(t, screeningdomain.JobStatusCompleted, false)
	h.seedScreening(t, screeningdomain.JobStatusFailed, false)
	h.seedScreening(t, screeningdomain.JobStatusPending, false)

	overview, err := h.svc.Overview(orgCtx())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}

	if overview.Documents.Total != 3 {
		t.Fatalf("expected 3 documents, got %d", overview.Documents.Total)
	}
	if overview.Documents.ByStatus["processed"] != 2 || overview.Documents.ByStatus["failed"] != 1 {
		t.Fatalf("unexpected document counts %+v", overview.Documents.ByStatus)
	}
	if overview.Documents.FieldsExtracted != 2 {
		t.Fatalf("expected 2 recent fields, got %d", overview.Documents.FieldsExtracted)
	}

	if len(overview.InvoiceMonthly) != invoiceMonths {
		t.Fatalf("expected %d months, got %d", invoiceMonths, len(overview.InvoiceMonthly))
	}
	if overview.InvoiceMonthly[0].Month != "2025-03" || overview.InvoiceMonthly[5].Month != "2025-08" {
		t.Fatalf("unexpected month range %s..%s", overview.InvoiceMonthly[0].Month, overview.InvoiceMonthly[5].Month)
	}
	byMonth := make(map[string]domain.MonthlyInvoiceTotal, len(overview.InvoiceMonthly))
	for _, m := range overview.InvoiceMonthly {
		byMonth[m.Month] = m
	}
	july := byMonth["2025-07"]
	if july.Count != 1 || !july.Net.Equal(decimal.RequireFromString("100.00")) || !july.Total.Equal(decimal.RequireFromString("120.00")) {
		t.Fatalf("unexpected July totals %+v", july)
	}
	june := byMonth["2025-06"]
	if june.Count != 1 || !june.Net.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("unexpected June totals %+v", june)
	}
	if march := byMonth["2025-03"]; march.Count != 0 || !march.Net.IsZero() {
		t.Fatalf("expected zero-filled March, got %+v", march)
	}

	if overview.JournalEntries["draft"] != 1 || overview.JournalEntries["posted"] != 2 {
		t.Fatalf("unexpected journal counts %+v", overview.JournalEntries)
	}
	if overview.LeadPipeline["new"] != 2 || overview.LeadPipeline["converted"] != 1 {
		t.Fatalf("unexpected lead pipeline %+v", overview.LeadPipeline)
	}

	if overview.Screening.ByStatus["completed"] != 2 || overview.Screening.ByStatus["failed"] != 1 || overview.Screening.ByStatus["pending"] != 1 {
		t.Fatalf("unexpected screening counts %+v", overview.Screening.ByStatus)
	}
	if overview.Screening.CacheHits != 1 {
		t.Fatalf("expected 1 cache hit, got %d", overview.Screening.CacheHits)
	}
	if overview.Screening.CacheHitRatio == nil || *overview.Screening.CacheHitRatio != 0.5 {
		t.Fatalf("expected cache-hit ratio 0.5, got %v", overview.Screening.CacheHitRatio)
	}
}

func TestOverviewTopHSCodes(t *testing.T) {
	h := newHarness(t)

	learned := hscodedomain.HSCode{
		ID:          h.genID.Generate(),
		OrgID:       testOrgID,
		Code:        "84713000",
		Description: "Portable computers",
		Source:      hscodedomain.SourceLearned,
		UsageCount:  5,
		CreatedAt:   h.clock.Now(),
		UpdatedAt:   h.clock.Now(),
	}
	h.create(t, &learned)
	seeded := hscodedomain.HSCode{
		ID:          h.genID.Generate(),
		OrgID:       hscodedomain.SeedOrgID,
		Code:        "09011100",
		Description: "Coffee, not roasted",
		Source:      hscodedomain.SourceSeed,
		CreatedAt:   h.clock.Now(),
		UpdatedAt:   h.clock.Now(),
	}
	h.create(t, &seeded)
	// Visible but never used: must not appear in the ranking.
	h.create(t, &hscodedomain.HSCode{
		ID:          h.genID.Generate(),
		OrgID:       hscodedomain.SeedOrgID,
		Code:        "22042100",
		Description: "Wine in small containers",
		Source:      hscodedomain.SourceSeed,
		CreatedAt:   h.clock.Now(),
		UpdatedAt:   h.clock.Now(),
	})
	// Another org's learned row stays out of this org's ranking.
	h.create(t, &hscodedomain.HSCode{
		ID:          h.genID.Generate(),
		OrgID:       otherOrgID,
		Code:        "61091000",
		Description: "Cotton t-shirts",
		Source:      hscodedomain.SourceLearned,
		UsageCount:  50,
		CreatedAt:   h.clock.Now(),
		UpdatedAt:   h.clock.Now(),
	})

	for i := 0; i < 2; i++ {
		h.create(t, &hscodedomain.Usage{
			ID:       h.genID.Generate(),
			OrgID:    testOrgID,
			HSCodeID: learned.ID,
			UsedAt:   h.clock.Now(),
		})
	}
	h.create(t, &hscodedomain.Usage{
		ID:       h.genID.Generate(),
		OrgID:    testOrgID,
		HSCodeID: seeded.ID,
		UsedAt:   h.clock.Now(),
	})
	// Another org's trail on the shared seed row must not count here.
	h.create(t, &hscodedomain.Usage{
		ID:       h.genID.Generate(),
		OrgID:    otherOrgID,
		HSCodeID: seeded.ID,
		UsedAt:   h.clock.Now(),
	})

	overview, err := h.svc.Overview(orgCtx())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}

	if len(overview.TopHSCodes) != 2 {
		t.Fatalf("expected 2 ranked codes, got %+v", overview.TopHSCodes)
	}
	if overview.TopHSCodes[0].Code != "84713000" || overview.TopHSCodes[0].Uses != 7 {
		t.Fatalf("unexpected top code %+v", overview.TopHSCodes[0])
	}
	if overview.TopHSCodes[1].Code != "09011100" || overview.TopHSCodes[1].Uses != 1 {
		t.Fatalf("unexpected second code %+v", overview.TopHSCodes[1])
	}
}

func TestOverviewRequiresOrg(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Overview(context.Background())
	if !errors.Is(err, domain.ErrInvalidOrganization) {
		t.Fatalf("expected ErrInvalidOrganization, got %v", err)
	}
}

func TestOverviewEmptyOrg(t *testing.T) {
	h := newHarness(t)

	overview, err := h.svc.Overview(orgCtx())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.Documents.Total != 0 || len(overview.Documents.ByStatus) != 0 {
		t.Fatalf("expected empty document stats, got %+v", overview.Documents)
	}
	if overview.Screening.CacheHitRatio != nil {
		t.Fatalf("expected nil ratio with no completed jobs, got %v", *overview.Screening.CacheHitRatio)
	}
	if len(overview.InvoiceMonthly) != invoiceMonths {
		t.Fatalf("expected zero-filled months, got %d", len(overview.InvoiceMonthly))
	}
}
