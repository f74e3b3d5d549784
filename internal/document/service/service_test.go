package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	alertdomain "github.com/zyalhor1961/corematch-web-sub006/internal/alert/domain"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	documentrepo "github.com/zyalhor1961/corematch-web-sub006/internal/document/repository"
	extractiondomain "github.com/zyalhor1961/corematch-web-sub006/internal/extraction/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/extraction/provider/fake"
	extractionrepo "github.com/zyalhor1961/corematch-web-sub006/internal/extraction/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/liveevents"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/internal/pipeline"
	"github.com/zyalhor1961/corematch-web-sub006/internal/storage"
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

type noopAlerts struct{}

func (noopAlerts) Emit(ctx context.Context, req alertdomain.EmitRequest) error { return nil }
func (noopAlerts) List(ctx context.Context, req alertdomain.ListRequest) (alertdomain.ListResponse, error) {
	return alertdomain.ListResponse{}, nil
}
func (noopAlerts) Acknowledge(ctx context.Context, id string) error { return nil }

type svcHarness struct {
	db       *gorm.DB
	svc      domain.Service
	repo     domain.Repository
	fields   extractiondomain.Repository
	provider *fake.Provider
	storage  *storage.Memory
	clock    *clock.FakeClock
	genID    *snowflake.Node
}

func newService(t *testing.T) *svcHarness {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&domain.Document{}, &extractiondomain.ExtractedField{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	h := &svcHarness{
		db:       dbConn,
		repo:     documentrepo.Provide(),
		fields:   extractionrepo.Provide(),
		provider: fake.New(),
		storage:  storage.NewMemory(),
		clock:    clock.NewFakeClock(time.Date(2025, 7, 31, 10, 30, 0, 0, time.UTC)),
		genID:    node,
	}

	vocab := config.NewStaticVocabulary(config.DefaultVocabularyConfig())
	processor := pipeline.NewProcessor(pipeline.Params{
		DB:         dbConn,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      h.clock,
		Config:     config.Config{Pipeline: config.PipelineConfig{BatchSize: 10}},
		Docs:       h.repo,
		Fields:     h.fields,
		Provider:   h.provider,
		Storage:    h.storage,
		Hub:        liveevents.NewHub(nil),
		Vocabulary: vocab,
		Alerts:     noopAlerts{},
	})

	h.svc = New(Params{
		DB:         dbConn,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      h.clock,
		Repo:       h.repo,
		Fields:     h.fields,
		Provider:   h.provider,
		Storage:    h.storage,
		Pipeline:   processor,
		Vocabulary: vocab,
		Audit:      noopAudit{},
	})
	return h
}

func orgCtx() context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(testOrgID))
}

func (h *svcHarness) upload(t *testing.T, filename string) domain.Document {
	t.Helper()

	doc, err := h.svc.Upload(orgCtx(), domain.UploadRequest{
		Filename:    filename,
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.4 test"),
	})
	if err != nil {
		t.Fatalf("failed to upload: %v", err)
	}
	return doc
}

// seedFields simulates a prior analysis generation: inserts rows at the
// given revision and points the document at it.
func (h *svcHarness) seedFields(t *testing.T, docID snowflake.ID, revision int, pairs ...[2]string) {
	t.Helper()

	rows := make([]*extractiondomain.ExtractedField, 0, len(pairs))
	for _, pair := range pairs {
		value := pair[1]
		rows = append(rows, &extractiondomain.ExtractedField{
			ID:         h.genID.Generate(),
			OrgID:      testOrgID,
			DocumentID: docID,
			Revision:   revision,
			FieldName:  pair[0],
			Value:      &value,
			CreatedAt:  h.clock.Now(),
		})
	}
	if err := h.fields.InsertBatch(context.Background(), h.db, rows); err != nil {
		t.Fatalf("failed to seed fields: %v", err)
	}
	if err := h.repo.SetAnalysisRevision(context.Background(), h.db, docID, revision, h.clock.Now()); err != nil {
		t.Fatalf("failed to set revision: %v", err)
	}
}

func TestUploadStoresDocumentAndBytes(t *testing.T) {
	h := newService(t)

	doc := h.upload(t, "Facture Émise 2025.PDF")
	if doc.Status != domain.StatusUploaded {
		t.Errorf("expected status uploaded, got %s", doc.Status)
	}
	if doc.Filename != "facture-emise-2025.pdf" {
		t.Errorf("expected slugged filename, got %s", doc.Filename)
	}
	wantPrefix := "org/" + testOrgID.String() + "/documents/" + doc.ID.String() + "/"
	if !strings.HasPrefix(doc.StoragePath, wantPrefix) {
		t.Errorf("unexpected storage path %s", doc.StoragePath)
	}
	if doc.ByteSize != int64(len("%PDF-1.4 test")) {
		t.Errorf("unexpected byte size %d", doc.ByteSize)
	}

	content, err := h.storage.Get(context.Background(), doc.StoragePath)
	if err != nil {
		t.Fatalf("expected stored bytes: %v", err)
	}
	if string(content) != "%PDF-1.4 test" {
		t.Errorf("stored bytes mismatch: %q", content)
	}

	stored, err := h.repo.FindByID(context.Background(), h.db, testOrgID, doc.ID)
	if err != nil || stored == nil {
		t.Fatalf("expected persisted row, got %v err %v", stored, err)
	}
}

func TestUploadValidation(t *testing.T) {
	h := newService(t)

	_, err := h.svc.Upload(context.Background(), domain.UploadRequest{Content: []byte("x")})
	if !errors.Is(err, domain.ErrInvalidOrganization) {
		t.Errorf("expected ErrInvalidOrganization, got %v", err)
	}

	_, err = h.svc.Upload(orgCtx(), domain.UploadRequest{Filename: "a.pdf"})
	if !errors.Is(err, domain.ErrEmptyUpload) {
		t.Errorf("expected ErrEmptyUpload, got %v", err)
	}

	_, err = h.svc.Upload(orgCtx(), domain.UploadRequest{Filename: "a.pdf", Content: []byte("x"), DocType: "contract"})
	if !errors.Is(err, domain.ErrInvalidDocType) {
		t.Errorf("expected ErrInvalidDocType, got %v", err)
	}
}

func TestUploadDefaultsDocType(t *testing.T) {
	h := newService(t)

	doc := h.upload(t, "a.pdf")
	if doc.DocType != domain.DocTypeInvoice {
		t.Errorf("expected default doc type invoice, got %s", doc.DocType)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	h := newService(t)

	first := h.upload(t, "a.pdf")
	h.upload(t, "b.pdf")

	ok, err := h.repo.MarkProcessing(context.Background(), h.db, first.ID, domain.StatusUploaded, 1, h.clock.Now())
	if err != nil || !ok {
		t.Fatalf("failed to transition: ok=%v err=%v", ok, err)
	}

	resp, err := h.svc.List(orgCtx(), domain.ListRequest{Status: "uploaded"})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(resp.Documents) != 1 {
		t.Fatalf("expected 1 uploaded document, got %d", len(resp.Documents))
	}
	if resp.Documents[0].Status != domain.StatusUploaded {
		t.Errorf("unexpected status %s", resp.Documents[0].Status)
	}
}

func TestListPaginates(t *testing.T) {
	h := newService(t)

	h.upload(t, "a.pdf")
	h.clock.Advance(time.Second)
	h.upload(t, "b.pdf")

	resp, err := h.svc.List(orgCtx(), domain.ListRequest{PageSize: 1})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(resp.Documents) != 1 {
		t.Fatalf("expected 1 document on page, got %d", len(resp.Documents))
	}
	if !resp.HasMore {
		t.Error("expected has_more")
	}
	if resp.NextPageToken == "" {
		t.Error("expected next page token")
	}
}

func TestListRequiresOrg(t *testing.T) {
	h := newService(t)

	_, err := h.svc.List(context.Background(), domain.ListRequest{})
	if !errors.Is(err, domain.ErrInvalidOrganization) {
		t.Errorf("expected ErrInvalidOrganization, got %v", err)
	}
}

func TestGetByIDReturnsCurrentRevisionFields(t *testing.T) {
	h := newService(t)

	doc := h.upload(t, "a.pdf")
	h.seedFields(t, doc.ID, 1, [2]string{"Total TTC", "150.00"})
	h.seedFields(t, doc.ID, 2, [2]string{"Montant HT", "125.00"}, [2]string{"Total TTC", "150.00"})

	detail, err := h.svc.GetByID(orgCtx(), doc.ID.String())
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if detail.AnalysisRevision != 2 {
		t.Errorf("expected revision 2, got %d", detail.AnalysisRevision)
	}
	if len(detail.Fields) != 2 {
		t.Fatalf("expected 2 current-revision fields, got %d", len(detail.Fields))
	}
	for _, f := range detail.Fields {
		if f.Revision != 2 {
			t.Errorf("expected only revision 2 rows, got revision %d", f.Revision)
		}
	}
}

func TestGetByIDErrors(t *testing.T) {
	h := newService(t)

	_, err := h.svc.GetByID(orgCtx(), "not-a-snowflake")
	if !errors.Is(err, domain.ErrInvalidID) {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}

	_, err = h.svc.GetByID(orgCtx(), snowflake.ID(999).String())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSoftDeletes(t *testing.T) {
	h := newService(t)

	doc := h.upload(t, "a.pdf")
	if err := h.svc.Delete(orgCtx(), doc.ID.String()); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	_, err := h.svc.GetByID(orgCtx(), doc.ID.String())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	if err := h.svc.Delete(orgCtx(), doc.ID.String()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	// Soft delete keeps the stored bytes.
	if _, err := h.storage.Get(context.Background(), doc.StoragePath); err != nil {
		t.Errorf("expected blob to survive soft delete: %v", err)
	}
}

func TestAnalyzeRunsPipeline(t *testing.T) {
	h := newService(t)

	doc := h.upload(t, "a.pdf")
	processed, err := h.svc.Analyze(orgCtx(), doc.ID.String())
	if err != nil {
		t.Fatalf("failed to analyze: %v", err)
	}
	if processed.Status != domain.StatusProcessed {
		t.Fatalf("expected status processed, got %s", processed.Status)
	}
	if processed.AnalysisRevision != 1 {
		t.Errorf("expected revision 1, got %d", processed.AnalysisRevision)
	}
	if processed.VendorName == nil || *processed.VendorName != "ACME SARL" {
		t.Errorf("expected normalized vendor, got %v", processed.VendorName)
	}
}

func TestAnalyzeAgainBumpsRevisionAndKeepsOldRows(t *testing.T) {
	h := newService(t)

	doc := h.upload(t, "a.pdf")
	if _, err := h.svc.Analyze(orgCtx(), doc.ID.String()); err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	again, err := h.svc.Analyze(orgCtx(), doc.ID.String())
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if again.AnalysisRevision != 2 {
		t.Errorf("expected revision 2, got %d", again.AnalysisRevision)
	}

	old, err := h.fields.ListByRevision(context.Background(), h.db, testOrgID, doc.ID, 1)
	if err != nil {
		t.Fatalf("failed to list revision 1: %v", err)
	}
	if len(old) != 6 {
		t.Errorf("expected revision 1 rows to stay untouched, got %d", len(old))
	}
}

func TestAnalyzeConflictWhenProcessing(t *testing.T) {
	h := newService(t)

	doc := h.upload(t, "a.pdf")
	ok, err := h.repo.MarkProcessing(context.Background(), h.db, doc.ID, domain.StatusUploaded, 1, h.clock.Now())
	if err != nil || !ok {
		t.Fatalf("failed to stage conflict: ok=%v err=%v", ok, err)
	}

	_, err = h.svc.Analyze(orgCtx(), doc.ID.String())
	if !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}
}

func TestRemapNormalizesCurrentFields(t *testing.T) {
	h := newService(t)

	doc := h.upload(t, "a.pdf")
	h.seedFields(t, doc.ID, 1,
		[2]string{"Total TTC", "150.00"},
		[2]string{"Montant HT", "125.00"},
	)

	remapped, err := h.svc.Remap(orgCtx(), doc.ID.String())
	if err != nil {
		t.Fatalf("failed to remap: %v", err)
	}
	if remapped.TotalAmount == nil || !remapped.TotalAmount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected total 150, got %v", remapped.TotalAmount)
	}
	if remapped.NetAmount == nil || !remapped.NetAmount.Equal(decimal.NewFromInt(125)) {
		t.Errorf("expected net 125, got %v", remapped.NetAmount)
	}
	if h.provider.Calls() != 0 {
		t.Errorf("expected no provider calls, got %d", h.provider.Calls())
	}
}

func TestRemapZeroFieldsTriggersSingleReanalysis(t *testing.T) {
	h := newService(t)

	doc := h.upload(t, "a.pdf")
	remapped, err := h.svc.Remap(orgCtx(), doc.ID.String())
	if err != nil {
		t.Fatalf("failed to remap: %v", err)
	}
	if h.provider.Calls() != 1 {
		t.Errorf("expected exactly one provider call, got %d", h.provider.Calls())
	}
	if remapped.AnalysisRevision != 1 {
		t.Errorf("expected revision bump to 1, got %d", remapped.AnalysisRevision)
	}
	if remapped.VendorName == nil || *remapped.VendorName != "ACME SARL" {
		t.Errorf("expected normalized vendor, got %v", remapped.VendorName)
	}

	count, err := h.fields.CountByRevision(context.Background(), h.db, testOrgID, doc.ID, 1)
	if err != nil {
		t.Fatalf("failed to count fields: %v", err)
	}
	if count != 6 {
		t.Errorf("expected 6 inserted fields, got %d", count)
	}
}

func TestRemapStillEmptyAfterReanalysisFails(t *testing.T) {
	h := newService(t)

	doc := h.upload(t, "a.pdf")
	h.provider.SetFields()

	_, err := h.svc.Remap(orgCtx(), doc.ID.String())
	if !errors.Is(err, domain.ErrNoExtractedFields) {
		t.Fatalf("expected ErrNoExtractedFields, got %v", err)
	}
	if h.provider.Calls() != 1 {
		t.Errorf("expected exactly one provider call, got %d", h.provider.Calls())
	}

	reloaded, err := h.repo.FindByID(context.Background(), h.db, testOrgID, doc.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if reloaded.AnalysisRevision != 0 {
		t.Errorf("expected revision to stay 0, got %d", reloaded.AnalysisRevision)
	}
}

func TestRemapFieldsWithoutMatchesSucceedsWithNulls(t *testing.T) {
	h := newService(t)

	doc := h.upload(t, "a.pdf")
	h.seedFields(t, doc.ID, 1, [2]string{"Mystery Field", "???"})

	remapped, err := h.svc.Remap(orgCtx(), doc.ID.String())
	if err != nil {
		t.Fatalf("expected remap to succeed, got %v", err)
	}
	if remapped.TotalAmount != nil || remapped.VendorName != nil || remapped.DocumentDate != nil {
		t.Error("expected null attributes when nothing matched")
	}
	if remapped.ProcessingNote == nil || !strings.Contains(*remapped.ProcessingNote, "Normalized 1 extracted field(s)") {
		t.Errorf("unexpected processing note: %v", remapped.ProcessingNote)
	}
	if h.provider.Calls() != 0 {
		t.Errorf("expected no provider calls, got %d", h.provider.Calls())
	}
}

func TestSafeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Facture Émise 2025.PDF", "facture-emise-2025.pdf"},
		{"../../etc/passwd", "passwd"},
		{"", "document"},
		{"notes", "notes"},
		{"archive.tar.gz", "archive-tar.gz"},
	}
	for _, tc := range cases {
		if got := safeFilename(tc.in); got != tc.want {
			t.Errorf("safeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
