package runner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	documentdomain "github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	documentrepo "github.com/zyalhor1961/corematch-web-sub006/internal/document/repository"
	extractiondomain "github.com/zyalhor1961/corematch-web-sub006/internal/extraction/domain"
	extractionrepo "github.com/zyalhor1961/corematch-web-sub006/internal/extraction/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/llm"
	"github.com/zyalhor1961/corematch-web-sub006/internal/screening/domain"
	screeningrepo "github.com/zyalhor1961/corematch-web-sub006/internal/screening/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/storage"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testOrgID = snowflake.ID(9001)

const goodReply = `{"score": 82, "summary": "Solid backend profile", "strengths": ["Go", "Postgres"], "concerns": ["No French"]}`

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
	db      *gorm.DB
	runner  *Runner
	llm     *fakeLLM
	storage *storage.Memory
	clock   *clock.FakeClock
	genID   *snowflake.Node
	docs    documentdomain.Repository
	fields  extractiondomain.Repository
	jobs    domain.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(
		&documentdomain.Document{},
		&extractiondomain.ExtractedField{},
		&domain.ScreeningJob{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(5)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	h := &harness{
		db:      dbConn,
		llm:     &fakeLLM{reply: goodReply},
		storage: storage.NewMemory(),
		clock:   clock.NewFakeClock(time.Date(2025, 7, 31, 10, 30, 0, 0, time.UTC)),
		genID:   node,
		docs:    documentrepo.Provide(),
		fields:  extractionrepo.Provide(),
		jobs:    screeningrepo.Provide(),
	}
	h.runner = New(Params{
		DB:      dbConn,
		Log:     zap.NewNop(),
		Clock:   h.clock,
		Config:  config.Config{Pipeline: config.PipelineConfig{ScreeningBatch: 5}},
		Jobs:    h.jobs,
		Docs:    h.docs,
		Fields:  h.fields,
		Storage: h.storage,
		LLM:     h.llm,
	})
	return h
}

func (h *harness) seedCV(t *testing.T, orgID snowflake.ID, fields map[string]string) *documentdomain.Document {
	t.Helper()

	now := h.clock.Now()
	doc := &documentdomain.Document{
		ID:               h.genID.Generate(),
		OrgID:            orgID,
		Filename:         "cv.pdf",
		ContentType:      "application/pdf",
		DocType:          documentdomain.DocTypeOther,
		Status:           documentdomain.StatusProcessed,
		AnalysisRevision: 1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	doc.StoragePath = "org/" + orgID.String() + "/documents/" + doc.ID.String() + "/cv.pdf"
	if err := h.docs.Insert(context.Background(), h.db, doc); err != nil {
		t.Fatalf("failed to insert document: %v", err)
	}

	rows := make([]*extractiondomain.ExtractedField, 0, len(fields))
	for name, value := range fields {
		v := value
		rows = append(rows, &extractiondomain.ExtractedField{
			ID:         h.genID.Generate(),
			OrgID:      orgID,
			DocumentID: doc.ID,
			Revision:   1,
			FieldName:  name,
			Value:      &v,
			CreatedAt:  now,
		})
	}
	if err := h.fields.InsertBatch(context.Background(), h.db, rows); err != nil {
		t.Fatalf("failed to insert fields: %v", err)
	}
	return doc
}

func (h *harness) seedJob(t *testing.T, orgID, documentID snowflake.ID, description string) *domain.ScreeningJob {
	t.Helper()

	now := h.clock.Now()
	job := &domain.ScreeningJob{
		ID:             h.genID.Generate(),
		OrgID:          orgID,
		DocumentID:     documentID,
		JobDescription: description,
		Status:         domain.JobStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.jobs.Insert(context.Background(), h.db, job); err != nil {
		t.Fatalf("failed to insert job: %v", err)
	}
	return job
}

func (h *harness) reload(t *testing.T, job *domain.ScreeningJob) *domain.ScreeningJob {
	t.Helper()

	reloaded, err := h.jobs.FindByID(context.Background(), h.db, job.OrgID, job.ID)
	if err != nil {
		t.Fatalf("failed to reload job: %v", err)
	}
	if reloaded == nil {
		t.Fatal("job disappeared")
	}
	return reloaded
}

func TestProcessJobCompletes(t *testing.T) {
	h := newHarness(t)

	doc := h.seedCV(t, testOrgID, map[string]string{
		"name":       "Marie Curie",
		"experience": "10 years Go, Postgres, Kubernetes",
	})
	job := h.seedJob(t, testOrgID, doc.ID, "Senior Go engineer")

	if err := h.runner.ProcessJob(context.Background(), job); err != nil {
		t.Fatalf("failed to process: %v", err)
	}

	stored := h.reload(t, job)
	if stored.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s (error %v)", stored.Status, stored.LastError)
	}
	if stored.Score == nil || *stored.Score != 82 {
		t.Errorf("expected score 82, got %v", stored.Score)
	}
	if stored.Summary == nil || *stored.Summary != "Solid backend profile" {
		t.Errorf("expected summary persisted, got %v", stored.Summary)
	}
	var strengths []string
	if err := json.Unmarshal(stored.Strengths, &strengths); err != nil || len(strengths) != 2 {
		t.Errorf("expected 2 strengths, got %v (%v)", strengths, err)
	}
	if stored.CacheHit {
		t.Error("first run must not be a cache hit")
	}
	if stored.PromptHash == nil || len(*stored.PromptHash) != 64 {
		t.Errorf("expected sha256 prompt hash, got %v", stored.PromptHash)
	}
	if stored.Provider == nil || *stored.Provider != "fake" {
		t.Errorf("expected provider stamped, got %v", stored.Provider)
	}
	if stored.Model == nil || *stored.Model != "fake-model" {
		t.Errorf("expected model stamped, got %v", stored.Model)
	}
	if stored.CompletedAt == nil {
		t.Error("expected completed_at set")
	}
	if h.llm.calls != 1 {
		t.Errorf("expected 1 model call, got %d", h.llm.calls)
	}
}

func TestIdenticalJobServedFromCache(t *testing.T) {
	h := newHarness(t)

	doc := h.seedCV(t, testOrgID, map[string]string{"name": "Marie Curie"})
	first := h.seedJob(t, testOrgID, doc.ID, "Senior Go engineer")
	if err := h.runner.ProcessJob(context.Background(), first); err != nil {
		t.Fatalf("failed to process first: %v", err)
	}

	second := h.seedJob(t, testOrgID, doc.ID, "Senior Go engineer")
	if err := h.runner.ProcessJob(context.Background(), second); err != nil {
		t.Fatalf("failed to process second: %v", err)
	}

	stored := h.reload(t, second)
	if stored.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
	if !stored.CacheHit {
		t.Error("expected cache hit")
	}
	if stored.Score == nil || *stored.Score != 82 {
		t.Errorf("expected cached score copied, got %v", stored.Score)
	}
	if h.llm.calls != 1 {
		t.Errorf("expected cache to skip the model call, got %d calls", h.llm.calls)
	}

	firstStored := h.reload(t, first)
	if stored.PromptHash == nil || firstStored.PromptHash == nil || *stored.PromptHash != *firstStored.PromptHash {
		t.Error("expected both jobs to share one prompt hash")
	}
}

func TestDifferentDescriptionMissesCache(t *testing.T) {
	h := newHarness(t)

	doc := h.seedCV(t, testOrgID, map[string]string{"name": "Marie Curie"})
	first := h.seedJob(t, testOrgID, doc.ID, "Senior Go engineer")
	if err := h.runner.ProcessJob(context.Background(), first); err != nil {
		t.Fatalf("failed to process first: %v", err)
	}

	second := h.seedJob(t, testOrgID, doc.ID, "Staff data engineer")
	if err := h.runner.ProcessJob(context.Background(), second); err != nil {
		t.Fatalf("failed to process second: %v", err)
	}

	stored := h.reload(t, second)
	if stored.CacheHit {
		t.Error("different description must not hit the cache")
	}
	if h.llm.calls != 2 {
		t.Errorf("expected 2 model calls, got %d", h.llm.calls)
	}
}

func TestCacheIsScopedToOrg(t *testing.T) {
	h := newHarness(t)

	docA := h.seedCV(t, testOrgID, map[string]string{"name": "Marie Curie"})
	jobA := h.seedJob(t, testOrgID, docA.ID, "Senior Go engineer")
	if err := h.runner.ProcessJob(context.Background(), jobA); err != nil {
		t.Fatalf("failed to process org A job: %v", err)
	}

	otherOrg := snowflake.ID(9002)
	docB := h.seedCV(t, otherOrg, map[string]string{"name": "Marie Curie"})
	jobB := h.seedJob(t, otherOrg, docB.ID, "Senior Go engineer")
	if err := h.runner.ProcessJob(context.Background(), jobB); err != nil {
		t.Fatalf("failed to process org B job: %v", err)
	}

	stored := h.reload(t, jobB)
	if stored.CacheHit {
		t.Error("cache must not leak across organizations")
	}
	if h.llm.calls != 2 {
		t.Errorf("expected 2 model calls, got %d", h.llm.calls)
	}
}

func TestPlainTextDocument(t *testing.T) {
	h := newHarness(t)

	now := h.clock.Now()
	doc := &documentdomain.Document{
		ID:          h.genID.Generate(),
		OrgID:       testOrgID,
		Filename:    "cv.txt",
		ContentType: "text/plain",
		DocType:     documentdomain.DocTypeOther,
		Status:      documentdomain.StatusUploaded,
		StoragePath: "org/9001/documents/cv.txt",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.docs.Insert(context.Background(), h.db, doc); err != nil {
		t.Fatalf("failed to insert document: %v", err)
	}
	if err := h.storage.Put(context.Background(), doc.StoragePath, []byte("Jean Dupont\n5 years Python"), "text/plain"); err != nil {
		t.Fatalf("failed to seed storage: %v", err)
	}

	job := h.seedJob(t, testOrgID, doc.ID, "Python developer")
	if err := h.runner.ProcessJob(context.Background(), job); err != nil {
		t.Fatalf("failed to process: %v", err)
	}
	if stored := h.reload(t, job); stored.Status != domain.JobStatusCompleted {
		t.Errorf("expected completed, got %s", stored.Status)
	}
}

func TestDocumentWithoutTextFails(t *testing.T) {
	h := newHarness(t)

	now := h.clock.Now()
	doc := &documentdomain.Document{
		ID:          h.genID.Generate(),
		OrgID:       testOrgID,
		Filename:    "cv.pdf",
		ContentType: "application/pdf",
		DocType:     documentdomain.DocTypeOther,
		Status:      documentdomain.StatusUploaded,
		StoragePath: "org/9001/documents/cv.pdf",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.docs.Insert(context.Background(), h.db, doc); err != nil {
		t.Fatalf("failed to insert document: %v", err)
	}

	job := h.seedJob(t, testOrgID, doc.ID, "Senior Go engineer")
	if err := h.runner.ProcessJob(context.Background(), job); err == nil {
		t.Fatal("expected error for document without text")
	}

	stored := h.reload(t, job)
	if stored.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.LastError == nil || !strings.Contains(*stored.LastError, "no extracted text") {
		t.Errorf("expected descriptive error, got %v", stored.LastError)
	}
	if h.llm.calls != 0 {
		t.Errorf("expected no model call, got %d", h.llm.calls)
	}
}

func TestProviderErrorFailsJobThenRerunRecovers(t *testing.T) {
	h := newHarness(t)

	doc := h.seedCV(t, testOrgID, map[string]string{"name": "Marie Curie"})
	job := h.seedJob(t, testOrgID, doc.ID, "Senior Go engineer")

	h.llm.err = errors.New("upstream timeout")
	if err := h.runner.ProcessJob(context.Background(), job); err == nil {
		t.Fatal("expected provider error")
	}
	stored := h.reload(t, job)
	if stored.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.LastError == nil || !strings.Contains(*stored.LastError, "llm call") {
		t.Errorf("expected llm error recorded, got %v", stored.LastError)
	}

	ok, err := h.jobs.ResetForRerun(context.Background(), h.db, testOrgID, job.ID, h.clock.Now())
	if err != nil || !ok {
		t.Fatalf("failed to reset job: ok=%v err=%v", ok, err)
	}

	h.llm.err = nil
	stored = h.reload(t, job)
	if err := h.runner.ProcessJob(context.Background(), stored); err != nil {
		t.Fatalf("failed to process after rerun: %v", err)
	}
	if final := h.reload(t, job); final.Status != domain.JobStatusCompleted || final.LastError != nil {
		t.Errorf("expected clean completion, got %s error %v", final.Status, final.LastError)
	}
}

func TestMalformedVerdictFails(t *testing.T) {
	h := newHarness(t)

	doc := h.seedCV(t, testOrgID, map[string]string{"name": "Marie Curie"})
	job := h.seedJob(t, testOrgID, doc.ID, "Senior Go engineer")

	h.llm.reply = "I think this candidate is great!"
	if err := h.runner.ProcessJob(context.Background(), job); err == nil {
		t.Fatal("expected parse error")
	}
	if stored := h.reload(t, job); stored.Status != domain.JobStatusFailed {
		t.Errorf("expected failed, got %s", stored.Status)
	}
}

func TestMarkdownWrappedVerdictParses(t *testing.T) {
	h := newHarness(t)

	doc := h.seedCV(t, testOrgID, map[string]string{"name": "Marie Curie"})
	job := h.seedJob(t, testOrgID, doc.ID, "Senior Go engineer")

	h.llm.reply = "```json\n" + goodReply + "\n```"
	if err := h.runner.ProcessJob(context.Background(), job); err != nil {
		t.Fatalf("failed to process: %v", err)
	}
	stored := h.reload(t, job)
	if stored.Status != domain.JobStatusCompleted || stored.Score == nil || *stored.Score != 82 {
		t.Errorf("expected fenced verdict parsed, got %s score %v", stored.Status, stored.Score)
	}
}

func TestOutOfRangeScoreFails(t *testing.T) {
	h := newHarness(t)

	doc := h.seedCV(t, testOrgID, map[string]string{"name": "Marie Curie"})
	job := h.seedJob(t, testOrgID, doc.ID, "Senior Go engineer")

	h.llm.reply = `{"score": 150, "summary": "impossible", "strengths": [], "concerns": []}`
	if err := h.runner.ProcessJob(context.Background(), job); err == nil {
		t.Fatal("expected range error")
	}
	stored := h.reload(t, job)
	if stored.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.LastError == nil || !strings.Contains(*stored.LastError, "out of range") {
		t.Errorf("expected range error recorded, got %v", stored.LastError)
	}
}

func TestProcessJobConflict(t *testing.T) {
	h := newHarness(t)

	doc := h.seedCV(t, testOrgID, map[string]string{"name": "Marie Curie"})
	job := h.seedJob(t, testOrgID, doc.ID, "Senior Go engineer")

	if ok, err := h.jobs.MarkRunning(context.Background(), h.db, job.ID, h.clock.Now()); err != nil || !ok {
		t.Fatalf("failed to pre-claim job: ok=%v err=%v", ok, err)
	}
	if err := h.runner.ProcessJob(context.Background(), job); !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}
}

func TestPromptHashDeterminism(t *testing.T) {
	a := domain.PromptHash("openai", "gpt-4o-mini", "cv text", "job description")
	b := domain.PromptHash("openai", "gpt-4o-mini", "cv text", "job description")
	if a != b {
		t.Error("identical inputs must hash identically")
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256, got %d chars", len(a))
	}
	if a == domain.PromptHash("openai", "gpt-4o", "cv text", "job description") {
		t.Error("model change must change the hash")
	}
	if a == domain.PromptHash("openai", "gpt-4o-mini", "cv text", "other description") {
		t.Error("description change must change the hash")
	}
}
