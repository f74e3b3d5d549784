// Package runner executes queued screening jobs: it assembles the
// candidate text, consults the prompt-hash cache, and calls the llm
// provider only on a miss. The scheduler runs it in batches.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/cloudmetrics"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	documentdomain "github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	extractiondomain "github.com/zyalhor1961/corematch-web-sub006/internal/extraction/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/llm"
	"github.com/zyalhor1961/corematch-web-sub006/internal/screening/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/storage"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OutcomeCompleted = "completed"
	OutcomeCacheHit  = "cache_hit"
	OutcomeFailed    = "failed"
)

const systemPrompt = `You are a technical recruiter scoring one candidate CV against one job description.
Respond with strict JSON only, no markdown, using exactly this shape:
{"score": <integer 0-100>, "summary": <string>, "strengths": [<string>, ...], "concerns": [<string>, ...]}`

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Config  config.Config
	Jobs    domain.Repository
	Docs    documentdomain.Repository
	Fields  extractiondomain.Repository
	Storage storage.Provider
	LLM     llm.Provider
	Metrics *telemetry.Metrics `optional:"true"`
}

type Runner struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	cfg     config.Config
	jobs    domain.Repository
	docs    documentdomain.Repository
	fields  extractiondomain.Repository
	storage storage.Provider
	llm     llm.Provider
	metrics *telemetry.Metrics
}

func New(p Params) *Runner {
	return &Runner{
		db:      p.DB,
		log:     p.Log.Named("screening.runner"),
		clock:   p.Clock,
		cfg:     p.Config,
		jobs:    p.Jobs,
		docs:    p.Docs,
		fields:  p.Fields,
		storage: p.Storage,
		llm:     p.LLM,
		metrics: p.Metrics,
	}
}

// Run claims one batch of pending jobs and executes each to a terminal
// status. Returns how many reached completed.
func (r *Runner) Run(ctx context.Context) (int, error) {
	batch := r.cfg.Pipeline.ScreeningBatch
	if batch <= 0 {
		batch = 5
	}

	var claimed []*domain.ScreeningJob
	err := r.db.Transaction(func(tx *gorm.DB) error {
		jobs, err := r.jobs.ClaimPending(ctx, tx, batch)
		if err != nil {
			return err
		}
		now := r.clock.Now()
		for _, job := range jobs {
			ok, err := r.jobs.MarkRunning(ctx, tx, job.ID, now)
			if err != nil {
				return err
			}
			if !ok {
				// Lost the race to another worker between SELECT and UPDATE.
				continue
			}
			job.Status = domain.JobStatusRunning
			claimed = append(claimed, job)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("claim screening jobs: %w", err)
	}

	completed := 0
	for _, job := range claimed {
		if err := r.ProcessClaimed(ctx, job); err != nil {
			r.log.Warn("screening job failed",
				zap.String("job_id", job.ID.String()),
				zap.Error(err))
			continue
		}
		completed++
	}
	return completed, nil
}

// ProcessJob claims and runs a single pending job. Returns
// ErrStatusConflict when another worker already holds it.
func (r *Runner) ProcessJob(ctx context.Context, job *domain.ScreeningJob) error {
	ok, err := r.jobs.MarkRunning(ctx, r.db, job.ID, r.clock.Now())
	if err != nil {
		return fmt.Errorf("claim screening job: %w", err)
	}
	if !ok {
		return domain.ErrStatusConflict
	}
	job.Status = domain.JobStatusRunning
	return r.ProcessClaimed(ctx, job)
}

// ProcessClaimed runs a job already in running status. The prompt hash
// is derived from the provider, model, candidate text and job
// description; an earlier completed job with the same hash in the same
// org short-circuits the model call.
func (r *Runner) ProcessClaimed(ctx context.Context, job *domain.ScreeningJob) error {
	text, err := r.candidateText(ctx, job)
	if err != nil {
		return r.fail(ctx, job, err)
	}

	provider := r.llm.Name()
	model := r.llm.Model()
	hash := domain.PromptHash(provider, model, text, job.JobDescription)
	job.PromptHash = &hash
	job.Provider = &provider
	job.Model = &model

	cached, err := r.jobs.FindCachedResult(ctx, r.db, job.OrgID, hash, job.ID)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("cache lookup: %w", err))
	}

	outcome := OutcomeCompleted
	if cached != nil {
		job.Score = cached.Score
		job.Summary = cached.Summary
		job.Strengths = cached.Strengths
		job.Concerns = cached.Concerns
		job.CacheHit = true
		outcome = OutcomeCacheHit
	} else {
		verdict, err := r.score(ctx, text, job.JobDescription)
		if err != nil {
			return r.fail(ctx, job, err)
		}
		if err := applyVerdict(job, verdict); err != nil {
			return r.fail(ctx, job, err)
		}
	}

	now := r.clock.Now()
	ok, err := r.jobs.SaveResult(ctx, r.db, job, now)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("save result: %w", err))
	}
	if !ok {
		return fmt.Errorf("screening job %s left running status mid-run", job.ID)
	}
	job.Status = domain.JobStatusCompleted
	job.CompletedAt = &now

	r.metrics.RecordScreeningJob(outcome)
	cloudmetrics.RecordScreeningCompleted(job.OrgID.String(), outcome)
	r.log.Info("screening job completed",
		zap.String("job_id", job.ID.String()),
		zap.String("document_id", job.DocumentID.String()),
		zap.Bool("cache_hit", job.CacheHit))
	return nil
}

// candidateText assembles the text the model scores: the document's
// current-revision extracted fields, or the stored bytes when the file
// itself is plain text.
func (r *Runner) candidateText(ctx context.Context, job *domain.ScreeningJob) (string, error) {
	doc, err := r.docs.FindByID(ctx, r.db, job.OrgID, job.DocumentID)
	if err != nil {
		return "", fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return "", fmt.Errorf("document %s missing or deleted", job.DocumentID)
	}

	fields, err := r.fields.ListByRevision(ctx, r.db, job.OrgID, doc.ID, doc.AnalysisRevision)
	if err != nil {
		return "", fmt.Errorf("load extracted fields: %w", err)
	}
	if len(fields) > 0 {
		lines := make([]string, 0, len(fields))
		for _, field := range fields {
			if field.Value == nil || *field.Value == "" {
				continue
			}
			lines = append(lines, field.FieldName+": "+*field.Value)
		}
		sort.Strings(lines)
		if len(lines) > 0 {
			return strings.Join(lines, "\n"), nil
		}
	}

	if strings.HasPrefix(doc.ContentType, "text/") {
		content, err := r.storage.Get(ctx, doc.StoragePath)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", doc.StoragePath, err)
		}
		return string(content), nil
	}
	return "", fmt.Errorf("document %s has no extracted text", job.DocumentID)
}

func (r *Runner) score(ctx context.Context, candidateText, jobDescription string) (domain.Verdict, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: "Job description:\n" + jobDescription + "\n\nCandidate CV:\n" + candidateText},
	}

	start := r.clock.Now()
	reply, err := r.llm.Complete(ctx, messages)
	if err != nil {
		r.metrics.RecordProviderCall(r.llm.Name(), "error", r.clock.Now().Sub(start))
		return domain.Verdict{}, fmt.Errorf("llm call: %w", err)
	}
	r.metrics.RecordProviderCall(r.llm.Name(), "ok", r.clock.Now().Sub(start))

	var verdict domain.Verdict
	if err := json.Unmarshal([]byte(llm.ExtractJSON(reply)), &verdict); err != nil {
		return domain.Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	if verdict.Score < 0 || verdict.Score > 100 {
		return domain.Verdict{}, fmt.Errorf("verdict score %d out of range", verdict.Score)
	}
	return verdict, nil
}

func applyVerdict(job *domain.ScreeningJob, verdict domain.Verdict) error {
	score := verdict.Score
	job.Score = &score
	if verdict.Summary != "" {
		summary := verdict.Summary
		job.Summary = &summary
	}

	strengths, err := json.Marshal(emptyIfNil(verdict.Strengths))
	if err != nil {
		return fmt.Errorf("encode strengths: %w", err)
	}
	concerns, err := json.Marshal(emptyIfNil(verdict.Concerns))
	if err != nil {
		return fmt.Errorf("encode concerns: %w", err)
	}
	job.Strengths = datatypes.JSON(strengths)
	job.Concerns = datatypes.JSON(concerns)
	job.CacheHit = false
	return nil
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// fail marks the job failed and returns the wrapped cause.
func (r *Runner) fail(ctx context.Context, job *domain.ScreeningJob, cause error) error {
	r.metrics.RecordScreeningJob(OutcomeFailed)

	reason := cause.Error()
	if ok, err := r.jobs.MarkFailed(ctx, r.db, job.ID, reason, r.clock.Now()); err != nil {
		r.log.Error("failed to mark screening job failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err))
	} else if !ok {
		r.log.Warn("screening job left running status before failure could be recorded",
			zap.String("job_id", job.ID.String()))
	}
	return fmt.Errorf("screening job %s: %w", job.ID, cause)
}
