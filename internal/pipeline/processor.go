// Package pipeline drives uploaded documents through analysis and
// normalization. The scheduler runs it in batches; the document service
// reuses it for on-demand reprocessing of a single document.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/zyalhor1961/corematch-web-sub006/internal/alert/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/cloudmetrics"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	documentdomain "github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	extractiondomain "github.com/zyalhor1961/corematch-web-sub006/internal/extraction/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/liveevents"
	"github.com/zyalhor1961/corematch-web-sub006/internal/normalizer"
	"github.com/zyalhor1961/corematch-web-sub006/internal/storage"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Stage names carried on node frames, in execution order.
const (
	StageClaim         = "claim"
	StageFetch         = "fetch"
	StageAnalyze       = "analyze"
	StagePersistFields = "persist_fields"
	StageNormalize     = "normalize"
	StageFinalize      = "finalize"
)

const (
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
)

var Module = fx.Module("pipeline",
	fx.Provide(NewProcessor),
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	Docs       documentdomain.Repository
	Fields     extractiondomain.Repository
	Provider   extractiondomain.Provider
	Storage    storage.Provider
	Hub        *liveevents.Hub
	Vocabulary *config.VocabularyHolder
	Alerts     alertdomain.Service
	Metrics    *telemetry.Metrics
}

type Processor struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	cfg      config.Config
	docs     documentdomain.Repository
	fields   extractiondomain.Repository
	provider extractiondomain.Provider
	storage  storage.Provider
	hub      *liveevents.Hub
	vocab    *config.VocabularyHolder
	alerts   alertdomain.Service
	metrics  *telemetry.Metrics
}

func NewProcessor(p Params) *Processor {
	return &Processor{
		db:       p.DB,
		log:      p.Log.Named("pipeline"),
		genID:    p.GenID,
		clock:    p.Clock,
		cfg:      p.Config,
		docs:     p.Docs,
		fields:   p.Fields,
		provider: p.Provider,
		storage:  p.Storage,
		hub:      p.Hub,
		vocab:    p.Vocabulary,
		alerts:   p.Alerts,
		metrics:  p.Metrics,
	}
}

// Run claims one batch of uploaded documents and processes each to a
// terminal status. Returns how many documents reached processed.
func (p *Processor) Run(ctx context.Context) (int, error) {
	batch := p.cfg.Pipeline.BatchSize
	if batch <= 0 {
		batch = 10
	}

	var claimed []*documentdomain.Document
	err := p.db.Transaction(func(tx *gorm.DB) error {
		docs, err := p.docs.ClaimForProcessing(ctx, tx, batch)
		if err != nil {
			return err
		}
		now := p.clock.Now()
		for _, doc := range docs {
			ok, err := p.docs.MarkProcessing(ctx, tx, doc.ID, documentdomain.StatusUploaded, doc.AnalysisRevision+1, now)
			if err != nil {
				return err
			}
			if !ok {
				// Lost the race to another worker between SELECT and UPDATE.
				continue
			}
			doc.Status = documentdomain.StatusProcessing
			doc.AnalysisRevision++
			claimed = append(claimed, doc)
		}
		return nil
	})
	if err != nil {
		p.metrics.RecordPipelineError(StageClaim)
		return 0, fmt.Errorf("claim documents: %w", err)
	}

	processed := 0
	for _, doc := range claimed {
		// Frames go out after the claim transaction commits so rolled
		// back claims never surface to subscribers.
		p.publishNode(doc.ID, StageClaim, liveevents.PhaseEnter, "")
		p.publishStatus(doc.ID, string(documentdomain.StatusUploaded), string(documentdomain.StatusProcessing))
		p.publishNode(doc.ID, StageClaim, liveevents.PhaseFinish, "")

		if err := p.ProcessClaimed(ctx, doc); err != nil {
			p.log.Warn("document processing failed",
				zap.String("document_id", doc.ID.String()),
				zap.Error(err))
			continue
		}
		processed++
	}
	return processed, nil
}

// ProcessDocument force-runs the pipeline for one document from its
// current status. Returns ErrStatusConflict when another worker already
// holds the document.
func (p *Processor) ProcessDocument(ctx context.Context, doc *documentdomain.Document) error {
	ok, err := p.docs.MarkProcessing(ctx, p.db, doc.ID, doc.Status, doc.AnalysisRevision+1, p.clock.Now())
	if err != nil {
		p.metrics.RecordPipelineError(StageClaim)
		return fmt.Errorf("claim document: %w", err)
	}
	if !ok {
		return documentdomain.ErrStatusConflict
	}
	from := doc.Status
	doc.Status = documentdomain.StatusProcessing
	doc.AnalysisRevision++

	p.publishNode(doc.ID, StageClaim, liveevents.PhaseEnter, "")
	p.publishStatus(doc.ID, string(from), string(documentdomain.StatusProcessing))
	p.publishNode(doc.ID, StageClaim, liveevents.PhaseFinish, "")

	return p.ProcessClaimed(ctx, doc)
}

// ProcessClaimed runs the post-claim stages for a document already in
// processing status with its analysis revision bumped. On stage failure
// the document is marked failed and an alert goes out; the returned
// error names the stage.
func (p *Processor) ProcessClaimed(ctx context.Context, doc *documentdomain.Document) error {
	content, err := p.runFetch(ctx, doc)
	if err != nil {
		return p.fail(ctx, doc, StageFetch, err)
	}

	raw, err := p.runAnalyze(ctx, doc, content)
	if err != nil {
		return p.fail(ctx, doc, StageAnalyze, err)
	}

	fields, err := p.runPersistFields(ctx, doc, raw)
	if err != nil {
		return p.fail(ctx, doc, StagePersistFields, err)
	}

	if err := p.runNormalize(ctx, doc, fields); err != nil {
		return p.fail(ctx, doc, StageNormalize, err)
	}

	if err := p.runFinalize(ctx, doc, len(fields)); err != nil {
		return p.fail(ctx, doc, StageFinalize, err)
	}

	p.metrics.RecordPipelineDocument(OutcomeProcessed)
	cloudmetrics.RecordDocumentProcessed(doc.OrgID.String(), string(doc.DocType))
	return nil
}

func (p *Processor) runFetch(ctx context.Context, doc *documentdomain.Document) ([]byte, error) {
	p.publishNode(doc.ID, StageFetch, liveevents.PhaseEnter, "")
	content, err := p.storage.Get(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", doc.StoragePath, err)
	}
	p.publishNode(doc.ID, StageFetch, liveevents.PhaseFinish, fmt.Sprintf("%d bytes", len(content)))
	return content, nil
}

func (p *Processor) runAnalyze(ctx context.Context, doc *documentdomain.Document, content []byte) ([]extractiondomain.RawField, error) {
	p.publishNode(doc.ID, StageAnalyze, liveevents.PhaseEnter, "")
	p.publishLog(doc.ID, fmt.Sprintf("analyzing with provider %s", p.provider.Name()))
	raw, err := p.provider.Analyze(ctx, content, doc.ContentType)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	p.publishNode(doc.ID, StageAnalyze, liveevents.PhaseFinish, fmt.Sprintf("%d field(s)", len(raw)))
	return raw, nil
}

func (p *Processor) runPersistFields(ctx context.Context, doc *documentdomain.Document, raw []extractiondomain.RawField) ([]normalizer.Field, error) {
	p.publishNode(doc.ID, StagePersistFields, liveevents.PhaseEnter, "")

	rows := p.buildFieldRows(doc, raw)
	if len(rows) > 0 {
		if err := p.fields.InsertBatch(ctx, p.db, rows); err != nil {
			return nil, fmt.Errorf("persist fields: %w", err)
		}
	}

	fields := make([]normalizer.Field, 0, len(raw))
	for _, rf := range raw {
		fields = append(fields, normalizer.Field{Name: rf.Name, Value: rf.Value})
	}
	p.publishNode(doc.ID, StagePersistFields, liveevents.PhaseFinish, fmt.Sprintf("revision %d", doc.AnalysisRevision))
	return fields, nil
}

func (p *Processor) runNormalize(ctx context.Context, doc *documentdomain.Document, fields []normalizer.Field) error {
	p.publishNode(doc.ID, StageNormalize, liveevents.PhaseEnter, "")

	norm := normalizer.NewWithExtensions(p.vocab.Get().Patterns)
	result := norm.Normalize(fields, p.clock.Now())

	update := documentdomain.NormalizedUpdate{
		VendorName:     result.VendorName,
		VendorTaxID:    result.VendorTaxID,
		CustomerName:   result.CustomerName,
		InvoiceNumber:  result.InvoiceNumber,
		DocumentDate:   result.DocumentDate,
		DueDate:        result.DueDate,
		TotalAmount:    result.TotalAmount,
		TaxAmount:      result.TaxAmount,
		NetAmount:      result.NetAmount,
		Currency:       result.Currency,
		ProcessingNote: result.Note,
	}
	if err := p.docs.ApplyNormalization(ctx, p.db, doc.ID, update, p.clock.Now()); err != nil {
		return fmt.Errorf("apply normalization: %w", err)
	}

	p.publishLog(doc.ID, result.Note)
	p.publishNode(doc.ID, StageNormalize, liveevents.PhaseFinish, "")
	return nil
}

func (p *Processor) runFinalize(ctx context.Context, doc *documentdomain.Document, fieldCount int) error {
	p.publishNode(doc.ID, StageFinalize, liveevents.PhaseEnter, "")
	ok, err := p.docs.MarkProcessed(ctx, p.db, doc.ID, p.clock.Now())
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if !ok {
		return fmt.Errorf("document %s left processing status mid-run", doc.ID)
	}
	p.publishStatus(doc.ID, string(documentdomain.StatusProcessing), string(documentdomain.StatusProcessed))
	p.publishNode(doc.ID, StageFinalize, liveevents.PhaseFinish, "")

	p.hub.Publish(liveevents.DocumentTopic(doc.ID), liveevents.Frame{
		Type: liveevents.FrameComplete,
		Data: map[string]any{
			"document_id": doc.ID.String(),
			"status":      string(documentdomain.StatusProcessed),
			"revision":    doc.AnalysisRevision,
			"field_count": fieldCount,
		},
		Timestamp: p.frameTime(),
	})
	return nil
}

// fail marks the document failed, emits the alert, and publishes the
// terminal error frame. The original stage error is returned wrapped.
func (p *Processor) fail(ctx context.Context, doc *documentdomain.Document, stage string, cause error) error {
	p.metrics.RecordPipelineError(stage)
	p.metrics.RecordPipelineDocument(OutcomeFailed)
	cloudmetrics.RecordEngineError(doc.OrgID.String(), stage)

	now := p.clock.Now()
	reason := cause.Error()
	if ok, err := p.docs.MarkFailed(ctx, p.db, doc.ID, reason, now); err != nil {
		p.log.Error("failed to mark document failed",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err))
	} else if !ok {
		p.log.Warn("document left processing status before failure could be recorded",
			zap.String("document_id", doc.ID.String()))
	}

	if err := p.alerts.Emit(ctx, alertdomain.EmitRequest{
		OrgID:    doc.OrgID,
		Kind:     alertdomain.KindPipelineFailure,
		Severity: alertdomain.SeverityCritical,
		Message:  fmt.Sprintf("document %s failed at stage %s", doc.ID, stage),
		Metadata: map[string]any{
			"document_id": doc.ID.String(),
			"stage":       stage,
			"error":       reason,
		},
	}); err != nil {
		p.log.Warn("failed to emit pipeline alert", zap.Error(err))
	}

	p.publishStatus(doc.ID, string(documentdomain.StatusProcessing), string(documentdomain.StatusFailed))
	p.hub.Publish(liveevents.DocumentTopic(doc.ID), liveevents.Frame{
		Type:  liveevents.FrameError,
		Stage: stage,
		Data: map[string]any{
			"document_id": doc.ID.String(),
			"status":      string(documentdomain.StatusFailed),
			"error":       reason,
		},
		Timestamp: p.frameTime(),
	})
	return fmt.Errorf("stage %s: %w", stage, cause)
}

func (p *Processor) buildFieldRows(doc *documentdomain.Document, raw []extractiondomain.RawField) []*extractiondomain.ExtractedField {
	now := p.clock.Now()
	rows := make([]*extractiondomain.ExtractedField, 0, len(raw))
	for _, rf := range raw {
		row := &extractiondomain.ExtractedField{
			ID:           p.genID.Generate(),
			OrgID:        doc.OrgID,
			DocumentID:   doc.ID,
			Revision:     doc.AnalysisRevision,
			FieldName:    rf.Name,
			NumericValue: normalizer.ParseAmount(rf.Value),
			CreatedAt:    now,
		}
		if rf.Value != "" {
			value := rf.Value
			row.Value = &value
		}
		if rf.Confidence > 0 {
			confidence := rf.Confidence
			row.Confidence = &confidence
		}
		if rf.Page > 0 {
			page := rf.Page
			row.Page = &page
		}
		if rf.X1 > rf.X0 || rf.Y1 > rf.Y0 {
			x0, y0, x1, y1 := rf.X0, rf.Y0, rf.X1, rf.Y1
			row.BBoxX0, row.BBoxY0, row.BBoxX1, row.BBoxY1 = &x0, &y0, &x1, &y1
		}
		rows = append(rows, row)
	}
	return rows
}

func (p *Processor) publishNode(id snowflake.ID, stage, phase, message string) {
	p.hub.Publish(liveevents.DocumentTopic(id), liveevents.Frame{
		Type:      liveevents.FrameNode,
		Stage:     stage,
		Phase:     phase,
		Message:   message,
		Timestamp: p.frameTime(),
	})
}

func (p *Processor) publishStatus(id snowflake.ID, from, to string) {
	p.hub.Publish(liveevents.DocumentTopic(id), liveevents.Frame{
		Type:      liveevents.FrameStatus,
		From:      from,
		To:        to,
		Timestamp: p.frameTime(),
	})
}

func (p *Processor) publishLog(id snowflake.ID, message string) {
	p.hub.Publish(liveevents.DocumentTopic(id), liveevents.Frame{
		Type:      liveevents.FrameLog,
		Message:   message,
		Timestamp: p.frameTime(),
	})
}

func (p *Processor) frameTime() string {
	return p.clock.Now().Format(time.RFC3339Nano)
}
