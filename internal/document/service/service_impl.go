package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/auditcontext"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	extractiondomain "github.com/zyalhor1961/corematch-web-sub006/internal/extraction/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/normalizer"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/internal/pipeline"
	"github.com/zyalhor1961/corematch-web-sub006/internal/storage"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Fields     extractiondomain.Repository
	Provider   extractiondomain.Provider
	Storage    storage.Provider
	Pipeline   *pipeline.Processor
	Vocabulary *config.VocabularyHolder
	Audit      auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	fields   extractiondomain.Repository
	provider extractiondomain.Provider
	storage  storage.Provider
	pipeline *pipeline.Processor
	vocab    *config.VocabularyHolder
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("document.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		fields:   p.Fields,
		provider: p.Provider,
		storage:  p.Storage,
		pipeline: p.Pipeline,
		vocab:    p.Vocabulary,
		auditSvc: p.Audit,
	}
}

func (s *Service) Upload(ctx context.Context, req domain.UploadRequest) (domain.Document, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Document{}, domain.ErrInvalidOrganization
	}
	if len(req.Content) == 0 {
		return domain.Document{}, domain.ErrEmptyUpload
	}
	docType, err := parseDocType(req.DocType)
	if err != nil {
		return domain.Document{}, err
	}

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	now := s.clock.Now()
	doc := domain.Document{
		ID:               s.genID.Generate(),
		OrgID:            orgID,
		Filename:         safeFilename(req.Filename),
		ContentType:      contentType,
		ByteSize:         int64(len(req.Content)),
		DocType:          docType,
		Status:           domain.StatusUploaded,
		AnalysisRevision: 0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	doc.StoragePath = fmt.Sprintf("org/%s/documents/%s/%s", orgID, doc.ID, doc.Filename)

	if actorType, actorID := auditcontext.ActorFromContext(ctx); actorType == string(auditdomain.ActorTypeUser) {
		if userID, err := snowflake.ParseString(actorID); err == nil && userID != 0 {
			doc.UploadedBy = &userID
		}
	}

	if err := s.storage.Put(ctx, doc.StoragePath, req.Content, contentType); err != nil {
		return domain.Document{}, fmt.Errorf("store upload: %w", err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, &doc)
	})
	if err != nil {
		// The row never landed; drop the orphaned blob.
		if cleanupErr := s.storage.Delete(ctx, doc.StoragePath); cleanupErr != nil {
			s.log.Warn("failed to clean up orphaned upload",
				zap.String("storage_path", doc.StoragePath),
				zap.Error(cleanupErr))
		}
		return domain.Document{}, err
	}

	s.writeAuditLog(ctx, orgID, "document.upload", doc.ID, map[string]any{
		"filename":  doc.Filename,
		"byte_size": doc.ByteSize,
		"doc_type":  string(doc.DocType),
	})
	return doc, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, orgID, domain.ListFilter{
		Status:  domain.Status(strings.TrimSpace(req.Status)),
		DocType: domain.DocType(strings.TrimSpace(req.DocType)),
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Document) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	docs := make([]domain.Document, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		docs = append(docs, *item)
	}

	resp := domain.ListResponse{Documents: docs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Detail, error) {
	orgID, doc, err := s.load(ctx, id)
	if err != nil {
		return domain.Detail{}, err
	}

	fields, err := s.fields.ListByRevision(ctx, s.db, orgID, doc.ID, doc.AnalysisRevision)
	if err != nil {
		return domain.Detail{}, err
	}
	return domain.Detail{Document: *doc, Fields: fields}, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	docID, err := parseID(id)
	if err != nil {
		return err
	}

	var deleted bool
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		var txErr error
		deleted, txErr = s.repo.SoftDelete(ctx, tx, orgID, docID, s.clock.Now())
		return txErr
	})
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}

	s.writeAuditLog(ctx, orgID, "document.delete", docID, nil)
	return nil
}

func (s *Service) Analyze(ctx context.Context, id string) (domain.Document, error) {
	orgID, doc, err := s.load(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	if doc.Status == domain.StatusProcessing {
		return domain.Document{}, domain.ErrStatusConflict
	}

	runErr := s.pipeline.ProcessDocument(ctx, doc)

	// The pipeline owns terminal status writes; reload whatever it left.
	reloaded, err := s.repo.FindByID(ctx, s.db, orgID, doc.ID)
	if err != nil {
		return domain.Document{}, err
	}
	if reloaded == nil {
		return domain.Document{}, domain.ErrNotFound
	}
	if runErr != nil {
		return *reloaded, runErr
	}

	s.writeAuditLog(ctx, orgID, "document.analyze", doc.ID, map[string]any{
		"revision": reloaded.AnalysisRevision,
	})
	return *reloaded, nil
}

func (s *Service) Remap(ctx context.Context, id string) (domain.Document, error) {
	orgID, doc, err := s.load(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}

	fields, err := s.fields.ListByRevision(ctx, s.db, orgID, doc.ID, doc.AnalysisRevision)
	if err != nil {
		return domain.Document{}, err
	}

	if len(fields) == 0 {
		fields, err = s.reanalyze(ctx, orgID, doc)
		if err != nil {
			return domain.Document{}, err
		}
		if len(fields) == 0 {
			return domain.Document{}, domain.ErrNoExtractedFields
		}
	}

	inputs := make([]normalizer.Field, 0, len(fields))
	for _, f := range fields {
		value := ""
		if f.Value != nil {
			value = *f.Value
		}
		inputs = append(inputs, normalizer.Field{Name: f.FieldName, Value: value})
	}

	norm := normalizer.NewWithExtensions(s.vocab.Get().Patterns)
	result := norm.Normalize(inputs, s.clock.Now())

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		return s.repo.ApplyNormalization(ctx, tx, doc.ID, domain.NormalizedUpdate{
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
		}, s.clock.Now())
	})
	if err != nil {
		return domain.Document{}, err
	}

	reloaded, err := s.repo.FindByID(ctx, s.db, orgID, doc.ID)
	if err != nil {
		return domain.Document{}, err
	}
	if reloaded == nil {
		return domain.Document{}, domain.ErrNotFound
	}

	s.writeAuditLog(ctx, orgID, "document.remap", doc.ID, map[string]any{
		"revision":    reloaded.AnalysisRevision,
		"field_count": result.FieldCount,
	})
	return *reloaded, nil
}

// reanalyze performs the single provider retry allowed when a remap finds
// no extracted fields. New fields land under a bumped revision; the old
// empty generation stays as-is.
func (s *Service) reanalyze(ctx context.Context, orgID snowflake.ID, doc *domain.Document) ([]extractiondomain.ExtractedField, error) {
	content, err := s.storage.Get(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", doc.StoragePath, err)
	}

	raw, err := s.provider.Analyze(ctx, content, doc.ContentType)
	if err != nil {
		return nil, fmt.Errorf("reanalyze: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	revision := doc.AnalysisRevision + 1
	now := s.clock.Now()
	rows := make([]*extractiondomain.ExtractedField, 0, len(raw))
	for _, rf := range raw {
		row := &extractiondomain.ExtractedField{
			ID:           s.genID.Generate(),
			OrgID:        orgID,
			DocumentID:   doc.ID,
			Revision:     revision,
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

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		if err := s.fields.InsertBatch(ctx, tx, rows); err != nil {
			return err
		}
		return s.repo.SetAnalysisRevision(ctx, tx, doc.ID, revision, now)
	})
	if err != nil {
		return nil, err
	}
	doc.AnalysisRevision = revision

	return s.fields.ListByRevision(ctx, s.db, orgID, doc.ID, revision)
}

// load resolves the org and fetches a live document by its string id.
func (s *Service) load(ctx context.Context, id string) (snowflake.ID, *domain.Document, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, nil, domain.ErrInvalidOrganization
	}
	docID, err := parseID(id)
	if err != nil {
		return 0, nil, err
	}
	doc, err := s.repo.FindByID(ctx, s.db, orgID, docID)
	if err != nil {
		return 0, nil, err
	}
	if doc == nil {
		return 0, nil, domain.ErrNotFound
	}
	return orgID, doc, nil
}

func (s *Service) writeAuditLog(ctx context.Context, orgID snowflake.ID, action string, docID snowflake.ID, metadata map[string]any) {
	targetID := docID.String()
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "document", &targetID, metadata)
}

func parseID(id string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return 0, domain.ErrInvalidID
	}
	return parsed, nil
}

func parseDocType(v string) (domain.DocType, error) {
	trimmed := domain.DocType(strings.TrimSpace(v))
	switch trimmed {
	case "":
		return domain.DocTypeInvoice, nil
	case domain.DocTypeInvoice, domain.DocTypeReceipt, domain.DocTypeDeliveryNote, domain.DocTypeOther:
		return trimmed, nil
	}
	return "", domain.ErrInvalidDocType
}

// safeFilename flattens request-supplied names into slug form so they are
// safe to embed in storage keys.
func safeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	cleaned := slug.Make(stem)
	if cleaned == "" {
		cleaned = "document"
	}
	if suffix := slug.Make(ext); suffix != "" {
		cleaned += "." + suffix
	}
	return cleaned
}
