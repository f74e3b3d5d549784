package server

import (
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	auditcontext "github.com/zyalhor1961/corematch-web-sub006/internal/auditcontext"
	documentdomain "github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
)

// CreateDocument ingests one multipart file upload.
func (s *Server) CreateDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.documentSvc.Upload(c.Request.Context(), documentdomain.UploadRequest{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		DocType:     c.PostForm("doc_type"),
		Content:     content,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "document.uploaded", "document", doc.ID.String(), map[string]any{
		"filename": doc.Filename,
	})

	respondCreated(c, doc)
}

func (s *Server) ListDocuments(c *gin.Context) {
	var req documentdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.documentSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Documents, resp.PageInfo)
}

func (s *Server) GetDocument(c *gin.Context) {
	detail, err := s.documentSvc.GetByID(c.Request.Context(), c.Param("document_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, detail)
}

func (s *Server) DeleteDocument(c *gin.Context) {
	id := c.Param("document_id")
	if err := s.documentSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "document.deleted", "document", id, nil)

	respondNoContent(c)
}

func (s *Server) AnalyzeDocument(c *gin.Context) {
	doc, err := s.documentSvc.Analyze(c.Request.Context(), c.Param("document_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "document.analyzed", "document", doc.ID.String(), map[string]any{
		"analysis_revision": doc.AnalysisRevision,
	})

	respondOK(c, doc)
}

func (s *Server) RemapDocument(c *gin.Context) {
	doc, err := s.documentSvc.Remap(c.Request.Context(), c.Param("document_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "document.remapped", "document", doc.ID.String(), nil)

	respondOK(c, doc)
}

// auditAction writes one audit row for a mutating handler, resolving
// org and actor from the request context. Audit failures never fail
// the request.
func (s *Server) auditAction(c *gin.Context, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}

	ctx := c.Request.Context()
	orgID := orgIDFromContext(ctx)
	var orgPtr *snowflake.ID
	if orgID != 0 {
		orgPtr = &orgID
	}

	actorType, actorID := actorForAudit(c)
	var actorPtr *string
	if actorID != "" {
		actorPtr = &actorID
	}
	var targetPtr *string
	if targetID != "" {
		targetPtr = &targetID
	}

	_ = s.auditSvc.AuditLog(ctx, orgPtr, actorType, actorPtr, action, targetType, targetPtr, metadata)
}

func actorForAudit(c *gin.Context) (string, string) {
	if actorType, actorID := auditcontext.ActorFromContext(c.Request.Context()); actorType != "" {
		return actorType, actorID
	}
	return string(auditdomain.ActorTypeSystem), ""
}

func isDocumentValidationError(err error) bool {
	switch err {
	case documentdomain.ErrInvalidOrganization,
		documentdomain.ErrInvalidID,
		documentdomain.ErrEmptyUpload,
		documentdomain.ErrInvalidDocType,
		documentdomain.ErrNoExtractedFields:
		return true
	default:
		return false
	}
}
