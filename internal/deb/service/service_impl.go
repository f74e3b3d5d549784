package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/deb/domain"
	documentdomain "github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	hscodedomain "github.com/zyalhor1961/corematch-web-sub006/internal/hscode/domain"
	invoicedomain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Docs     documentdomain.Repository
	Invoices invoicedomain.Repository
	HSCodes  hscodedomain.Service
	Audit    auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	docs     documentdomain.Repository
	invoices invoicedomain.Repository
	hscodes  hscodedomain.Service
	auditSvc auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("deb.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		docs:     p.Docs,
		invoices: p.Invoices,
		hscodes:  p.HSCodes,
		auditSvc: p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Declaration, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Declaration{}, domain.ErrInvalidOrganization
	}

	period := strings.TrimSpace(req.Period)
	if !domain.ValidPeriod(period) {
		return domain.Declaration{}, domain.ErrInvalidPeriod
	}
	flow, err := parseFlow(req.Flow)
	if err != nil {
		return domain.Declaration{}, err
	}

	existing, err := s.repo.FindByPeriodFlow(ctx, s.db, orgID, period, flow)
	if err != nil {
		return domain.Declaration{}, err
	}
	if existing != nil {
		return domain.Declaration{}, domain.ErrAlreadyExists
	}

	now := s.clock.Now()
	decl := domain.Declaration{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Period:    period,
		Flow:      flow,
		Status:    domain.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, &decl)
	})
	if err != nil {
		return domain.Declaration{}, err
	}

	s.writeAuditLog(ctx, orgID, "deb.create", decl.ID, map[string]any{
		"period": period,
		"flow":   string(flow),
	})
	return decl, nil
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

	filter := domain.ListFilter{
		Period: strings.TrimSpace(req.Period),
		Flow:   domain.Flow(strings.ToLower(strings.TrimSpace(req.Flow))),
		Status: domain.Status(strings.ToLower(strings.TrimSpace(req.Status))),
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Declaration) string {
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

	decls := make([]domain.Declaration, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		decls = append(decls, *item)
	}

	resp := domain.ListResponse{Declarations: decls}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Detail, error) {
	orgID, decl, err := s.load(ctx, id)
	if err != nil {
		return domain.Detail{}, err
	}
	return s.detail(ctx, orgID, decl)
}

func (s *Service) Generate(ctx context.Context, id string) (domain.GenerateResponse, error) {
	orgID, decl, err := s.load(ctx, id)
	if err != nil {
		return domain.GenerateResponse{}, err
	}
	if decl.Status != domain.StatusDraft {
		return domain.GenerateResponse{}, domain.ErrNotDraft
	}

	existing, err := s.repo.ListLines(ctx, s.db, orgID, decl.ID)
	if err != nil {
		return domain.GenerateResponse{}, err
	}

	var fresh []*domain.Line
	switch decl.Flow {
	case domain.FlowIntroduction:
		fresh, err = s.introductionLines(ctx, orgID, decl, existing)
	case domain.FlowExpedition:
		fresh, err = s.expeditionLines(ctx, orgID, decl, existing)
	default:
		return domain.GenerateResponse{}, domain.ErrInvalidFlow
	}
	if err != nil {
		return domain.GenerateResponse{}, err
	}

	if len(fresh) > 0 {
		err = s.db.Transaction(func(tx *gorm.DB) error {
			if err := rls.WithTenant(tx, int64(orgID)); err != nil {
				return err
			}
			stillDraft, err := s.repo.TouchDraft(ctx, tx, orgID, decl.ID, s.clock.Now())
			if err != nil {
				return err
			}
			if !stillDraft {
				return domain.ErrNotDraft
			}
			for _, line := range fresh {
				if err := s.repo.InsertLine(ctx, tx, line); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return domain.GenerateResponse{}, err
		}

		s.writeAuditLog(ctx, orgID, "deb.generate", decl.ID, map[string]any{
			"period": decl.Period,
			"flow":   string(decl.Flow),
			"added":  len(fresh),
		})
	}

	detail, err := s.detail(ctx, orgID, decl)
	if err != nil {
		return domain.GenerateResponse{}, err
	}
	return domain.GenerateResponse{Detail: detail, Added: len(fresh)}, nil
}

// introductionLines builds arrival lines from processed purchase
// documents whose vendor VAT places them in another member state.
func (s *Service) introductionLines(ctx context.Context, orgID snowflake.ID, decl *domain.Declaration, existing []domain.Line) ([]*domain.Line, error) {
	seen := make(map[snowflake.ID]struct{}, len(existing))
	for _, line := range existing {
		if line.DocumentID != nil {
			seen[*line.DocumentID] = struct{}{}
		}
	}

	docs, err := s.docs.ListProcessedInPeriod(ctx, s.db, orgID, decl.Period)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var fresh []*domain.Line
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if _, dup := seen[doc.ID]; dup {
			continue
		}
		if doc.VendorTaxID == nil {
			continue
		}
		country, ok := domain.PartnerCountryFromVAT(*doc.VendorTaxID)
		if !ok {
			continue
		}

		value := decimal.Zero
		if doc.NetAmount != nil {
			value = *doc.NetAmount
		} else if doc.TotalAmount != nil {
			value = *doc.TotalAmount
		}

		description := strings.TrimSpace(doc.Filename)
		if doc.VendorName != nil && strings.TrimSpace(*doc.VendorName) != "" {
			description = strings.TrimSpace(*doc.VendorName)
			if doc.InvoiceNumber != nil && strings.TrimSpace(*doc.InvoiceNumber) != "" {
				description += " " + strings.TrimSpace(*doc.InvoiceNumber)
			}
		}

		docID := doc.ID
		fresh = append(fresh, &domain.Line{
			ID:            s.genID.Generate(),
			OrgID:         orgID,
			DeclarationID: decl.ID,
			DocumentID:    &docID,
			Description:   description,
			HSCode:        s.suggestHSCode(ctx, description),
			CountryCode:   country,
			Value:         value,
			Nature:        domain.NatureDefault,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return fresh, nil
}

// expeditionLines builds dispatch lines from issued sale invoices whose
// customer VAT places them in another member state.
func (s *Service) expeditionLines(ctx context.Context, orgID snowflake.ID, decl *domain.Declaration, existing []domain.Line) ([]*domain.Line, error) {
	seen := make(map[snowflake.ID]struct{}, len(existing))
	for _, line := range existing {
		if line.InvoiceID != nil {
			seen[*line.InvoiceID] = struct{}{}
		}
	}

	from, to := domain.PeriodBounds(decl.Period)
	invoices, err := s.invoices.ListIssuedSalesInPeriod(ctx, s.db, orgID, from, to)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var fresh []*domain.Line
	for _, invoice := range invoices {
		if invoice == nil {
			continue
		}
		if _, dup := seen[invoice.ID]; dup {
			continue
		}
		if invoice.CustomerVAT == nil {
			continue
		}
		country, ok := domain.PartnerCountryFromVAT(*invoice.CustomerVAT)
		if !ok {
			continue
		}

		description := strings.TrimSpace(invoice.CustomerName)
		if strings.TrimSpace(invoice.InvoiceNumber) != "" {
			description = strings.TrimSpace(description + " " + invoice.InvoiceNumber)
		}

		suggestFrom := invoice.CustomerName
		if lines, err := s.invoices.ListLines(ctx, s.db, orgID, invoice.ID); err == nil && len(lines) > 0 {
			suggestFrom = lines[0].Description
		}

		invoiceID := invoice.ID
		fresh = append(fresh, &domain.Line{
			ID:            s.genID.Generate(),
			OrgID:         orgID,
			DeclarationID: decl.ID,
			InvoiceID:     &invoiceID,
			Description:   description,
			HSCode:        s.suggestHSCode(ctx, suggestFrom),
			CountryCode:   country,
			Value:         invoice.NetAmount,
			Nature:        domain.NatureDefault,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return fresh, nil
}

// suggestHSCode asks the reference service for a code. Failures leave
// the line unclassified; validation will flag it for hand entry.
func (s *Service) suggestHSCode(ctx context.Context, description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return ""
	}
	suggestion, err := s.hscodes.Suggest(ctx, hscodedomain.SuggestRequest{Description: description})
	if err != nil {
		s.log.Debug("hs code suggestion unavailable",
			zap.String("description", description),
			zap.Error(err))
		return ""
	}
	return suggestion.Code
}

func (s *Service) AddLine(ctx context.Context, declarationID string, req domain.LineInput) (domain.Line, error) {
	orgID, decl, err := s.load(ctx, declarationID)
	if err != nil {
		return domain.Line{}, err
	}

	line, err := s.buildLine(orgID, decl.ID, req)
	if err != nil {
		return domain.Line{}, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		stillDraft, err := s.repo.TouchDraft(ctx, tx, orgID, decl.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if !stillDraft {
			return domain.ErrNotDraft
		}
		return s.repo.InsertLine(ctx, tx, line)
	})
	if err != nil {
		return domain.Line{}, err
	}

	s.writeAuditLog(ctx, orgID, "deb.line.add", decl.ID, map[string]any{
		"line_id": line.ID.String(),
	})
	return *line, nil
}

func (s *Service) UpdateLine(ctx context.Context, declarationID, lineID string, req domain.UpdateLineRequest) (domain.Line, error) {
	orgID, decl, err := s.load(ctx, declarationID)
	if err != nil {
		return domain.Line{}, err
	}
	parsedLineID, err := snowflake.ParseString(strings.TrimSpace(lineID))
	if err != nil || parsedLineID == 0 {
		return domain.Line{}, domain.ErrInvalidLineID
	}

	line, err := s.repo.FindLine(ctx, s.db, orgID, decl.ID, parsedLineID)
	if err != nil {
		return domain.Line{}, err
	}
	if line == nil {
		return domain.Line{}, domain.ErrLineNotFound
	}

	if req.Description != nil {
		line.Description = strings.TrimSpace(*req.Description)
	}
	if req.HSCode != nil {
		line.HSCode = strings.TrimSpace(*req.HSCode)
	}
	if req.CountryCode != nil {
		line.CountryCode = strings.ToUpper(strings.TrimSpace(*req.CountryCode))
	}
	if req.Value != nil {
		line.Value = *req.Value
	}
	if req.MassKG != nil {
		line.MassKG = req.MassKG
	}
	if req.Nature != nil {
		line.Nature = strings.TrimSpace(*req.Nature)
	}
	if line.Description == "" || line.Value.IsNegative() {
		return domain.Line{}, domain.ErrInvalidLine
	}
	line.UpdatedAt = s.clock.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		stillDraft, err := s.repo.TouchDraft(ctx, tx, orgID, decl.ID, line.UpdatedAt)
		if err != nil {
			return err
		}
		if !stillDraft {
			return domain.ErrNotDraft
		}
		return s.repo.UpdateLine(ctx, tx, line)
	})
	if err != nil {
		return domain.Line{}, err
	}

	s.writeAuditLog(ctx, orgID, "deb.line.update", decl.ID, map[string]any{
		"line_id": line.ID.String(),
	})
	return *line, nil
}

func (s *Service) DeleteLine(ctx context.Context, declarationID, lineID string) error {
	orgID, decl, err := s.load(ctx, declarationID)
	if err != nil {
		return err
	}
	parsedLineID, err := snowflake.ParseString(strings.TrimSpace(lineID))
	if err != nil || parsedLineID == 0 {
		return domain.ErrInvalidLineID
	}

	var deleted bool
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		stillDraft, err := s.repo.TouchDraft(ctx, tx, orgID, decl.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if !stillDraft {
			return domain.ErrNotDraft
		}
		var txErr error
		deleted, txErr = s.repo.DeleteLine(ctx, tx, orgID, decl.ID, parsedLineID)
		return txErr
	})
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrLineNotFound
	}

	s.writeAuditLog(ctx, orgID, "deb.line.delete", decl.ID, map[string]any{
		"line_id": parsedLineID.String(),
	})
	return nil
}

func (s *Service) Validate(ctx context.Context, id string) (domain.Declaration, error) {
	orgID, decl, err := s.load(ctx, id)
	if err != nil {
		return domain.Declaration{}, err
	}
	if decl.Status != domain.StatusDraft {
		return domain.Declaration{}, domain.ErrStatusConflict
	}

	lines, err := s.repo.ListLines(ctx, s.db, orgID, decl.ID)
	if err != nil {
		return domain.Declaration{}, err
	}

	if issues := checkLines(lines); len(issues) > 0 {
		return domain.Declaration{}, &domain.LineValidationError{Issues: issues}
	}

	now := s.clock.Now()
	var moved bool
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		var txErr error
		moved, txErr = s.repo.MarkValidated(ctx, tx, orgID, decl.ID, now)
		return txErr
	})
	if err != nil {
		return domain.Declaration{}, err
	}
	if !moved {
		return domain.Declaration{}, domain.ErrStatusConflict
	}

	decl.Status = domain.StatusValidated
	decl.ValidatedAt = &now
	decl.UpdatedAt = now

	s.writeAuditLog(ctx, orgID, "deb.validate", decl.ID, map[string]any{
		"period": decl.Period,
		"flow":   string(decl.Flow),
		"lines":  len(lines),
	})
	return *decl, nil
}

func (s *Service) Submit(ctx context.Context, id string) (domain.Declaration, error) {
	orgID, decl, err := s.load(ctx, id)
	if err != nil {
		return domain.Declaration{}, err
	}

	now := s.clock.Now()
	var moved bool
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		var txErr error
		moved, txErr = s.repo.MarkSubmitted(ctx, tx, orgID, decl.ID, now)
		return txErr
	})
	if err != nil {
		return domain.Declaration{}, err
	}
	if !moved {
		return domain.Declaration{}, domain.ErrStatusConflict
	}

	decl.Status = domain.StatusSubmitted
	decl.SubmittedAt = &now
	decl.UpdatedAt = now

	s.writeAuditLog(ctx, orgID, "deb.submit", decl.ID, map[string]any{
		"period": decl.Period,
		"flow":   string(decl.Flow),
	})
	return *decl, nil
}

func (s *Service) Reopen(ctx context.Context, id string) (domain.Declaration, error) {
	orgID, decl, err := s.load(ctx, id)
	if err != nil {
		return domain.Declaration{}, err
	}

	now := s.clock.Now()
	var moved bool
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		var txErr error
		moved, txErr = s.repo.MarkDraft(ctx, tx, orgID, decl.ID, now)
		return txErr
	})
	if err != nil {
		return domain.Declaration{}, err
	}
	if !moved {
		return domain.Declaration{}, domain.ErrStatusConflict
	}

	decl.Status = domain.StatusDraft
	decl.ValidatedAt = nil
	decl.UpdatedAt = now

	s.writeAuditLog(ctx, orgID, "deb.reopen", decl.ID, nil)
	return *decl, nil
}

func (s *Service) Export(ctx context.Context, id string) (domain.ExportResult, error) {
	orgID, decl, err := s.load(ctx, id)
	if err != nil {
		return domain.ExportResult{}, err
	}

	lines, err := s.repo.ListLines(ctx, s.db, orgID, decl.ID)
	if err != nil {
		return domain.ExportResult{}, err
	}

	content, err := renderWorkbook(decl, lines)
	if err != nil {
		return domain.ExportResult{}, err
	}

	s.writeAuditLog(ctx, orgID, "deb.export", decl.ID, map[string]any{
		"lines": len(lines),
	})
	return domain.ExportResult{
		Filename: fmt.Sprintf("deb_%s_%s.xlsx", decl.Period, decl.Flow),
		Content:  content,
	}, nil
}

var exportHeader = []any{
	"Ligne", "Nomenclature (NC8)", "Pays", "Valeur fiscale (EUR)",
	"Masse nette (kg)", "Nature", "Description",
}

// renderWorkbook lays the declaration out as one sheet: a header row,
// one row per line, and a totals row.
func renderWorkbook(decl *domain.Declaration, lines []domain.Line) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "DEB"
	f.SetSheetName("Sheet1", sheet)

	for col, value := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return nil, err
		}
	}

	totalValue := decimal.Zero
	totalMass := decimal.Zero
	for i, line := range lines {
		row := i + 2
		values := []any{
			i + 1,
			line.HSCode,
			line.CountryCode,
			line.Value.InexactFloat64(),
			"",
			line.Nature,
			line.Description,
		}
		if line.MassKG != nil {
			values[4] = line.MassKG.InexactFloat64()
			totalMass = totalMass.Add(*line.MassKG)
		}
		totalValue = totalValue.Add(line.Value)

		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	totalsRow := len(lines) + 2
	totals := []any{"TOTAL", "", "", totalValue.InexactFloat64(), totalMass.InexactFloat64(), "", ""}
	for col, value := range totals {
		cell, err := excelize.CoordinatesToCellName(col+1, totalsRow)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// checkLines runs the pre-validation pass: every line needs an 8-digit
// nomenclature code, a positive fiscal value and an EU partner country.
func checkLines(lines []domain.Line) []domain.LineIssue {
	var issues []domain.LineIssue
	for _, line := range lines {
		if strings.TrimSpace(line.Description) == "" {
			issues = append(issues, domain.LineIssue{
				LineID:  line.ID,
				Field:   "description",
				Message: "must not be empty",
			})
		}
		if !validNC8(line.HSCode) {
			issues = append(issues, domain.LineIssue{
				LineID:  line.ID,
				Field:   "hs_code",
				Message: "must be an 8-digit nomenclature code",
			})
		}
		if !line.Value.IsPositive() {
			issues = append(issues, domain.LineIssue{
				LineID:  line.ID,
				Field:   "value",
				Message: "must be a positive amount",
			})
		}
		if !domain.ValidPartnerCountry(line.CountryCode) {
			issues = append(issues, domain.LineIssue{
				LineID:  line.ID,
				Field:   "country_code",
				Message: "must be an EU partner country",
			})
		}
		if line.MassKG != nil && line.MassKG.IsNegative() {
			issues = append(issues, domain.LineIssue{
				LineID:  line.ID,
				Field:   "mass_kg",
				Message: "must not be negative",
			})
		}
	}
	return issues
}

func validNC8(code string) bool {
	if len(code) != 8 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Service) buildLine(orgID, declarationID snowflake.ID, req domain.LineInput) (*domain.Line, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, domain.ErrInvalidLine
	}
	if req.Value.IsNegative() {
		return nil, domain.ErrInvalidLine
	}
	if req.MassKG != nil && req.MassKG.IsNegative() {
		return nil, domain.ErrInvalidLine
	}

	nature := strings.TrimSpace(req.Nature)
	if nature == "" {
		nature = domain.NatureDefault
	}

	now := s.clock.Now()
	line := &domain.Line{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		DeclarationID: declarationID,
		Description:   description,
		HSCode:        strings.TrimSpace(req.HSCode),
		CountryCode:   strings.ToUpper(strings.TrimSpace(req.CountryCode)),
		Value:         req.Value,
		MassKG:        req.MassKG,
		Nature:        nature,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if raw := strings.TrimSpace(req.DocumentID); raw != "" {
		docID, err := snowflake.ParseString(raw)
		if err != nil || docID == 0 {
			return nil, domain.ErrInvalidLine
		}
		line.DocumentID = &docID
	}
	if raw := strings.TrimSpace(req.InvoiceID); raw != "" {
		invoiceID, err := snowflake.ParseString(raw)
		if err != nil || invoiceID == 0 {
			return nil, domain.ErrInvalidLine
		}
		line.InvoiceID = &invoiceID
	}

	return line, nil
}

func (s *Service) detail(ctx context.Context, orgID snowflake.ID, decl *domain.Declaration) (domain.Detail, error) {
	lines, err := s.repo.ListLines(ctx, s.db, orgID, decl.ID)
	if err != nil {
		return domain.Detail{}, err
	}

	totalValue := decimal.Zero
	totalMass := decimal.Zero
	for _, line := range lines {
		totalValue = totalValue.Add(line.Value)
		if line.MassKG != nil {
			totalMass = totalMass.Add(*line.MassKG)
		}
	}

	return domain.Detail{
		Declaration: *decl,
		Lines:       lines,
		TotalValue:  totalValue,
		TotalMass:   totalMass,
	}, nil
}

func (s *Service) load(ctx context.Context, id string) (snowflake.ID, *domain.Declaration, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, nil, domain.ErrInvalidOrganization
	}

	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return 0, nil, domain.ErrInvalidID
	}

	decl, err := s.repo.FindByID(ctx, s.db, orgID, parsed)
	if err != nil {
		return 0, nil, err
	}
	if decl == nil {
		return 0, nil, domain.ErrNotFound
	}
	return orgID, decl, nil
}

func (s *Service) writeAuditLog(ctx context.Context, orgID snowflake.ID, action string, declID snowflake.ID, metadata map[string]any) {
	targetID := declID.String()
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "deb_declaration", &targetID, metadata)
}

func parseFlow(raw string) (domain.Flow, error) {
	flow := domain.Flow(strings.ToLower(strings.TrimSpace(raw)))
	switch flow {
	case domain.FlowIntroduction, domain.FlowExpedition:
		return flow, nil
	}
	return "", domain.ErrInvalidFlow
}
