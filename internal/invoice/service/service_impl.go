package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/zyalhor1961/corematch-web-sub006/internal/account/domain"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	documentdomain "github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	invoicedomain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/invoice/format"
	journaldomain "github.com/zyalhor1961/corematch-web-sub006/internal/journal/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	productdomain "github.com/zyalhor1961/corematch-web-sub006/internal/product/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/pdf"
	referencedomain "github.com/zyalhor1961/corematch-web-sub006/internal/reference/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/storage"
	taxdomain "github.com/zyalhor1961/corematch-web-sub006/internal/tax/domain"
	taxservice "github.com/zyalhor1961/corematch-web-sub006/internal/tax/service"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/rls"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// totalsTolerance bounds accepted drift between client-supplied and
// computed totals. Stored amounts are rounded to cents, so anything past
// a cent is a real mismatch.
var totalsTolerance = decimal.New(1, -2)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      invoicedomain.Repository
	Products  productdomain.Repository
	Taxes     taxdomain.TaxResolver
	Journal   journaldomain.Repository
	Accounts  accountdomain.Repository
	Documents documentdomain.Repository
	Reference referencedomain.Repository
	Storage   storage.Provider
	PDF       pdf.Provider
	Metrics   *telemetry.Metrics `optional:"true"`
	Audit     auditdomain.Service
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      invoicedomain.Repository
	products  productdomain.Repository
	taxes     taxdomain.TaxResolver
	journal   journaldomain.Repository
	accounts  accountdomain.Repository
	documents documentdomain.Repository
	reference referencedomain.Repository
	storage   storage.Provider
	pdf       pdf.Provider
	metrics   *telemetry.Metrics
	auditSvc  auditdomain.Service
}

func New(p Params) invoicedomain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		products:  p.Products,
		taxes:     p.Taxes,
		journal:   p.Journal,
		accounts:  p.Accounts,
		documents: p.Documents,
		reference: p.Reference,
		storage:   p.Storage,
		pdf:       p.PDF,
		metrics:   p.Metrics,
		auditSvc:  p.Audit,
	}
}

func (s *service) Create(ctx context.Context, req invoicedomain.CreateRequest) (invoicedomain.Detail, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return invoicedomain.Detail{}, invoicedomain.ErrInvalidOrganization
	}

	direction := invoicedomain.InvoiceDirection(strings.ToLower(strings.TrimSpace(req.Direction)))
	if direction == "" {
		direction = invoicedomain.DirectionSale
	}
	switch direction {
	case invoicedomain.DirectionSale, invoicedomain.DirectionPurchase:
	default:
		return invoicedomain.Detail{}, invoicedomain.ErrInvalidDirection
	}

	customerName := strings.TrimSpace(req.CustomerName)
	if customerName == "" {
		return invoicedomain.Detail{}, invoicedomain.ErrInvalidCustomer
	}

	currency, err := s.resolveCurrency(ctx, req.Currency)
	if err != nil {
		return invoicedomain.Detail{}, err
	}

	issueDate, err := parseOptionalDate(req.IssueDate)
	if err != nil {
		return invoicedomain.Detail{}, err
	}
	dueDate, err := parseOptionalDate(req.DueDate)
	if err != nil {
		return invoicedomain.Detail{}, err
	}

	now := s.clock.Now()
	invoice := invoicedomain.Invoice{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		Direction:    direction,
		CustomerName: customerName,
		Status:       invoicedomain.InvoiceStatusDraft,
		Currency:     currency,
		IssueDate:    issueDate,
		DueDate:      dueDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		invoice.CustomerEmail = &email
	}
	if vat := strings.TrimSpace(req.CustomerVAT); vat != "" {
		invoice.CustomerVAT = &vat
	}

	if raw := strings.TrimSpace(req.DocumentID); raw != "" {
		documentID, err := snowflake.ParseString(raw)
		if err != nil || documentID == 0 {
			return invoicedomain.Detail{}, invoicedomain.ErrInvalidDocument
		}
		doc, err := s.documents.FindByID(ctx, s.db, orgID, documentID)
		if err != nil {
			return invoicedomain.Detail{}, err
		}
		if doc == nil {
			return invoicedomain.Detail{}, invoicedomain.ErrInvalidDocument
		}
		invoice.DocumentID = &documentID
	}
	if raw := strings.TrimSpace(req.QuoteID); raw != "" {
		quoteID, err := snowflake.ParseString(raw)
		if err != nil || quoteID == 0 {
			return invoicedomain.Detail{}, invoicedomain.ErrInvalidQuote
		}
		invoice.QuoteID = &quoteID
	}

	computed, err := s.buildLines(ctx, orgID, invoice.ID, req.Lines)
	if err != nil {
		return invoicedomain.Detail{}, err
	}
	if err := checkSuppliedTotals(computed, req.NetAmount, req.TaxAmount, req.TotalAmount); err != nil {
		return invoicedomain.Detail{}, err
	}
	invoice.NetAmount = computed.net
	invoice.TaxAmount = computed.tax
	invoice.TotalAmount = computed.total

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		seq, err := s.repo.NextSequence(ctx, tx, orgID)
		if err != nil {
			return err
		}
		number, err := format.FormatInvoiceNumber(format.DefaultInvoiceNumberTemplate, now, seq)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number
		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
			return err
		}
		return s.repo.InsertLines(ctx, tx, computed.lines)
	})
	if err != nil {
		return invoicedomain.Detail{}, err
	}

	s.writeAuditLog(ctx, orgID, "invoice.create", invoice.ID, map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"direction":      string(invoice.Direction),
		"total":          invoice.TotalAmount.StringFixed(2),
	})

	return detailOf(invoice, computed.lines), nil
}

func (s *service) List(ctx context.Context, req invoicedomain.ListRequest) (invoicedomain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return invoicedomain.ListResponse{}, invoicedomain.ErrInvalidOrganization
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	filter := invoicedomain.ListFilter{
		Status:    invoicedomain.InvoiceStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Direction: invoicedomain.InvoiceDirection(strings.ToLower(strings.TrimSpace(req.Direction))),
	}
	from, err := parseOptionalDate(req.IssueDateFrom)
	if err != nil {
		return invoicedomain.ListResponse{}, err
	}
	filter.IssueDateFrom = from
	to, err := parseOptionalDate(req.IssueDateTo)
	if err != nil {
		return invoicedomain.ListResponse{}, err
	}
	filter.IssueDateTo = to

	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return invoicedomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *invoicedomain.Invoice) string {
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

	resp := invoicedomain.ListResponse{Invoices: make([]invoicedomain.Invoice, 0, len(items))}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	for _, item := range items {
		resp.Invoices = append(resp.Invoices, *item)
	}
	return resp, nil
}

func (s *service) GetByID(ctx context.Context, id string) (invoicedomain.Detail, error) {
	orgID, invoice, err := s.load(ctx, id)
	if err != nil {
		return invoicedomain.Detail{}, err
	}
	lines, err := s.repo.ListLines(ctx, s.db, orgID, invoice.ID)
	if err != nil {
		return invoicedomain.Detail{}, err
	}
	return invoicedomain.Detail{Invoice: *invoice, Lines: lines}, nil
}

func (s *service) UpdateDraft(ctx context.Context, req invoicedomain.UpdateDraftRequest) (invoicedomain.Detail, error) {
	orgID, invoice, err := s.load(ctx, req.ID)
	if err != nil {
		return invoicedomain.Detail{}, err
	}
	if invoice.Status != invoicedomain.InvoiceStatusDraft {
		return invoicedomain.Detail{}, invoicedomain.ErrStatusConflict
	}

	if req.CustomerName != nil {
		name := strings.TrimSpace(*req.CustomerName)
		if name == "" {
			return invoicedomain.Detail{}, invoicedomain.ErrInvalidCustomer
		}
		invoice.CustomerName = name
	}
	if req.CustomerEmail != nil {
		invoice.CustomerEmail = optionalText(*req.CustomerEmail)
	}
	if req.CustomerVAT != nil {
		invoice.CustomerVAT = optionalText(*req.CustomerVAT)
	}
	if req.IssueDate != nil {
		parsed, err := parseOptionalDate(*req.IssueDate)
		if err != nil {
			return invoicedomain.Detail{}, err
		}
		invoice.IssueDate = parsed
	}
	if req.DueDate != nil {
		parsed, err := parseOptionalDate(*req.DueDate)
		if err != nil {
			return invoicedomain.Detail{}, err
		}
		invoice.DueDate = parsed
	}

	var replacement *computedLines
	if req.Lines != nil {
		computed, err := s.buildLines(ctx, orgID, invoice.ID, req.Lines)
		if err != nil {
			return invoicedomain.Detail{}, err
		}
		replacement = &computed
		invoice.NetAmount = computed.net
		invoice.TaxAmount = computed.tax
		invoice.TotalAmount = computed.total
	}
	invoice.UpdatedAt = s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		updated, err := s.repo.UpdateDraft(ctx, tx, invoice)
		if err != nil {
			return err
		}
		if !updated {
			return invoicedomain.ErrStatusConflict
		}
		if replacement != nil {
			return s.repo.ReplaceLines(ctx, tx, orgID, invoice.ID, replacement.lines)
		}
		return nil
	})
	if err != nil {
		return invoicedomain.Detail{}, err
	}

	s.writeAuditLog(ctx, orgID, "invoice.update", invoice.ID, map[string]any{
		"total": invoice.TotalAmount.StringFixed(2),
	})

	if replacement != nil {
		return detailOf(*invoice, replacement.lines), nil
	}
	lines, err := s.repo.ListLines(ctx, s.db, orgID, invoice.ID)
	if err != nil {
		return invoicedomain.Detail{}, err
	}
	return invoicedomain.Detail{Invoice: *invoice, Lines: lines}, nil
}

func (s *service) MarkPaid(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	orgID, invoice, err := s.load(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		paid, err := s.repo.MarkPaid(ctx, tx, orgID, invoice.ID, now)
		if err != nil {
			return err
		}
		if !paid {
			return invoicedomain.ErrStatusConflict
		}
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	invoice.Status = invoicedomain.InvoiceStatusPaid
	invoice.PaidAt = &now
	invoice.UpdatedAt = now

	s.writeAuditLog(ctx, orgID, "invoice.paid", invoice.ID, map[string]any{
		"invoice_number": invoice.InvoiceNumber,
	})
	return *invoice, nil
}

// Void cancels a draft or open invoice. An open invoice already posted
// to the journal gets its posting reversed in the same transaction so
// the books stay balanced.
func (s *service) Void(ctx context.Context, id string, reason string) (invoicedomain.Invoice, error) {
	orgID, invoice, err := s.load(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		voided, err := s.repo.MarkVoid(ctx, tx, orgID, invoice.ID, now)
		if err != nil {
			return err
		}
		if !voided {
			return invoicedomain.ErrStatusConflict
		}
		if invoice.JournalEntryID != nil {
			return s.reversePosting(ctx, tx, orgID, *invoice.JournalEntryID, now)
		}
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	invoice.Status = invoicedomain.InvoiceStatusVoid
	invoice.VoidedAt = &now
	invoice.UpdatedAt = now

	metadata := map[string]any{"invoice_number": invoice.InvoiceNumber}
	if reason = strings.TrimSpace(reason); reason != "" {
		metadata["reason"] = reason
	}
	s.writeAuditLog(ctx, orgID, "invoice.void", invoice.ID, metadata)
	return *invoice, nil
}

type computedLines struct {
	lines []*invoicedomain.InvoiceLine
	net   decimal.Decimal
	tax   decimal.Decimal
	total decimal.Decimal
}

// buildLines prices every input line. Math stays exact until the
// per-line rounding in taxservice.TaxFor, so summed totals always
// satisfy net + tax = total.
func (s *service) buildLines(ctx context.Context, orgID, invoiceID snowflake.ID, inputs []invoicedomain.LineInput) (computedLines, error) {
	out := computedLines{net: decimal.Zero, tax: decimal.Zero, total: decimal.Zero}
	if len(inputs) == 0 {
		return out, invoicedomain.ErrNoLines
	}

	for i, in := range inputs {
		description := strings.TrimSpace(in.Description)
		unitPrice := in.UnitPrice
		vatRate := in.VATRate
		mode := taxdomain.TaxModeExclusive

		if raw := strings.TrimSpace(in.ProductID); raw != "" {
			productID, err := snowflake.ParseString(raw)
			if err != nil || productID == 0 {
				return out, fmt.Errorf("%w: %s", invoicedomain.ErrUnknownProduct, in.ProductID)
			}
			product, err := s.products.FindByID(ctx, s.db, orgID, productID)
			if err != nil {
				return out, err
			}
			if product == nil || !product.IsActive {
				return out, fmt.Errorf("%w: %s", invoicedomain.ErrUnknownProduct, in.ProductID)
			}
			if description == "" {
				description = product.Name
			}
			if unitPrice == nil {
				price := product.UnitPrice
				unitPrice = &price
			}
			if vatRate == nil && strings.TrimSpace(in.VATCode) == "" && product.VATRate != nil {
				rate := *product.VATRate
				vatRate = &rate
			}
		}

		if description == "" {
			return out, invoicedomain.ErrMissingDescription
		}
		if unitPrice == nil || unitPrice.Sign() < 0 {
			return out, invoicedomain.ErrInvalidUnitPrice
		}

		quantity := in.Quantity
		if quantity.IsZero() {
			quantity = decimal.NewFromInt(1)
		}
		if quantity.Sign() <= 0 {
			return out, invoicedomain.ErrInvalidQuantity
		}

		if vatRate == nil {
			def, err := s.resolveLineTax(ctx, orgID, in.VATCode)
			if err != nil {
				return out, err
			}
			if def != nil && def.Rate != nil && *def.Rate > 0 {
				rate := *def.Rate
				vatRate = &rate
				mode = def.TaxMode
			}
		}
		if vatRate != nil && (*vatRate < 0 || *vatRate > 1) {
			return out, invoicedomain.ErrInvalidVATRate
		}

		line := invoicedomain.InvoiceLine{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			InvoiceID:   invoiceID,
			Description: description,
			Quantity:    quantity.Round(3),
			UnitPrice:   unitPrice.Round(4),
			VATRate:     vatRate,
			Position:    i,
		}

		gross := line.Quantity.Mul(line.UnitPrice).Round(2)
		rate := 0.0
		if vatRate != nil {
			rate = *vatRate
		}
		if mode == taxdomain.TaxModeInclusive {
			line.LineTotal = gross
			line.LineTax = taxservice.TaxFor(gross, rate, taxdomain.TaxModeInclusive)
			line.LineNet = gross.Sub(line.LineTax)
		} else {
			line.LineNet = gross
			line.LineTax = taxservice.TaxFor(gross, rate, taxdomain.TaxModeExclusive)
			line.LineTotal = gross.Add(line.LineTax)
		}

		out.lines = append(out.lines, &line)
		out.net = out.net.Add(line.LineNet)
		out.tax = out.tax.Add(line.LineTax)
		out.total = out.total.Add(line.LineTotal)
	}
	return out, nil
}

func (s *service) resolveLineTax(ctx context.Context, orgID snowflake.ID, vatCode string) (*taxdomain.TaxDefinition, error) {
	if code := strings.TrimSpace(vatCode); code != "" {
		def, err := s.taxes.ResolveByCode(ctx, orgID, code)
		if err != nil {
			return nil, err
		}
		if def == nil {
			return nil, fmt.Errorf("%w: %s", invoicedomain.ErrUnknownTaxCode, code)
		}
		return def, nil
	}
	return s.taxes.ResolveDefault(ctx, orgID)
}

func checkSuppliedTotals(computed computedLines, net, tax, total *decimal.Decimal) error {
	if net != nil && net.Sub(computed.net).Abs().GreaterThan(totalsTolerance) {
		return fmt.Errorf("%w: net computed=%s supplied=%s",
			invoicedomain.ErrTotalsMismatch, computed.net.StringFixed(2), net.StringFixed(2))
	}
	if tax != nil && tax.Sub(computed.tax).Abs().GreaterThan(totalsTolerance) {
		return fmt.Errorf("%w: tax computed=%s supplied=%s",
			invoicedomain.ErrTotalsMismatch, computed.tax.StringFixed(2), tax.StringFixed(2))
	}
	if total != nil && total.Sub(computed.total).Abs().GreaterThan(totalsTolerance) {
		return fmt.Errorf("%w: total computed=%s supplied=%s",
			invoicedomain.ErrTotalsMismatch, computed.total.StringFixed(2), total.StringFixed(2))
	}
	return nil
}

func (s *service) resolveCurrency(ctx context.Context, raw string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(raw))
	if currency == "" {
		return "EUR", nil
	}
	found, err := s.reference.FindCurrency(ctx, currency)
	if err != nil {
		return "", err
	}
	if found == nil {
		return "", fmt.Errorf("%w: %s", invoicedomain.ErrInvalidCurrency, currency)
	}
	return currency, nil
}

func (s *service) load(ctx context.Context, id string) (snowflake.ID, *invoicedomain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, nil, invoicedomain.ErrInvalidOrganization
	}
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || invoiceID == 0 {
		return 0, nil, invoicedomain.ErrInvalidID
	}
	invoice, err := s.repo.FindByID(ctx, s.db, orgID, invoiceID)
	if err != nil {
		return 0, nil, err
	}
	if invoice == nil {
		return 0, nil, invoicedomain.ErrNotFound
	}
	return orgID, invoice, nil
}

func (s *service) writeAuditLog(ctx context.Context, orgID snowflake.ID, action string, invoiceID snowflake.ID, metadata map[string]any) {
	targetID := invoiceID.String()
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "invoice", &targetID, metadata)
}

func detailOf(invoice invoicedomain.Invoice, lines []*invoicedomain.InvoiceLine) invoicedomain.Detail {
	detail := invoicedomain.Detail{Invoice: invoice}
	for _, line := range lines {
		detail.Lines = append(detail.Lines, *line)
	}
	return detail
}

func parseOptionalDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, invoicedomain.ErrInvalidDate
	}
	return &parsed, nil
}

func optionalText(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return &raw
}
