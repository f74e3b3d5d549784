package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	invoicedomain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/invoice/format"
	leaddomain "github.com/zyalhor1961/corematch-web-sub006/internal/lead/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	productdomain "github.com/zyalhor1961/corematch-web-sub006/internal/product/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/pdf"
	quotedomain "github.com/zyalhor1961/corematch-web-sub006/internal/quote/domain"
	referencedomain "github.com/zyalhor1961/corematch-web-sub006/internal/reference/domain"
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

var totalsTolerance = decimal.New(1, -2)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      quotedomain.Repository
	Products  productdomain.Repository
	Taxes     taxdomain.TaxResolver
	Leads     leaddomain.Repository
	Invoices  invoicedomain.Repository
	Reference referencedomain.Repository
	PDF       pdf.Provider
	Metrics   *telemetry.Metrics `optional:"true"`
	Audit     auditdomain.Service
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      quotedomain.Repository
	products  productdomain.Repository
	taxes     taxdomain.TaxResolver
	leads     leaddomain.Repository
	invoices  invoicedomain.Repository
	reference referencedomain.Repository
	pdf       pdf.Provider
	metrics   *telemetry.Metrics
	auditSvc  auditdomain.Service
}

func New(p Params) quotedomain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("quote.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		products:  p.Products,
		taxes:     p.Taxes,
		leads:     p.Leads,
		invoices:  p.Invoices,
		reference: p.Reference,
		pdf:       p.PDF,
		metrics:   p.Metrics,
		auditSvc:  p.Audit,
	}
}

func (s *service) Create(ctx context.Context, req quotedomain.CreateRequest) (quotedomain.Detail, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return quotedomain.Detail{}, quotedomain.ErrInvalidOrganization
	}

	var lead *leaddomain.Lead
	if raw := strings.TrimSpace(req.LeadID); raw != "" {
		leadID, err := snowflake.ParseString(raw)
		if err != nil || leadID == 0 {
			return quotedomain.Detail{}, quotedomain.ErrInvalidLead
		}
		lead, err = s.leads.FindByID(ctx, s.db, orgID, leadID)
		if err != nil {
			return quotedomain.Detail{}, err
		}
		if lead == nil {
			return quotedomain.Detail{}, quotedomain.ErrInvalidLead
		}
	}

	customerName := strings.TrimSpace(req.CustomerName)
	if customerName == "" && lead != nil {
		customerName = lead.CompanyName
	}
	if customerName == "" {
		return quotedomain.Detail{}, quotedomain.ErrInvalidCustomer
	}

	currency, err := s.resolveCurrency(ctx, req.Currency)
	if err != nil {
		return quotedomain.Detail{}, err
	}

	issueDate, err := parseOptionalDate(req.IssueDate)
	if err != nil {
		return quotedomain.Detail{}, err
	}
	validUntil, err := parseOptionalDate(req.ValidUntil)
	if err != nil {
		return quotedomain.Detail{}, err
	}

	now := s.clock.Now()
	quote := quotedomain.Quote{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		CustomerName: customerName,
		Status:       quotedomain.QuoteStatusDraft,
		Currency:     currency,
		IssueDate:    issueDate,
		ValidUntil:   validUntil,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if lead != nil {
		leadID := lead.ID
		quote.LeadID = &leadID
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		quote.CustomerEmail = &email
	} else if lead != nil && lead.Email != nil {
		quote.CustomerEmail = lead.Email
	}

	computed, err := s.buildLines(ctx, orgID, quote.ID, req.Lines)
	if err != nil {
		return quotedomain.Detail{}, err
	}
	if err := checkSuppliedTotals(computed, req.NetAmount, req.TaxAmount, req.TotalAmount); err != nil {
		return quotedomain.Detail{}, err
	}
	quote.NetAmount = computed.net
	quote.TaxAmount = computed.tax
	quote.TotalAmount = computed.total

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		seq, err := s.repo.NextSequence(ctx, tx, orgID)
		if err != nil {
			return err
		}
		number, err := format.FormatInvoiceNumber(format.DefaultQuoteNumberTemplate, now, seq)
		if err != nil {
			return err
		}
		quote.QuoteNumber = number
		if err := s.repo.Insert(ctx, tx, &quote); err != nil {
			return err
		}
		return s.repo.InsertLines(ctx, tx, computed.lines)
	})
	if err != nil {
		return quotedomain.Detail{}, err
	}

	s.writeAuditLog(ctx, orgID, "quote.create", quote.ID, map[string]any{
		"quote_number": quote.QuoteNumber,
		"total":        quote.TotalAmount.StringFixed(2),
	})

	return detailOf(quote, computed.lines), nil
}

func (s *service) List(ctx context.Context, req quotedomain.ListRequest) (quotedomain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return quotedomain.ListResponse{}, quotedomain.ErrInvalidOrganization
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	filter := quotedomain.ListFilter{
		Status: quotedomain.QuoteStatus(strings.ToLower(strings.TrimSpace(req.Status))),
	}
	if raw := strings.TrimSpace(req.LeadID); raw != "" {
		leadID, err := snowflake.ParseString(raw)
		if err != nil || leadID == 0 {
			return quotedomain.ListResponse{}, quotedomain.ErrInvalidLead
		}
		filter.LeadID = leadID
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return quotedomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *quotedomain.Quote) string {
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

	resp := quotedomain.ListResponse{Quotes: make([]quotedomain.Quote, 0, len(items))}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	for _, item := range items {
		resp.Quotes = append(resp.Quotes, *item)
	}
	return resp, nil
}

func (s *service) GetByID(ctx context.Context, id string) (quotedomain.Detail, error) {
	orgID, quote, err := s.load(ctx, id)
	if err != nil {
		return quotedomain.Detail{}, err
	}
	lines, err := s.repo.ListLines(ctx, s.db, orgID, quote.ID)
	if err != nil {
		return quotedomain.Detail{}, err
	}
	return quotedomain.Detail{Quote: *quote, Lines: lines}, nil
}

func (s *service) UpdateDraft(ctx context.Context, req quotedomain.UpdateDraftRequest) (quotedomain.Detail, error) {
	orgID, quote, err := s.load(ctx, req.ID)
	if err != nil {
		return quotedomain.Detail{}, err
	}
	if quote.Status != quotedomain.QuoteStatusDraft {
		return quotedomain.Detail{}, quotedomain.ErrStatusConflict
	}

	if req.CustomerName != nil {
		name := strings.TrimSpace(*req.CustomerName)
		if name == "" {
			return quotedomain.Detail{}, quotedomain.ErrInvalidCustomer
		}
		quote.CustomerName = name
	}
	if req.CustomerEmail != nil {
		quote.CustomerEmail = optionalText(*req.CustomerEmail)
	}
	if req.IssueDate != nil {
		parsed, err := parseOptionalDate(*req.IssueDate)
		if err != nil {
			return quotedomain.Detail{}, err
		}
		quote.IssueDate = parsed
	}
	if req.ValidUntil != nil {
		parsed, err := parseOptionalDate(*req.ValidUntil)
		if err != nil {
			return quotedomain.Detail{}, err
		}
		quote.ValidUntil = parsed
	}

	var replacement *computedLines
	if req.Lines != nil {
		computed, err := s.buildLines(ctx, orgID, quote.ID, req.Lines)
		if err != nil {
			return quotedomain.Detail{}, err
		}
		replacement = &computed
		quote.NetAmount = computed.net
		quote.TaxAmount = computed.tax
		quote.TotalAmount = computed.total
	}
	quote.UpdatedAt = s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		updated, err := s.repo.UpdateDraft(ctx, tx, quote)
		if err != nil {
			return err
		}
		if !updated {
			return quotedomain.ErrStatusConflict
		}
		if replacement != nil {
			return s.repo.ReplaceLines(ctx, tx, orgID, quote.ID, replacement.lines)
		}
		return nil
	})
	if err != nil {
		return quotedomain.Detail{}, err
	}

	s.writeAuditLog(ctx, orgID, "quote.update", quote.ID, map[string]any{
		"total": quote.TotalAmount.StringFixed(2),
	})

	if replacement != nil {
		return detailOf(*quote, replacement.lines), nil
	}
	lines, err := s.repo.ListLines(ctx, s.db, orgID, quote.ID)
	if err != nil {
		return quotedomain.Detail{}, err
	}
	return quotedomain.Detail{Quote: *quote, Lines: lines}, nil
}

type computedLines struct {
	lines []*quotedomain.QuoteLine
	net   decimal.Decimal
	tax   decimal.Decimal
	total decimal.Decimal
}

// buildLines prices the requested lines with the same rules as invoice
// lines: exact decimals until the per-line rounding in
// taxservice.TaxFor, so net + tax = total by construction.
func (s *service) buildLines(ctx context.Context, orgID, quoteID snowflake.ID, inputs []quotedomain.LineInput) (computedLines, error) {
	out := computedLines{net: decimal.Zero, tax: decimal.Zero, total: decimal.Zero}
	if len(inputs) == 0 {
		return out, quotedomain.ErrNoLines
	}

	for i, in := range inputs {
		description := strings.TrimSpace(in.Description)
		unitPrice := in.UnitPrice
		vatRate := in.VATRate
		mode := taxdomain.TaxModeExclusive

		if raw := strings.TrimSpace(in.ProductID); raw != "" {
			productID, err := snowflake.ParseString(raw)
			if err != nil || productID == 0 {
				return out, fmt.Errorf("%w: %s", quotedomain.ErrUnknownProduct, in.ProductID)
			}
			product, err := s.products.FindByID(ctx, s.db, orgID, productID)
			if err != nil {
				return out, err
			}
			if product == nil || !product.IsActive {
				return out, fmt.Errorf("%w: %s", quotedomain.ErrUnknownProduct, in.ProductID)
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
			return out, quotedomain.ErrMissingDescription
		}
		if unitPrice == nil || unitPrice.Sign() < 0 {
			return out, quotedomain.ErrInvalidUnitPrice
		}

		quantity := in.Quantity
		if quantity.IsZero() {
			quantity = decimal.NewFromInt(1)
		}
		if quantity.Sign() <= 0 {
			return out, quotedomain.ErrInvalidQuantity
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
			return out, quotedomain.ErrInvalidVATRate
		}

		line := quotedomain.QuoteLine{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			QuoteID:     quoteID,
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
			return nil, fmt.Errorf("%w: %s", quotedomain.ErrUnknownTaxCode, code)
		}
		return def, nil
	}
	return s.taxes.ResolveDefault(ctx, orgID)
}

func checkSuppliedTotals(computed computedLines, net, tax, total *decimal.Decimal) error {
	if net != nil && net.Sub(computed.net).Abs().GreaterThan(totalsTolerance) {
		return fmt.Errorf("%w: net computed=%s supplied=%s",
			quotedomain.ErrTotalsMismatch, computed.net.StringFixed(2), net.StringFixed(2))
	}
	if tax != nil && tax.Sub(computed.tax).Abs().GreaterThan(totalsTolerance) {
		return fmt.Errorf("%w: tax computed=%s supplied=%s",
			quotedomain.ErrTotalsMismatch, computed.tax.StringFixed(2), tax.StringFixed(2))
	}
	if total != nil && total.Sub(computed.total).Abs().GreaterThan(totalsTolerance) {
		return fmt.Errorf("%w: total computed=%s supplied=%s",
			quotedomain.ErrTotalsMismatch, computed.total.StringFixed(2), total.StringFixed(2))
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
		return "", fmt.Errorf("%w: %s", quotedomain.ErrInvalidCurrency, currency)
	}
	return currency, nil
}

func (s *service) load(ctx context.Context, id string) (snowflake.ID, *quotedomain.Quote, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, nil, quotedomain.ErrInvalidOrganization
	}
	quoteID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || quoteID == 0 {
		return 0, nil, quotedomain.ErrInvalidID
	}
	quote, err := s.repo.FindByID(ctx, s.db, orgID, quoteID)
	if err != nil {
		return 0, nil, err
	}
	if quote == nil {
		return 0, nil, quotedomain.ErrNotFound
	}
	return orgID, quote, nil
}

func (s *service) writeAuditLog(ctx context.Context, orgID snowflake.ID, action string, quoteID snowflake.ID, metadata map[string]any) {
	targetID := quoteID.String()
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "quote", &targetID, metadata)
}

func detailOf(quote quotedomain.Quote, lines []*quotedomain.QuoteLine) quotedomain.Detail {
	detail := quotedomain.Detail{Quote: quote}
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
		return nil, quotedomain.ErrInvalidDate
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
