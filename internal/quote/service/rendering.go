package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/pdf"
	quotedomain "github.com/zyalhor1961/corematch-web-sub006/internal/quote/domain"
	"go.uber.org/zap"
)

// RenderPDF returns the printable quote. Quotes render fresh on every
// call; they are short-lived documents and not worth a storage cache.
func (s *service) RenderPDF(ctx context.Context, id string) ([]byte, error) {
	orgID, quote, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.ListLines(ctx, s.db, orgID, quote.ID)
	if err != nil {
		return nil, err
	}

	data := s.buildRenderData(ctx, quote, lines)
	content, err := s.pdf.RenderQuote(ctx, data)
	if err != nil {
		s.metrics.RecordPDFRender("error")
		return nil, fmt.Errorf("%w: %v", quotedomain.ErrRenderFailed, err)
	}
	s.metrics.RecordPDFRender("ok")
	return content, nil
}

func (s *service) buildRenderData(ctx context.Context, quote *quotedomain.Quote, lines []quotedomain.QuoteLine) pdf.QuoteData {
	data := pdf.QuoteData{
		OrgName:      s.loadOrgName(ctx, quote.OrgID),
		QuoteNumber:  quote.QuoteNumber,
		Status:       string(quote.Status),
		CustomerName: quote.CustomerName,
		IssueDate:    formatDate(quote.IssueDate),
		ValidUntil:   formatDate(quote.ValidUntil),
		Currency:     quote.Currency,
		NetTotal:     quote.NetAmount.StringFixed(2),
		TaxTotal:     quote.TaxAmount.StringFixed(2),
		Total:        quote.TotalAmount.StringFixed(2),
	}
	for _, line := range lines {
		data.Items = append(data.Items, pdf.LineItem{
			Description: line.Description,
			Quantity:    line.Quantity.String(),
			UnitPrice:   line.UnitPrice.StringFixed(2),
			VATRate:     formatVATRate(line.VATRate),
			LineTotal:   line.LineTotal.StringFixed(2),
		})
	}
	return data
}

func (s *service) loadOrgName(ctx context.Context, orgID snowflake.ID) string {
	var name string
	err := s.db.WithContext(ctx).Raw(
		`SELECT name FROM organizations WHERE id = ?`,
		orgID,
	).Scan(&name).Error
	if err != nil {
		s.log.Warn("organization name lookup failed", zap.Error(err))
		return ""
	}
	return name
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func formatVATRate(rate *float64) string {
	if rate == nil || *rate <= 0 {
		return ""
	}
	return strconv.FormatFloat(*rate*100, 'f', -1, 64) + "%"
}
