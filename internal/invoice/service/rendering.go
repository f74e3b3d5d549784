package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/pdf"
	"github.com/zyalhor1961/corematch-web-sub006/internal/storage"
	"go.uber.org/zap"
)

// RenderPDF returns the printable invoice. Non-draft renders are cached
// in object storage keyed under the org prefix; drafts render fresh on
// every call since their contents can still change.
func (s *service) RenderPDF(ctx context.Context, id string) ([]byte, error) {
	orgID, invoice, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if invoice.Status != invoicedomain.InvoiceStatusDraft && invoice.PDFPath != nil {
		content, err := s.storage.Get(ctx, *invoice.PDFPath)
		if err == nil {
			return content, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		s.log.Warn("cached invoice pdf missing, re-rendering",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("path", *invoice.PDFPath),
		)
	}

	lines, err := s.repo.ListLines(ctx, s.db, orgID, invoice.ID)
	if err != nil {
		return nil, err
	}

	data := s.buildRenderData(ctx, invoice, lines)
	content, err := s.pdf.RenderInvoice(ctx, data)
	if err != nil {
		s.metrics.RecordPDFRender("error")
		return nil, fmt.Errorf("%w: %v", invoicedomain.ErrRenderFailed, err)
	}
	s.metrics.RecordPDFRender("ok")

	if invoice.Status != invoicedomain.InvoiceStatusDraft {
		key := fmt.Sprintf("org/%s/invoices/%s.pdf", orgID, invoice.ID)
		if err := s.storage.Put(ctx, key, content, "application/pdf"); err != nil {
			s.log.Warn("invoice pdf cache write failed",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Error(err),
			)
		} else if err := s.repo.SetPDFPath(ctx, s.db, orgID, invoice.ID, key, s.clock.Now()); err != nil {
			s.log.Warn("invoice pdf path update failed",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Error(err),
			)
		}
	}
	return content, nil
}

func (s *service) buildRenderData(ctx context.Context, invoice *invoicedomain.Invoice, lines []invoicedomain.InvoiceLine) pdf.InvoiceData {
	data := pdf.InvoiceData{
		OrgName:       s.loadOrgName(ctx, invoice.OrgID),
		InvoiceNumber: invoice.InvoiceNumber,
		Status:        string(invoice.Status),
		Direction:     string(invoice.Direction),
		CustomerName:  invoice.CustomerName,
		IssueDate:     formatDate(invoice.IssueDate),
		DueDate:       formatDate(invoice.DueDate),
		Currency:      invoice.Currency,
		NetTotal:      invoice.NetAmount.StringFixed(2),
		TaxTotal:      invoice.TaxAmount.StringFixed(2),
		Total:         invoice.TotalAmount.StringFixed(2),
	}
	if invoice.CustomerVAT != nil {
		data.CustomerVAT = *invoice.CustomerVAT
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
