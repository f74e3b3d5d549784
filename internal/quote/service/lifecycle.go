package service

import (
	"context"
	"time"

	invoicedomain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/invoice/format"
	leaddomain "github.com/zyalhor1961/corematch-web-sub006/internal/lead/domain"
	quotedomain "github.com/zyalhor1961/corematch-web-sub006/internal/quote/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/rls"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *service) Send(ctx context.Context, id string) (quotedomain.Quote, error) {
	orgID, quote, err := s.load(ctx, id)
	if err != nil {
		return quotedomain.Quote{}, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		sent, err := s.repo.MarkSent(ctx, tx, orgID, quote.ID, now)
		if err != nil {
			return err
		}
		if !sent {
			return quotedomain.ErrStatusConflict
		}
		return nil
	})
	if err != nil {
		return quotedomain.Quote{}, err
	}

	quote.Status = quotedomain.QuoteStatusSent
	quote.SentAt = &now
	if quote.IssueDate == nil {
		quote.IssueDate = &now
	}
	quote.UpdatedAt = now

	s.writeAuditLog(ctx, orgID, "quote.send", quote.ID, map[string]any{
		"quote_number": quote.QuoteNumber,
	})
	return *quote, nil
}

// Accept converts a sent quote into a draft invoice. Invoice creation,
// the accepted CAS and the lead conversion all share one transaction, so
// a lost race leaves no half-converted state behind. A quote past its
// validity date flips to expired instead of accepting.
func (s *service) Accept(ctx context.Context, id string) (quotedomain.Quote, error) {
	orgID, quote, err := s.load(ctx, id)
	if err != nil {
		return quotedomain.Quote{}, err
	}
	if quote.Status != quotedomain.QuoteStatusSent {
		return quotedomain.Quote{}, quotedomain.ErrStatusConflict
	}

	now := s.clock.Now()
	if pastValidity(quote, now) {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := rls.WithTenant(tx, int64(orgID)); err != nil {
				return err
			}
			_, err := s.repo.MarkExpired(ctx, tx, orgID, quote.ID, now)
			return err
		})
		if err != nil {
			return quotedomain.Quote{}, err
		}
		s.writeAuditLog(ctx, orgID, "quote.expire", quote.ID, map[string]any{
			"quote_number": quote.QuoteNumber,
		})
		return quotedomain.Quote{}, quotedomain.ErrExpired
	}

	lines, err := s.repo.ListLines(ctx, s.db, orgID, quote.ID)
	if err != nil {
		return quotedomain.Quote{}, err
	}

	var invoice invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		created, err := s.createInvoiceFromQuote(ctx, tx, quote, lines, now)
		if err != nil {
			return err
		}
		invoice = *created
		accepted, err := s.repo.MarkAccepted(ctx, tx, orgID, quote.ID, invoice.ID, now)
		if err != nil {
			return err
		}
		if !accepted {
			return quotedomain.ErrStatusConflict
		}
		if quote.LeadID != nil {
			// Lead moves to converted; a lead already terminal stays put.
			if _, err := s.leads.UpdateStatus(ctx, tx, orgID, *quote.LeadID, leaddomain.StatusConverted, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return quotedomain.Quote{}, err
	}

	invoiceID := invoice.ID
	quote.Status = quotedomain.QuoteStatusAccepted
	quote.InvoiceID = &invoiceID
	quote.DecidedAt = &now
	quote.UpdatedAt = now

	s.log.Info("quote accepted",
		zap.String("quote_number", quote.QuoteNumber),
		zap.String("invoice_number", invoice.InvoiceNumber),
	)
	s.writeAuditLog(ctx, orgID, "quote.accept", quote.ID, map[string]any{
		"quote_number":   quote.QuoteNumber,
		"invoice_id":     invoice.ID.String(),
		"invoice_number": invoice.InvoiceNumber,
	})
	return *quote, nil
}

func (s *service) Reject(ctx context.Context, id string) (quotedomain.Quote, error) {
	orgID, quote, err := s.load(ctx, id)
	if err != nil {
		return quotedomain.Quote{}, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		rejected, err := s.repo.MarkRejected(ctx, tx, orgID, quote.ID, now)
		if err != nil {
			return err
		}
		if !rejected {
			return quotedomain.ErrStatusConflict
		}
		return nil
	})
	if err != nil {
		return quotedomain.Quote{}, err
	}

	quote.Status = quotedomain.QuoteStatusRejected
	quote.DecidedAt = &now
	quote.UpdatedAt = now

	s.writeAuditLog(ctx, orgID, "quote.reject", quote.ID, map[string]any{
		"quote_number": quote.QuoteNumber,
	})
	return *quote, nil
}

// createInvoiceFromQuote copies the quote lines into a fresh draft
// invoice. Line amounts carry over as stored, so the invoice totals
// match the quote exactly without repricing.
func (s *service) createInvoiceFromQuote(ctx context.Context, tx *gorm.DB, quote *quotedomain.Quote, lines []quotedomain.QuoteLine, now time.Time) (*invoicedomain.Invoice, error) {
	seq, err := s.invoices.NextSequence(ctx, tx, quote.OrgID)
	if err != nil {
		return nil, err
	}
	number, err := format.FormatInvoiceNumber(format.DefaultInvoiceNumberTemplate, now, seq)
	if err != nil {
		return nil, err
	}

	quoteID := quote.ID
	invoice := invoicedomain.Invoice{
		ID:            s.genID.Generate(),
		OrgID:         quote.OrgID,
		InvoiceNumber: number,
		Direction:     invoicedomain.DirectionSale,
		CustomerName:  quote.CustomerName,
		CustomerEmail: quote.CustomerEmail,
		Status:        invoicedomain.InvoiceStatusDraft,
		Currency:      quote.Currency,
		NetAmount:     quote.NetAmount,
		TaxAmount:     quote.TaxAmount,
		TotalAmount:   quote.TotalAmount,
		QuoteID:       &quoteID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.invoices.Insert(ctx, tx, &invoice); err != nil {
		return nil, err
	}

	invoiceLines := make([]*invoicedomain.InvoiceLine, 0, len(lines))
	for _, line := range lines {
		invoiceLines = append(invoiceLines, &invoicedomain.InvoiceLine{
			ID:          s.genID.Generate(),
			OrgID:       quote.OrgID,
			InvoiceID:   invoice.ID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			VATRate:     line.VATRate,
			LineNet:     line.LineNet,
			LineTax:     line.LineTax,
			LineTotal:   line.LineTotal,
			Position:    line.Position,
		})
	}
	if err := s.invoices.InsertLines(ctx, tx, invoiceLines); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// pastValidity reports whether the validity window has closed. The
// quote stays valid through the whole of its valid_until day.
func pastValidity(quote *quotedomain.Quote, now time.Time) bool {
	if quote.ValidUntil == nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.After(*quote.ValidUntil)
}
