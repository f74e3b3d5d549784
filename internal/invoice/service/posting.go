package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/zyalhor1961/corematch-web-sub006/internal/account/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/cloudmetrics"
	invoicedomain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
	journaldomain "github.com/zyalhor1961/corematch-web-sub006/internal/journal/domain"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/rls"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Open finalizes a draft invoice: a balanced journal entry is posted
// against the seeded chart of accounts and the row flips draft -> open,
// all in one transaction. The invoice number was already claimed at
// create time, so reruns after a conflict never burn sequence values.
func (s *service) Open(ctx context.Context, id string) (invoicedomain.Detail, error) {
	orgID, invoice, err := s.load(ctx, id)
	if err != nil {
		return invoicedomain.Detail{}, err
	}
	if invoice.Status != invoicedomain.InvoiceStatusDraft {
		return invoicedomain.Detail{}, invoicedomain.ErrStatusConflict
	}

	lines, err := s.repo.ListLines(ctx, s.db, orgID, invoice.ID)
	if err != nil {
		return invoicedomain.Detail{}, err
	}

	now := s.clock.Now()
	var entry *journaldomain.JournalEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		entry, err = s.postToJournal(ctx, tx, invoice, now)
		if err != nil {
			return err
		}
		entryID := entry.ID
		opened, err := s.repo.MarkOpen(ctx, tx, orgID, invoice.ID, &entryID, now)
		if err != nil {
			return err
		}
		if !opened {
			return invoicedomain.ErrStatusConflict
		}
		return nil
	})
	if err != nil {
		return invoicedomain.Detail{}, err
	}

	invoice.Status = invoicedomain.InvoiceStatusOpen
	entryID := entry.ID
	invoice.JournalEntryID = &entryID
	invoice.IssuedAt = &now
	if invoice.IssueDate == nil {
		invoice.IssueDate = &now
	}
	invoice.UpdatedAt = now

	s.log.Info("invoice opened",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("journal_entry_id", entry.ID.String()),
		zap.String("total", invoice.TotalAmount.StringFixed(2)),
	)
	s.writeAuditLog(ctx, orgID, "invoice.open", invoice.ID, map[string]any{
		"invoice_number":   invoice.InvoiceNumber,
		"journal_entry_id": entry.ID.String(),
	})
	cloudmetrics.RecordInvoiceIssued(orgID.String())

	return invoicedomain.Detail{Invoice: *invoice, Lines: lines}, nil
}

// postToJournal writes the double entry for an invoice. Must be called
// inside the Open transaction so the posting and the status flip commit
// together.
//
// Sales:      debit 411 Clients (total) / credit 707 Ventes (net)
//             / credit 44571 TVA collectée (tax)
// Purchases:  debit 606 Achats (net) / debit 44566 TVA déductible (tax)
//             / credit 401 Fournisseurs (total)
func (s *service) postToJournal(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, now time.Time) (*journaldomain.JournalEntry, error) {
	accounts, err := s.loadPostingAccounts(ctx, tx, invoice.OrgID, invoice.Direction)
	if err != nil {
		return nil, err
	}

	lines := postingLines(invoice.Direction, accounts, invoice.NetAmount, invoice.TaxAmount, invoice.TotalAmount)
	if err := requireBalanced(lines); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Invoice %s - %s", invoice.InvoiceNumber, invoice.CustomerName)
	sourceID := invoice.ID
	entry := &journaldomain.JournalEntry{
		ID:          s.genID.Generate(),
		OrgID:       invoice.OrgID,
		EntryDate:   now,
		Reference:   &invoice.InvoiceNumber,
		Description: &description,
		Status:      journaldomain.StatusPosted,
		SourceType:  journaldomain.SourceInvoice,
		SourceID:    &sourceID,
		PostedAt:    &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.journal.InsertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}

	journalLines := make([]*journaldomain.JournalLine, 0, len(lines))
	for i, line := range lines {
		journalLines = append(journalLines, &journaldomain.JournalLine{
			ID:        s.genID.Generate(),
			OrgID:     invoice.OrgID,
			EntryID:   entry.ID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Position:  i,
		})
	}
	if err := s.journal.InsertLines(ctx, tx, journalLines); err != nil {
		return nil, err
	}
	return entry, nil
}

// reversePosting undoes an invoice's journal entry on void. A posting
// that was already reversed through the journal API is left alone.
func (s *service) reversePosting(ctx context.Context, tx *gorm.DB, orgID, entryID snowflake.ID, now time.Time) error {
	entry, err := s.journal.FindEntryByID(ctx, tx, orgID, entryID)
	if err != nil {
		return err
	}
	if entry == nil || entry.Status != journaldomain.StatusPosted {
		return nil
	}
	lines, err := s.journal.ListLines(ctx, tx, orgID, entryID)
	if err != nil {
		return err
	}

	mirror, mirrorLines := journaldomain.BuildReversal(entry, lines, s.genID, now)
	reversed, err := s.journal.MarkReversed(ctx, tx, orgID, entry.ID, mirror.ID, now)
	if err != nil {
		return err
	}
	if !reversed {
		return nil
	}
	if err := s.journal.InsertEntry(ctx, tx, mirror); err != nil {
		return err
	}
	return s.journal.InsertLines(ctx, tx, mirrorLines)
}

type postingAccounts struct {
	counterparty snowflake.ID
	income       snowflake.ID
	vat          snowflake.ID
}

func (s *service) loadPostingAccounts(ctx context.Context, db *gorm.DB, orgID snowflake.ID, direction invoicedomain.InvoiceDirection) (postingAccounts, error) {
	codes := []string{accountdomain.CodeCustomers, accountdomain.CodeSales, accountdomain.CodeVATCollected}
	if direction == invoicedomain.DirectionPurchase {
		codes = []string{accountdomain.CodeSuppliers, accountdomain.CodePurchases, accountdomain.CodeVATDeducted}
	}

	var out postingAccounts
	targets := []*snowflake.ID{&out.counterparty, &out.income, &out.vat}
	for i, code := range codes {
		account, err := s.accounts.FindByCode(ctx, db, orgID, code)
		if err != nil {
			return out, err
		}
		if account == nil || !account.IsActive {
			return out, fmt.Errorf("account %s not seeded for org %s", code, orgID)
		}
		*targets[i] = account.ID
	}
	return out, nil
}

// postingLine is one leg of the double entry, before IDs are assigned.
type postingLine struct {
	AccountID snowflake.ID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

func postingLines(direction invoicedomain.InvoiceDirection, accounts postingAccounts, net, tax, total decimal.Decimal) []postingLine {
	if direction == invoicedomain.DirectionPurchase {
		lines := []postingLine{
			{AccountID: accounts.income, Debit: net},
		}
		if tax.Sign() > 0 {
			lines = append(lines, postingLine{AccountID: accounts.vat, Debit: tax})
		}
		return append(lines, postingLine{AccountID: accounts.counterparty, Credit: total})
	}

	lines := []postingLine{
		{AccountID: accounts.counterparty, Debit: total},
		{AccountID: accounts.income, Credit: net},
	}
	if tax.Sign() > 0 {
		lines = append(lines, postingLine{AccountID: accounts.vat, Credit: tax})
	}
	return lines
}

func requireBalanced(lines []postingLine) error {
	debits := decimal.Zero
	credits := decimal.Zero
	for _, line := range lines {
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}
	if !debits.Equal(credits) {
		return fmt.Errorf("posting unbalanced: debits=%s credits=%s",
			debits.StringFixed(2), credits.StringFixed(2))
	}
	return nil
}
