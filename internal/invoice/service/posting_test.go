package service

import (
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/zyalhor1961/corematch-web-sub006/internal/invoice/domain"
)

func testAccounts() postingAccounts {
	return postingAccounts{
		counterparty: snowflake.ID(101),
		income:       snowflake.ID(102),
		vat:          snowflake.ID(103),
	}
}

func TestPostingLinesSale(t *testing.T) {
	accounts := testAccounts()
	lines := postingLines(
		invoicedomain.DirectionSale,
		accounts,
		decimal.RequireFromString("125.00"),
		decimal.RequireFromString("25.00"),
		decimal.RequireFromString("150.00"),
	)

	if len(lines) != 3 {
		t.Fatalf("expected 3 legs, got %d", len(lines))
	}
	if lines[0].AccountID != accounts.counterparty || !lines[0].Debit.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("expected receivable debit 150.00, got %+v", lines[0])
	}
	if lines[1].AccountID != accounts.income || !lines[1].Credit.Equal(decimal.RequireFromString("125.00")) {
		t.Errorf("expected revenue credit 125.00, got %+v", lines[1])
	}
	if lines[2].AccountID != accounts.vat || !lines[2].Credit.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("expected vat credit 25.00, got %+v", lines[2])
	}
	if err := requireBalanced(lines); err != nil {
		t.Errorf("expected balanced posting: %v", err)
	}
}

func TestPostingLinesPurchase(t *testing.T) {
	accounts := testAccounts()
	lines := postingLines(
		invoicedomain.DirectionPurchase,
		accounts,
		decimal.RequireFromString("125.00"),
		decimal.RequireFromString("25.00"),
		decimal.RequireFromString("150.00"),
	)

	if len(lines) != 3 {
		t.Fatalf("expected 3 legs, got %d", len(lines))
	}
	if lines[0].AccountID != accounts.income || !lines[0].Debit.Equal(decimal.RequireFromString("125.00")) {
		t.Errorf("expected expense debit 125.00, got %+v", lines[0])
	}
	if lines[1].AccountID != accounts.vat || !lines[1].Debit.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("expected vat debit 25.00, got %+v", lines[1])
	}
	if lines[2].AccountID != accounts.counterparty || !lines[2].Credit.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("expected payable credit 150.00, got %+v", lines[2])
	}
	if err := requireBalanced(lines); err != nil {
		t.Errorf("expected balanced posting: %v", err)
	}
}

func TestPostingLinesZeroTaxOmitsVATLeg(t *testing.T) {
	lines := postingLines(
		invoicedomain.DirectionSale,
		testAccounts(),
		decimal.RequireFromString("80.00"),
		decimal.Zero,
		decimal.RequireFromString("80.00"),
	)

	if len(lines) != 2 {
		t.Fatalf("expected 2 legs without tax, got %d", len(lines))
	}
	if err := requireBalanced(lines); err != nil {
		t.Errorf("expected balanced posting: %v", err)
	}
}

func TestRequireBalancedCatchesDrift(t *testing.T) {
	lines := []postingLine{
		{AccountID: snowflake.ID(101), Debit: decimal.RequireFromString("150.00")},
		{AccountID: snowflake.ID(102), Credit: decimal.RequireFromString("149.00")},
	}
	err := requireBalanced(lines)
	if err == nil {
		t.Fatal("expected imbalance error")
	}
	if !strings.Contains(err.Error(), "150.00") || !strings.Contains(err.Error(), "149.00") {
		t.Errorf("expected both totals in error, got %q", err.Error())
	}
}
