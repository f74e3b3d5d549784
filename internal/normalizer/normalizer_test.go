package normalizer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 7, 31, 10, 30, 0, 0, time.UTC)

func TestNormalizeBasicInvoice(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{
		{Name: "Total TTC", Value: "150.00"},
		{Name: "Montant HT", Value: "125.00"},
	}, testNow)

	require.NotNil(t, res.TotalAmount)
	require.NotNil(t, res.NetAmount)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("150.00")))
	assert.True(t, res.NetAmount.Equal(decimal.RequireFromString("125.00")))
	assert.Nil(t, res.TaxAmount)
}

func TestNormalizeFrenchLongDates(t *testing.T) {
	cases := []struct {
		value string
		want  string
	}{
		{"31 juillet 2025", "2025-07-31"},
		{"1er janvier 2024", "2024-01-01"},
		{"15 Décembre 2023", "2023-12-15"},
		{"3 aout 2025", "2025-08-03"},
		{"12 Février 2026", "2026-02-12"},
		{"Fait le 9 mars 2025 à Paris", "2025-03-09"},
	}

	n := New()
	for _, tc := range cases {
		res := n.Normalize([]Field{{Name: "Date de facture", Value: tc.value}}, testNow)
		require.NotNil(t, res.DocumentDate, "value %q", tc.value)
		assert.Equal(t, tc.want, *res.DocumentDate, "value %q", tc.value)
	}
}

func TestNormalizeNumericDates(t *testing.T) {
	cases := []struct {
		value string
		want  string
	}{
		{"31/07/2025", "2025-07-31"},
		{"5-3-2024", "2024-03-05"},
		{"7/12/2025", "2025-12-07"},
		{"1/1/2023", "2023-01-01"},
	}

	n := New()
	for _, tc := range cases {
		res := n.Normalize([]Field{{Name: "Invoice Date", Value: tc.value}}, testNow)
		require.NotNil(t, res.DocumentDate, "value %q", tc.value)
		assert.Equal(t, tc.want, *res.DocumentDate, "value %q", tc.value)
	}
}

func TestNormalizeISODate(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{{Name: "Date", Value: "2025-07-31"}}, testNow)

	require.NotNil(t, res.DocumentDate)
	assert.Equal(t, "2025-07-31", *res.DocumentDate)
}

func TestNormalizeDateShapePriority(t *testing.T) {
	// French long form beats the numeric shape inside the same value.
	n := New()

	res := n.Normalize([]Field{
		{Name: "Date de facture", Value: "2 janvier 2025 (saisie 15/02/2025)"},
	}, testNow)

	require.NotNil(t, res.DocumentDate)
	assert.Equal(t, "2025-01-02", *res.DocumentDate)
}

func TestNormalizeUnparseableDateStaysNull(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{{Name: "Date de facture", Value: "hier"}}, testNow)

	assert.Nil(t, res.DocumentDate)
}

func TestNormalizeDueDate(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{
		{Name: "Date d'échéance", Value: "30/09/2025"},
	}, testNow)

	require.NotNil(t, res.DueDate)
	assert.Equal(t, "2025-09-30", *res.DueDate)
}

func TestNormalizeFirstMatchWins(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{
		{Name: "Montant Total", Value: "100.00"},
		{Name: "Total TTC", Value: "200.00"},
	}, testNow)

	require.NotNil(t, res.TotalAmount)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("100.00")))
}

func TestNormalizeZeroAmountDoesNotLock(t *testing.T) {
	// A parsed zero is not treated as populated; a later match replaces it.
	n := New()

	res := n.Normalize([]Field{
		{Name: "Total", Value: "0"},
		{Name: "Montant Total", Value: "200.00"},
	}, testNow)

	require.NotNil(t, res.TotalAmount)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("200.00")))
}

func TestNormalizeUnparseableAmountDoesNotLock(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{
		{Name: "Total", Value: "N/A"},
		{Name: "Montant Total", Value: "99.90"},
	}, testNow)

	require.NotNil(t, res.TotalAmount)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("99.90")))
}

func TestNormalizeAmountParsing(t *testing.T) {
	cases := []struct {
		value string
		want  string
	}{
		{"150.00", "150"},
		{"150,00", "150"},
		{"EUR 89,90", "89.9"},
		{"1 234,56", "1234.56"},
		{"-42.50", "-42.5"},
		// Thousands separators corrupt the value; the stored behavior
		// is load-bearing for historical data.
		{"1,234.56", "1.234"},
		{"1.234,56", "1.234"},
	}

	n := New()
	for _, tc := range cases {
		res := n.Normalize([]Field{{Name: "Total TTC", Value: tc.value}}, testNow)
		require.NotNil(t, res.TotalAmount, "value %q", tc.value)
		assert.Equal(t, tc.want, res.TotalAmount.String(), "value %q", tc.value)
	}
}

func TestNormalizeAmountWithoutDigitsStaysNull(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{{Name: "Total TTC", Value: "sur demande"}}, testNow)

	assert.Nil(t, res.TotalAmount)
}

func TestNormalizeCurrencyFromValues(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{
		{Name: "Total TTC", Value: "150,00 €"},
	}, testNow)

	require.NotNil(t, res.Currency)
	assert.Equal(t, "EUR", *res.Currency)
	require.NotNil(t, res.TotalAmount)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("150.00")))
}

func TestNormalizeCurrencyLastMatchWins(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{
		{Name: "Sous-total", Value: "125.00 EUR"},
		{Name: "Frais", Value: "10.00 $"},
	}, testNow)

	require.NotNil(t, res.Currency)
	assert.Equal(t, "USD", *res.Currency)
}

func TestNormalizeCurrencyCodes(t *testing.T) {
	cases := []struct {
		value string
		want  string
	}{
		{"150.00 €", "EUR"},
		{"150.00 eur", "EUR"},
		{"$150.00", "USD"},
		{"150.00 usd", "USD"},
		{"£99", "GBP"},
		{"99 gbp", "GBP"},
		{"200 CHF", "CHF"},
	}

	n := New()
	for _, tc := range cases {
		res := n.Normalize([]Field{{Name: "Total", Value: tc.value}}, testNow)
		require.NotNil(t, res.Currency, "value %q", tc.value)
		assert.Equal(t, tc.want, *res.Currency, "value %q", tc.value)
	}
}

func TestNormalizeStringAttributes(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{
		{Name: "Fournisseur", Value: "ACME SARL"},
		{Name: "N° TVA Intracommunautaire", Value: "FR40123456824"},
		{Name: "Numéro de facture", Value: "FAC-2025-0042"},
		{Name: "Client", Value: "Dupont SA"},
	}, testNow)

	require.NotNil(t, res.VendorName)
	assert.Equal(t, "ACME SARL", *res.VendorName)
	require.NotNil(t, res.VendorTaxID)
	assert.Equal(t, "FR40123456824", *res.VendorTaxID)
	require.NotNil(t, res.InvoiceNumber)
	assert.Equal(t, "FAC-2025-0042", *res.InvoiceNumber)
	require.NotNil(t, res.CustomerName)
	assert.Equal(t, "Dupont SA", *res.CustomerName)
}

func TestNormalizeEmptyValueDoesNotLockString(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{
		{Name: "Fournisseur", Value: "   "},
		{Name: "Vendeur", Value: "ACME SARL"},
	}, testNow)

	require.NotNil(t, res.VendorName)
	assert.Equal(t, "ACME SARL", *res.VendorName)
}

func TestNormalizeCrossMatchingField(t *testing.T) {
	// "Sous-total" carries both the net pattern and the bare "total"
	// pattern; one field populates both attributes.
	n := New()

	res := n.Normalize([]Field{
		{Name: "Sous-total", Value: "125.00"},
	}, testNow)

	require.NotNil(t, res.TotalAmount)
	require.NotNil(t, res.NetAmount)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("125.00")))
	assert.True(t, res.NetAmount.Equal(decimal.RequireFromString("125.00")))
}

func TestNormalizeNoMatchesStillSucceeds(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{
		{Name: "Référence interne", Value: "X-1"},
		{Name: "Commentaire", Value: "RAS"},
	}, testNow)

	assert.Nil(t, res.TotalAmount)
	assert.Nil(t, res.TaxAmount)
	assert.Nil(t, res.NetAmount)
	assert.Nil(t, res.VendorName)
	assert.Nil(t, res.DocumentDate)
	assert.Equal(t, 2, res.FieldCount)
	assert.Equal(t, "Normalized 2 extracted field(s) at 2025-07-31T10:30:00Z", res.Note)
}

func TestNormalizeNoteRecordsFieldCountAndTimestamp(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{
		{Name: "Total TTC", Value: "10"},
		{Name: "Montant TVA", Value: "2"},
		{Name: "Montant HT", Value: "8"},
	}, testNow)

	assert.Equal(t, 3, res.FieldCount)
	assert.Equal(t, "Normalized 3 extracted field(s) at 2025-07-31T10:30:00Z", res.Note)
}

func TestNormalizeEmptyFieldList(t *testing.T) {
	n := New()

	res := n.Normalize(nil, testNow)

	assert.Equal(t, 0, res.FieldCount)
	assert.Equal(t, "Normalized 0 extracted field(s) at 2025-07-31T10:30:00Z", res.Note)
	assert.Nil(t, res.TotalAmount)
	assert.Nil(t, res.Currency)
}

func TestNormalizeVocabularyExtensions(t *testing.T) {
	n := NewWithExtensions(map[string][]string{
		AttrTotalAmount: {"somme due"},
		AttrCurrency:    {"CAD"},
	})

	res := n.Normalize([]Field{
		{Name: "Somme due", Value: "300,00 CAD"},
	}, testNow)

	require.NotNil(t, res.TotalAmount)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("300.00")))
	require.NotNil(t, res.Currency)
	assert.Equal(t, "CAD", *res.Currency)
}

func TestNormalizeUnknownExtensionKeyIgnored(t *testing.T) {
	n := NewWithExtensions(map[string][]string{
		"shoe_size": {"pointure"},
	})

	res := n.Normalize([]Field{{Name: "Pointure", Value: "44"}}, testNow)

	assert.Nil(t, res.TotalAmount)
}

func TestNormalizeTaxAmount(t *testing.T) {
	n := New()

	res := n.Normalize([]Field{
		{Name: "Montant TVA", Value: "25,00"},
	}, testNow)

	require.NotNil(t, res.TaxAmount)
	assert.True(t, res.TaxAmount.Equal(decimal.RequireFromString("25.00")))
}
