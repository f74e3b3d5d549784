// Package normalizer folds provider-labelled extracted fields into a
// fixed set of document attributes. Field names arrive free-text and
// language-mixed (French and English), so matching is substring-based
// over a built-in vocabulary, optionally extended at runtime through
// the vocabulary config file.
package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/unidecode"
	"github.com/shopspring/decimal"
)

// Vocabulary keys accepted from operator-supplied extensions.
const (
	AttrTotalAmount   = "total_amount"
	AttrTaxAmount     = "tax_amount"
	AttrNetAmount     = "net_amount"
	AttrCurrency      = "currency"
	AttrDocumentDate  = "document_date"
	AttrDueDate       = "due_date"
	AttrVendorName    = "vendor_name"
	AttrVendorTaxID   = "vendor_tax_id"
	AttrInvoiceNumber = "invoice_number"
	AttrCustomerName  = "customer_name"
)

// Field is one name/value pair scanned by a normalization pass.
type Field struct {
	Name  string
	Value string
}

// Result is the flat attribute record produced by one pass. Attributes
// that never matched, or whose values never parsed, stay nil.
type Result struct {
	VendorName    *string
	VendorTaxID   *string
	CustomerName  *string
	InvoiceNumber *string
	DocumentDate  *string
	DueDate       *string
	TotalAmount   *decimal.Decimal
	TaxAmount     *decimal.Decimal
	NetAmount     *decimal.Decimal
	Currency      *string
	FieldCount    int
	Note          string
}

// Attribute matchers are independent: one field may populate several
// attributes when its name crosses pattern lists ("Sous-total" carries
// both "sous-total" and "total"). Field order is the only tie-break.
var builtinPatterns = map[string][]string{
	AttrTotalAmount:   {"montant total", "total ttc", "totalpayer", "total a payer", "amount due", "grand total", "total"},
	AttrTaxAmount:     {"montant tva", "tva", "vat", "tax amount", "taxe", "tax"},
	AttrNetAmount:     {"montant ht", "sous-total", "sous total", "subtotal", "hors taxe", "net"},
	AttrDocumentDate:  {"date de facture", "date facture", "invoice date", "date d'emission", "date emission", "date"},
	AttrDueDate:       {"echeance", "date d'echeance", "due date", "date limite", "payable avant"},
	AttrVendorName:    {"fournisseur", "vendeur", "vendor", "supplier", "emetteur", "seller"},
	AttrVendorTaxID:   {"siret", "siren", "tva intracommunautaire", "numero tva", "no tva", "vat number", "tax id"},
	AttrInvoiceNumber: {"numero de facture", "numero facture", "invoice number", "invoice no", "facture no", "facture"},
	AttrCustomerName:  {"client", "customer", "destinataire", "acheteur", "buyer", "bill to", "facture a"},
}

type currencyMarker struct {
	token string
	code  string
}

// Checked in order inside a single value; across fields the last
// matching field wins.
var builtinCurrencyMarkers = []currencyMarker{
	{token: "€", code: "EUR"},
	{token: "EUR", code: "EUR"},
	{token: "$", code: "USD"},
	{token: "USD", code: "USD"},
	{token: "£", code: "GBP"},
	{token: "GBP", code: "GBP"},
	{token: "CHF", code: "CHF"},
}

type Normalizer struct {
	patterns        map[string][]string
	currencyMarkers []currencyMarker
}

// New returns a normalizer with the built-in vocabulary.
func New() *Normalizer {
	return NewWithExtensions(nil)
}

// NewWithExtensions appends operator-supplied substring patterns to the
// built-in lists. Extensions under the currency key are treated as
// extra value markers mapping to their own uppercased code. Unknown
// keys are ignored.
func NewWithExtensions(extra map[string][]string) *Normalizer {
	patterns := make(map[string][]string, len(builtinPatterns))
	for attr, list := range builtinPatterns {
		patterns[attr] = append([]string(nil), list...)
	}
	markers := append([]currencyMarker(nil), builtinCurrencyMarkers...)

	for attr, list := range extra {
		switch attr {
		case AttrCurrency:
			for _, token := range list {
				token = strings.ToUpper(strings.TrimSpace(token))
				if token == "" {
					continue
				}
				markers = append(markers, currencyMarker{token: token, code: token})
			}
		case AttrTotalAmount, AttrTaxAmount, AttrNetAmount, AttrDocumentDate,
			AttrDueDate, AttrVendorName, AttrVendorTaxID, AttrInvoiceNumber, AttrCustomerName:
			for _, p := range list {
				p = fold(p)
				if p == "" {
					continue
				}
				patterns[attr] = append(patterns[attr], p)
			}
		}
	}

	return &Normalizer{patterns: patterns, currencyMarkers: markers}
}

// Normalize runs one pass over fields in order. Attributes lock on the
// first usable value; an unparseable value does not lock, and neither
// does a zero amount, so later matches may still fill them. Currency is
// the exception: it is detected from values, not names, and every later
// match overwrites it.
func (n *Normalizer) Normalize(fields []Field, now time.Time) Result {
	res := Result{FieldCount: len(fields)}

	for _, f := range fields {
		name := fold(f.Name)
		value := strings.TrimSpace(f.Value)

		if amountUnset(res.TotalAmount) && n.matches(name, AttrTotalAmount) {
			res.TotalAmount = orKeep(res.TotalAmount, parseAmount(value))
		}
		if amountUnset(res.TaxAmount) && n.matches(name, AttrTaxAmount) {
			res.TaxAmount = orKeep(res.TaxAmount, parseAmount(value))
		}
		if amountUnset(res.NetAmount) && n.matches(name, AttrNetAmount) {
			res.NetAmount = orKeep(res.NetAmount, parseAmount(value))
		}

		if res.DocumentDate == nil && n.matches(name, AttrDocumentDate) {
			if iso := parseDate(value); iso != "" {
				res.DocumentDate = &iso
			}
		}
		if res.DueDate == nil && n.matches(name, AttrDueDate) {
			if iso := parseDate(value); iso != "" {
				res.DueDate = &iso
			}
		}

		if res.VendorName == nil && value != "" && n.matches(name, AttrVendorName) {
			res.VendorName = strptr(value)
		}
		if res.VendorTaxID == nil && value != "" && n.matches(name, AttrVendorTaxID) {
			res.VendorTaxID = strptr(value)
		}
		if res.InvoiceNumber == nil && value != "" && n.matches(name, AttrInvoiceNumber) {
			res.InvoiceNumber = strptr(value)
		}
		if res.CustomerName == nil && value != "" && n.matches(name, AttrCustomerName) {
			res.CustomerName = strptr(value)
		}

		if code := n.detectCurrency(f.Value); code != "" {
			res.Currency = &code
		}
	}

	res.Note = fmt.Sprintf("Normalized %d extracted field(s) at %s", len(fields), now.UTC().Format(time.RFC3339))
	return res
}

func (n *Normalizer) matches(foldedName, attr string) bool {
	for _, p := range n.patterns[attr] {
		if strings.Contains(foldedName, p) {
			return true
		}
	}
	return false
}

func (n *Normalizer) detectCurrency(value string) string {
	upper := strings.ToUpper(value)
	for _, m := range n.currencyMarkers {
		if strings.Contains(upper, m.token) {
			return m.code
		}
	}
	return ""
}

func amountUnset(d *decimal.Decimal) bool {
	return d == nil || d.IsZero()
}

func orKeep(current, parsed *decimal.Decimal) *decimal.Decimal {
	if parsed == nil {
		return current
	}
	return parsed
}

func strptr(s string) *string { return &s }

func fold(s string) string {
	return strings.ToLower(unidecode.Unidecode(s))
}

// ParseAmount exposes the monetary parser so field persistence can carry
// the same numeric reading the attribute pass would produce. Returns nil
// when no numeric prefix survives the cleanup.
func ParseAmount(raw string) *decimal.Decimal {
	return parseAmount(raw)
}

// parseAmount strips everything that is not a digit, comma, dot, or
// minus, turns the first comma into a decimal point, and parses the
// longest leading float prefix. Thousands-separated input is therefore
// mis-parsed ("1,234.56" comes out as 1.234); the stored behavior is
// kept as-is because downstream totals were reconciled against it.
func parseAmount(raw string) *decimal.Decimal {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.Replace(b.String(), ",", ".", 1)
	prefix := floatPrefix(cleaned)
	if prefix == "" {
		return nil
	}
	d, err := decimal.NewFromString(prefix)
	if err != nil {
		return nil
	}
	return &d
}

// floatPrefix mirrors parseFloat: optional minus, digits, at most one
// point. Returns "" when no digits are consumed.
func floatPrefix(s string) string {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	digitsBefore := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digitsBefore++
	}
	digitsAfter := 0
	end := i
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			digitsAfter++
		}
		if digitsAfter > 0 {
			end = i
		}
	}
	if digitsBefore == 0 && digitsAfter == 0 {
		return ""
	}
	return s[:end]
}

var frenchMonths = map[string]int{
	"janvier":   1,
	"fevrier":   2,
	"mars":      3,
	"avril":     4,
	"mai":       5,
	"juin":      6,
	"juillet":   7,
	"aout":      8,
	"septembre": 9,
	"octobre":   10,
	"novembre":  11,
	"decembre":  12,
}

var (
	frenchLongDateRe = regexp.MustCompile(`(\d{1,2})(?:er)?\s+(janvier|fevrier|mars|avril|mai|juin|juillet|aout|septembre|octobre|novembre|decembre)\s+(\d{4})`)
	numericDateRe    = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
	isoDateRe        = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

// parseDate recognizes, in priority order: French long form
// ("31 juillet 2025", case and diacritic insensitive, "1er" accepted),
// numeric D/M/YYYY or D-M-YYYY, and ISO YYYY-MM-DD. Output is always
// zero-padded YYYY-MM-DD; anything else yields "".
func parseDate(raw string) string {
	folded := fold(raw)

	if m := frenchLongDateRe.FindStringSubmatch(folded); m != nil {
		day, _ := strconv.Atoi(m[1])
		month := frenchMonths[m[2]]
		year, _ := strconv.Atoi(m[3])
		if day >= 1 && day <= 31 {
			return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
		}
	}

	if m := numericDateRe.FindStringSubmatch(raw); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if day >= 1 && day <= 31 && month >= 1 && month <= 12 {
			return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
		}
	}

	if m := isoDateRe.FindStringSubmatch(raw); m != nil {
		day, _ := strconv.Atoi(m[3])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[1])
		if day >= 1 && day <= 31 && month >= 1 && month <= 12 {
			return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
		}
	}

	return ""
}
