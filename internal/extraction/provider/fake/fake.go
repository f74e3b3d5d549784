// Package fake implements a configurable in-memory analysis provider
// for tests and local development.
package fake

import (
	"context"
	"sync"

	"github.com/zyalhor1961/corematch-web-sub006/internal/extraction/domain"
)

type Provider struct {
	mu     sync.Mutex
	fields []domain.RawField
	err    error
	calls  int
}

// New returns a provider that emits a plausible French invoice so the
// pipeline produces visible output out of the box.
func New() *Provider {
	return &Provider{
		fields: []domain.RawField{
			{Name: "Fournisseur", Value: "ACME SARL", Confidence: 0.98, Page: 1},
			{Name: "Numéro de facture", Value: "FAC-2025-0001", Confidence: 0.97, Page: 1},
			{Name: "Date de facture", Value: "31 juillet 2025", Confidence: 0.95, Page: 1},
			{Name: "Montant HT", Value: "125,00 €", Confidence: 0.96, Page: 1},
			{Name: "Montant TVA", Value: "25,00 €", Confidence: 0.96, Page: 1},
			{Name: "Total TTC", Value: "150,00 €", Confidence: 0.99, Page: 1},
		},
	}
}

func (p *Provider) Name() string { return "fake" }

func (p *Provider) Analyze(ctx context.Context, content []byte, contentType string) ([]domain.RawField, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	out := make([]domain.RawField, len(p.fields))
	copy(out, p.fields)
	return out, nil
}

// SetFields replaces the emitted field set.
func (p *Provider) SetFields(fields ...domain.RawField) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fields = fields
}

// SetError makes every Analyze call fail with err until reset.
func (p *Provider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Calls reports how many times Analyze ran.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
