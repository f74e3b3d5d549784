// Package pdf renders printable invoice and quote documents with maroto.
// Callers pass pre-formatted strings; layout is the only concern here.
package pdf

import "context"

type Provider interface {
	RenderInvoice(ctx context.Context, data InvoiceData) ([]byte, error)
	RenderQuote(ctx context.Context, data QuoteData) ([]byte, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) RenderInvoice(ctx context.Context, data InvoiceData) ([]byte, error) {
	return nil, nil
}

func (p *NoOpProvider) RenderQuote(ctx context.Context, data QuoteData) ([]byte, error) {
	return nil, nil
}
