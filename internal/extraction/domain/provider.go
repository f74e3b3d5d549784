package domain

import (
	"context"
	"errors"
)

// RawField is one candidate name/value pair emitted by an analysis
// provider. Bounding box coordinates are in the provider's pixel space.
type RawField struct {
	Name       string
	Value      string
	Confidence float64
	Page       int
	X0         float64
	Y0         float64
	X1         float64
	Y1         float64
}

// Provider turns raw document bytes into candidate fields. Field names
// come back exactly as the provider labelled them, language-mixed and
// uncanonicalized; the normalizer deals with that downstream.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, content []byte, contentType string) ([]RawField, error)
}

var (
	ErrProviderUnavailable = errors.New("analysis_provider_unavailable")
	ErrUnsupportedContent  = errors.New("unsupported_content_type")
)
