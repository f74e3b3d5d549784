package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result is one hit returned by the search provider.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary"`
}

// Provider runs web searches for lead sourcing. Implementations must be
// safe for concurrent use.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

var ErrNotConfigured = errors.New("search provider not configured")

type DisabledProvider struct{}

func (p *DisabledProvider) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	return nil, ErrNotConfigured
}

// HTTPProvider speaks the Exa wire format: POST /search with a bearer key
// and a {query, numResults} body.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTP(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"numResults"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

func (p *HTTPProvider) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	payload, err := json.Marshal(searchRequest{Query: query, NumResults: limit})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search provider returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return decoded.Results, nil
}
