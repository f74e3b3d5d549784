package llm

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

// Message is one chat turn sent to the completions endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Provider answers chat prompts. CV screening and HS-code suggestion both
// expect the model to return strict JSON; callers run the reply through
// ExtractJSON before unmarshalling. Implementations must be safe for
// concurrent use.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Name() string
	Model() string
}

var ErrNotConfigured = errors.New("llm provider not configured")

type DisabledProvider struct{}

func (p *DisabledProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	return "", ErrNotConfigured
}

func (p *DisabledProvider) Name() string { return "disabled" }

func (p *DisabledProvider) Model() string { return "" }

// HTTPProvider speaks the OpenAI chat-completions wire format: POST
// /chat/completions with a bearer key and a {model, messages} body.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewHTTP(baseURL, apiKey, model string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Name() string { return "openai" }

func (p *HTTPProvider) Model() string { return p.model }

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func (p *HTTPProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(completionRequest{Model: p.model, Messages: messages})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm provider returned status %d", resp.StatusCode)
	}

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("llm provider returned no choices")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

// ExtractJSON isolates the JSON object in a model reply. Models wrap
// answers in markdown fences or prose despite instructions, so callers
// strip that before unmarshalling.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return strings.TrimSpace(content)
	}
	return content[start : end+1]
}
