package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"bare object", `{"score": 80}`, `{"score": 80}`},
		{"fenced json", "```json\n{\"score\": 80}\n```", `{"score": 80}`},
		{"fenced without language", "```\n{\"score\": 80}\n```", `{"score": 80}`},
		{"prose around object", `Here is the verdict: {"score": 80} as requested.`, `{"score": 80}`},
		{"no object at all", "no braces here", "no braces here"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractJSON(tc.content); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHTTPProviderComplete(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody completionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  {\"score\": 80}  "}},
			},
		})
	}))
	defer srv.Close()

	p := NewHTTP(srv.URL, "sk-test", "gpt-4o-mini", time.Second)
	reply, err := p.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "score this"},
	})
	if err != nil {
		t.Fatalf("failed to complete: %v", err)
	}
	if reply != `{"score": 80}` {
		t.Errorf("expected trimmed content, got %q", reply)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("expected /chat/completions, got %s", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotBody.Model != "gpt-4o-mini" || len(gotBody.Messages) != 2 {
		t.Errorf("unexpected request body: %+v", gotBody)
	}
}

func TestHTTPProviderUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewHTTP(srv.URL, "sk-test", "gpt-4o-mini", time.Second)
	if _, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestDisabledProvider(t *testing.T) {
	var p Provider = &DisabledProvider{}
	if _, err := p.Complete(context.Background(), nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
