package domain

import (
	"context"
	"errors"

	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
)

// SuggestRequest asks for the NC code of one product description.
type SuggestRequest struct {
	Description string `json:"description"`
}

// SuggestionSourceModel marks suggestions answered by the model rather
// than by a stored row. Stored rows answer with their own Source value.
const SuggestionSourceModel = "llm"

// Suggestion is one classification answer. Source is "seed" or
// "learned" for tier-1 hits and "llm" for fresh model answers.
type Suggestion struct {
	Code        string   `json:"code"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Reasoning   string   `json:"reasoning,omitempty"`
}

type ListRequest struct {
	Search    string `form:"search"`
	Source    string `form:"source"`
	PageSize  int32  `form:"page_size"`
	PageToken string `form:"page_token"`
}

type ListResponse struct {
	pagination.PageInfo
	Codes []HSCode `json:"hs_codes"`
}

type Service interface {
	// Suggest answers from the reference table when it can and falls
	// back to the model otherwise, learning the answer for next time.
	Suggest(ctx context.Context, req SuggestRequest) (Suggestion, error)

	List(ctx context.Context, req ListRequest) (ListResponse, error)

	// RollupUsage compacts the usage trail into the reference rows.
	// The scheduler runs it daily.
	RollupUsage(ctx context.Context) (int64, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrMissingDescription  = errors.New("missing_description")
	ErrUnavailable         = errors.New("hscode_suggestion_unavailable")
)
