package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/zyalhor1961/corematch-web-sub006/internal/lead/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/search"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/rls"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultSourceLimit = 10
	maxSourceLimit     = 25
)

// SourceLeads asks the search provider for companies matching the query
// and stores the ones not already tracked. Dedupe key is the lowercased
// website host, so re-running the same query only adds new prospects.
func (s *service) SourceLeads(ctx context.Context, req domain.SourceRequest) (domain.SourceResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.SourceResponse{}, domain.ErrInvalidOrganization
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return domain.SourceResponse{}, domain.ErrInvalidQuery
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSourceLimit
	}
	if limit > maxSourceLimit {
		limit = maxSourceLimit
	}

	results, err := s.search.Search(ctx, query, limit)
	if err != nil {
		s.log.Warn("lead sourcing provider failed", zap.String("query", query), zap.Error(err))
		return domain.SourceResponse{}, fmt.Errorf("%w: %v", domain.ErrSourcingUnavailable, err)
	}

	type candidate struct {
		result  search.Result
		website string
	}

	skipped := 0
	seen := map[string]bool{}
	candidates := make([]candidate, 0, len(results))
	websites := make([]string, 0, len(results))
	for _, result := range results {
		website := normalizeWebsite(result.URL)
		if website == "" || seen[website] {
			skipped++
			continue
		}
		seen[website] = true
		candidates = append(candidates, candidate{result: result, website: website})
		websites = append(websites, website)
	}

	existing, err := s.repo.ExistingWebsites(ctx, s.db, orgID, websites)
	if err != nil {
		return domain.SourceResponse{}, err
	}

	now := s.clock.Now()
	created := make([]domain.Lead, 0, len(candidates))
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}
		for _, cand := range candidates {
			if existing[cand.website] {
				skipped++
				continue
			}
			website := cand.website
			lead := domain.Lead{
				ID:          s.genID.Generate(),
				OrgID:       orgID,
				CompanyName: companyNameFrom(cand.result, cand.website),
				Website:     &website,
				Source:      domain.SourceSearch,
				Status:      domain.StatusNew,
				Metadata: datatypes.JSONMap{
					"search_query":   query,
					"result_title":   cand.result.Title,
					"result_url":     cand.result.URL,
					"result_summary": cand.result.Summary,
				},
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.repo.Insert(ctx, tx, &lead); err != nil {
				return err
			}
			created = append(created, lead)
		}
		return nil
	})
	if err != nil {
		return domain.SourceResponse{}, err
	}

	s.log.Info("lead sourcing run",
		zap.String("query", query),
		zap.Int("created", len(created)),
		zap.Int("skipped", skipped),
	)
	s.writeAuditLog(ctx, orgID, "lead.source", 0, map[string]any{
		"query":   query,
		"created": len(created),
		"skipped": skipped,
	})

	return domain.SourceResponse{Created: created, Skipped: skipped}, nil
}

// normalizeWebsite reduces a result URL to its bare lowercase host so
// "https://www.acme.fr/about" and "acme.fr" dedupe to the same lead.
func normalizeWebsite(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return ""
	}
	if !strings.Contains(value, "://") {
		value = "https://" + value
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Host == "" {
		return ""
	}
	host := parsed.Host
	if idx := strings.Index(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	return strings.TrimPrefix(host, "www.")
}

func companyNameFrom(result search.Result, website string) string {
	if title := strings.TrimSpace(result.Title); title != "" {
		return title
	}
	return website
}
