package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/zyalhor1961/corematch-web-sub006/internal/audit/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/hscode/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/llm"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/rls"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const systemPrompt = `You classify product descriptions into 8-digit EU combined nomenclature (NC) codes for French DEB declarations.
Respond with strict JSON only, no markdown, using exactly this shape:
{"code": <8 digit string>, "confidence": <number 0-1>, "reasoning": <short string>}`

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	LLM     llm.Provider
	Audit   auditdomain.Service
	Metrics *telemetry.Metrics `optional:"true"`
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	llm      llm.Provider
	auditSvc auditdomain.Service
	metrics  *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("hscode.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		llm:      p.LLM,
		auditSvc: p.Audit,
		metrics:  p.Metrics,
	}
}

func (s *service) Suggest(ctx context.Context, req domain.SuggestRequest) (domain.Suggestion, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Suggestion{}, domain.ErrInvalidOrganization
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.Suggestion{}, domain.ErrMissingDescription
	}
	tokens := domain.Tokenize(description)

	if hit, err := s.lookup(ctx, snowflake.ID(orgID), tokens); err != nil {
		return domain.Suggestion{}, err
	} else if hit != nil {
		s.metrics.RecordHSCodeSuggestion(string(hit.Source))
		return domain.Suggestion{
			Code:        hit.Code,
			Description: hit.Description,
			Source:      string(hit.Source),
			Confidence:  hit.Confidence,
		}, nil
	}

	code, confidence, reasoning, err := s.classify(ctx, description)
	if err != nil {
		return domain.Suggestion{}, err
	}

	if err := s.learn(ctx, snowflake.ID(orgID), code, description, tokens, confidence); err != nil {
		// The caller still gets the model's answer; only the shortcut
		// for the next identical lookup is lost.
		s.log.Warn("failed to learn suggested code",
			zap.String("code", code),
			zap.Error(err))
	}

	s.metrics.RecordHSCodeSuggestion(domain.SuggestionSourceModel)
	conf := confidence
	return domain.Suggestion{
		Code:        code,
		Description: description,
		Source:      domain.SuggestionSourceModel,
		Confidence:  &conf,
		Reasoning:   reasoning,
	}, nil
}

// lookup is the tier-1 scan: the org's learned rows first, the shared
// seed rows second. A hit leaves a usage row for the daily rollup.
func (s *service) lookup(ctx context.Context, orgID snowflake.ID, tokens []string) (*domain.HSCode, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	for _, scope := range []snowflake.ID{orgID, domain.SeedOrgID} {
		rows, err := s.repo.SearchByTokens(ctx, s.db, scope, tokens)
		if err != nil {
			return nil, err
		}
		hit := bestMatch(rows, tokens)
		if hit == nil {
			continue
		}

		usage := domain.Usage{
			ID:       s.genID.Generate(),
			OrgID:    orgID,
			HSCodeID: hit.ID,
			UsedAt:   s.clock.Now(),
		}
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := rls.WithTenant(tx, int64(orgID)); err != nil {
				return err
			}
			return s.repo.RecordUsage(ctx, tx, &usage)
		})
		if err != nil {
			return nil, err
		}
		return hit, nil
	}
	return nil, nil
}

// bestMatch ranks candidate rows by how many tokens they match, then by
// usage, then by recency of the row itself.
func bestMatch(rows []domain.HSCode, tokens []string) *domain.HSCode {
	var best *domain.HSCode
	bestScore := 0
	for i := range rows {
		row := &rows[i]
		haystack := strings.ToLower(row.Description + " " + row.Keywords)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(haystack, tok) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		better := best == nil || score > bestScore ||
			(score == bestScore && row.UsageCount > best.UsageCount) ||
			(score == bestScore && row.UsageCount == best.UsageCount && row.ID > best.ID)
		if better {
			best = row
			bestScore = score
		}
	}
	return best
}

func (s *service) classify(ctx context.Context, description string) (string, float64, string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: description},
	}

	start := s.clock.Now()
	reply, err := s.llm.Complete(ctx, messages)
	if err != nil {
		s.metrics.RecordProviderCall(s.llm.Name(), "error", s.clock.Now().Sub(start))
		return "", 0, "", fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	s.metrics.RecordProviderCall(s.llm.Name(), "ok", s.clock.Now().Sub(start))

	var verdict struct {
		Code       string  `json:"code"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(reply)), &verdict); err != nil {
		return "", 0, "", fmt.Errorf("%w: parse classification: %v", domain.ErrUnavailable, err)
	}

	code := domain.NormalizeCode(verdict.Code)
	if !domain.ValidCode(code) {
		return "", 0, "", fmt.Errorf("%w: model returned code %q", domain.ErrUnavailable, verdict.Code)
	}

	confidence := verdict.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return code, confidence, strings.TrimSpace(verdict.Reasoning), nil
}

// learn upserts a model answer as a learned org row. An existing row for
// the code absorbs the new description's tokens so it keeps matching.
func (s *service) learn(ctx context.Context, orgID snowflake.ID, code, description string, tokens []string, confidence float64) error {
	now := s.clock.Now()
	var inserted bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}

		existing, err := s.repo.FindByCode(ctx, tx, orgID, code)
		if err != nil {
			return err
		}
		if existing == nil {
			inserted = true
			conf := confidence
			row := domain.HSCode{
				ID:          s.genID.Generate(),
				OrgID:       orgID,
				Code:        code,
				Description: description,
				Keywords:    strings.Join(tokens, ", "),
				Source:      domain.SourceLearned,
				Confidence:  &conf,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			return s.repo.Insert(ctx, tx, &row)
		}

		existing.Keywords = mergeKeywords(existing.Keywords, tokens)
		if existing.Confidence == nil || confidence > *existing.Confidence {
			conf := confidence
			existing.Confidence = &conf
		}
		existing.UpdatedAt = now
		return s.repo.Update(ctx, tx, existing)
	})
	if err != nil {
		return err
	}

	if inserted {
		s.writeAuditLog(ctx, orgID, "hscode.learn", code, map[string]any{
			"description": description,
		})
	}
	return nil
}

func mergeKeywords(existing string, tokens []string) string {
	parts := strings.Split(existing, ",")
	seen := make(map[string]struct{}, len(parts)+len(tokens))
	merged := make([]string, 0, len(parts)+len(tokens))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		merged = append(merged, p)
	}
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		merged = append(merged, tok)
	}
	return strings.Join(merged, ", ")
}

func (s *service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	filter := domain.ListFilter{
		Search: strings.TrimSpace(req.Search),
		Source: domain.Source(strings.ToLower(strings.TrimSpace(req.Source))),
	}

	rows, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageSize:  int(pageSize),
		PageToken: req.PageToken,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(rows, pageSize, func(row *domain.HSCode) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        row.ID.String(),
			CreatedAt: row.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(rows) > int(pageSize) {
		rows = rows[:pageSize]
	}

	codes := make([]domain.HSCode, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		codes = append(codes, *row)
	}

	resp := domain.ListResponse{Codes: codes}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *service) RollupUsage(ctx context.Context) (int64, error) {
	var compacted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		compacted, err = s.repo.RollupUsage(ctx, tx, s.clock.Now())
		return err
	})
	if err != nil {
		return 0, err
	}
	if compacted > 0 {
		s.log.Info("compacted hs code usage", zap.Int64("rows", compacted))
	}
	return compacted, nil
}

func (s *service) writeAuditLog(ctx context.Context, orgID snowflake.ID, action string, code string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "hs_code", &code, metadata)
}
