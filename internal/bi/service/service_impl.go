package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/zyalhor1961/corematch-web-sub006/internal/bi/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// invoiceMonths is how far back the issued-sales series reaches,
// current month included.
const invoiceMonths = 6

// topHSCodeLimit caps the nomenclature ranking.
const topHSCodeLimit = 5

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("bi.service"),
		clock: p.Clock,
	}
}

func (s *Service) Overview(ctx context.Context) (domain.Overview, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Overview{}, domain.ErrInvalidOrganization
	}

	now := s.clock.Now().UTC()

	documents, err := s.documentStats(ctx, orgID, now)
	if err != nil {
		return domain.Overview{}, err
	}
	monthly, err := s.invoiceMonthly(ctx, orgID, now)
	if err != nil {
		return domain.Overview{}, err
	}
	journal, err := s.countByStatus(ctx, orgID,
		`SELECT status, COUNT(*) AS count FROM journal_entries WHERE org_id = ? GROUP BY status`)
	if err != nil {
		return domain.Overview{}, err
	}
	leads, err := s.countByStatus(ctx, orgID,
		`SELECT status, COUNT(*) AS count FROM leads WHERE org_id = ? GROUP BY status`)
	if err != nil {
		return domain.Overview{}, err
	}
	screening, err := s.screeningStats(ctx, orgID)
	if err != nil {
		return domain.Overview{}, err
	}
	topCodes, err := s.topHSCodes(ctx, orgID)
	if err != nil {
		return domain.Overview{}, err
	}

	return domain.Overview{
		Documents:      documents,
		InvoiceMonthly: monthly,
		JournalEntries: journal,
		LeadPipeline:   leads,
		Screening:      screening,
		TopHSCodes:     topCodes,
	}, nil
}

type statusCountRow struct {
	Status string `gorm:"column:status"`
	Count  int64  `gorm:"column:count"`
}

func (s *Service) countByStatus(ctx context.Context, orgID snowflake.ID, query string) (map[string]int64, error) {
	var rows []statusCountRow
	if err := s.db.WithContext(ctx).Raw(query, orgID).Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (s *Service) documentStats(ctx context.Context, orgID snowflake.ID, now time.Time) (domain.DocumentStats, error) {
	byStatus, err := s.countByStatus(ctx, orgID,
		`SELECT status, COUNT(*) AS count FROM documents
		 WHERE org_id = ? AND deleted_at IS NULL
		 GROUP BY status`)
	if err != nil {
		return domain.DocumentStats{}, err
	}

	var total int64
	for _, count := range byStatus {
		total += count
	}

	var fields struct {
		Count int64 `gorm:"column:count"`
	}
	err = s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS count FROM extracted_fields
		 WHERE org_id = ? AND created_at >= ?`,
		orgID,
		now.AddDate(0, 0, -30),
	).Scan(&fields).Error
	if err != nil {
		return domain.DocumentStats{}, err
	}

	return domain.DocumentStats{
		ByStatus:        byStatus,
		Total:           total,
		FieldsExtracted: fields.Count,
	}, nil
}

type invoiceMonthRow struct {
	Count int64           `gorm:"column:count"`
	Net   decimal.Decimal `gorm:"column:net"`
	Total decimal.Decimal `gorm:"column:total"`
}

// invoiceMonthly sums issued sales (open and paid) per month, oldest
// first, zero-filled so charts get a point for every month.
func (s *Service) invoiceMonthly(ctx context.Context, orgID snowflake.ID, now time.Time) ([]domain.MonthlyInvoiceTotal, error) {
	months := make([]domain.MonthlyInvoiceTotal, 0, invoiceMonths)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(invoiceMonths - 1), 0)

	for i := 0; i < invoiceMonths; i++ {
		from := first.AddDate(0, i, 0)
		to := from.AddDate(0, 1, 0)

		var row invoiceMonthRow
		err := s.db.WithContext(ctx).Raw(
			`SELECT COUNT(*) AS count,
			        COALESCE(SUM(net_amount), 0) AS net,
			        COALESCE(SUM(total_amount), 0) AS total
			 FROM invoices
			 WHERE org_id = ? AND direction = 'sale' AND status IN ('open', 'paid')
			   AND issue_date >= ? AND issue_date < ?`,
			orgID,
			from,
			to,
		).Scan(&row).Error
		if err != nil {
			return nil, err
		}

		months = append(months, domain.MonthlyInvoiceTotal{
			Month: from.Format("2006-01"),
			Count: row.Count,
			Net:   row.Net,
			Total: row.Total,
		})
	}
	return months, nil
}

func (s *Service) screeningStats(ctx context.Context, orgID snowflake.ID) (domain.ScreeningStats, error) {
	byStatus, err := s.countByStatus(ctx, orgID,
		`SELECT status, COUNT(*) AS count FROM screening_jobs WHERE org_id = ? GROUP BY status`)
	if err != nil {
		return domain.ScreeningStats{}, err
	}

	var row struct {
		Completed int64 `gorm:"column:completed"`
		CacheHits int64 `gorm:"column:cache_hits"`
	}
	err = s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS completed,
		        COALESCE(SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END), 0) AS cache_hits
		 FROM screening_jobs
		 WHERE org_id = ? AND status = 'completed'`,
		orgID,
	).Scan(&row).Error
	if err != nil {
		return domain.ScreeningStats{}, err
	}

	stats := domain.ScreeningStats{
		ByStatus:  byStatus,
		CacheHits: row.CacheHits,
	}
	if row.Completed > 0 {
		ratio := float64(row.CacheHits) / float64(row.Completed)
		stats.CacheHitRatio = &ratio
	}
	return stats, nil
}

type topHSCodeRow struct {
	Code        string `gorm:"column:code"`
	Description string `gorm:"column:description"`
	Uses        int64  `gorm:"column:uses"`
}

// topHSCodes ranks the nomenclature rows the org can see by compacted
// usage plus the org's not-yet-rolled-up lookup trail.
func (s *Service) topHSCodes(ctx context.Context, orgID snowflake.ID) ([]domain.TopHSCode, error) {
	var rows []topHSCodeRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT h.code AS code, h.description AS description,
		        (h.usage_count + COUNT(u.id)) AS uses
		 FROM hs_codes h
		 LEFT JOIN hs_code_usage u ON u.hs_code_id = h.id AND u.org_id = ?
		 WHERE h.org_id IN (0, ?)
		 GROUP BY h.id, h.code, h.description, h.usage_count
		 HAVING (h.usage_count + COUNT(u.id)) > 0
		 ORDER BY uses DESC, code ASC
		 LIMIT ?`,
		orgID,
		orgID,
		topHSCodeLimit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	codes := make([]domain.TopHSCode, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, domain.TopHSCode{
			Code:        row.Code,
			Description: row.Description,
			Uses:        row.Uses,
		})
	}
	return codes, nil
}
