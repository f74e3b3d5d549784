package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

type testCleanupRequest struct {
	Prefix string `json:"prefix"`
}

// orgScopedTables lists every tenant table, children before parents so
// deletes do not trip foreign keys on databases without cascade support.
var orgScopedTables = []string{
	"alerts",
	"deb_lines",
	"deb_declarations",
	"hscode_usage_daily",
	"hscode_lookups",
	"hscode_suggestions",
	"hs_codes",
	"screening_cache",
	"screening_jobs",
	"quote_lines",
	"quotes",
	"quote_sequences",
	"leads",
	"invoice_lines",
	"invoices",
	"invoice_sequences",
	"journal_lines",
	"journal_entries",
	"accounts",
	"extracted_fields",
	"documents",
	"products",
	"tax_definitions",
	"api_keys",
	"audit_logs",
	"organization_invites",
	"organization_members",
}

// TestCleanup wipes organizations and users whose names match a prefix.
// Only reachable outside production; end-to-end suites use it to reset
// their fixtures between runs.
func (s *Server) TestCleanup(c *gin.Context) {
	if s.cfg.Environment == "production" {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req testCleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		AbortWithError(c, newValidationError("prefix", "required", "prefix is required"))
		return
	}

	ctx := c.Request.Context()
	like := prefix + "%"

	var orgIDs []int64
	if err := s.db.WithContext(ctx).
		Table("organizations").
		Select("id").
		Where("name LIKE ?", like).
		Scan(&orgIDs).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	if len(orgIDs) > 0 {
		for _, table := range orgScopedTables {
			if err := s.db.WithContext(ctx).Exec(
				"DELETE FROM "+table+" WHERE org_id IN ?", orgIDs,
			).Error; err != nil {
				AbortWithError(c, err)
				return
			}
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM organizations WHERE id IN ?`, orgIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
	}

	var userIDs []int64
	if err := s.db.WithContext(ctx).
		Table("users").
		Select("id").
		Where("email LIKE ?", like).
		Scan(&userIDs).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	if len(userIDs) > 0 {
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM sessions WHERE user_id IN ?`, userIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM organization_members WHERE user_id IN ?`, userIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM users WHERE id IN ?`, userIDs,
		).Error; err != nil {
			AbortWithError(c, err)
			return
		}
	}

	respondOK(c, gin.H{"status": "ok"})
}
