package option

import (
	"fmt"
	"strings"

	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
	"gorm.io/gorm"
)

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// Condition is a comparison on a column. Field must come from code, never
// from request input, since it is interpolated into SQL.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if strings.TrimSpace(cond.Field) == "" || cond.Operator == "" {
			return db
		}
		return db.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
	})
}

type QuerySortBy struct {
	Field string
	Order string
	Allow map[string]bool
}

// WithQuerySortBy builds a QuerySortBy from request params and a column allowlist.
func WithQuerySortBy(field, order string, allow map[string]bool) QuerySortBy {
	return QuerySortBy{Field: field, Order: order, Allow: allow}
}

// WithSortBy orders results by an allowlisted column, newest first by default.
func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || !sort.Allow[field] {
			field = "created_at"
		}
		order := strings.ToLower(strings.TrimSpace(sort.Order))
		if order != "asc" {
			order = "desc"
		}
		return db.Order(fmt.Sprintf("%s %s, id %s", field, order, order))
	})
}

// ApplyPagination applies a cursor token and page size. It fetches one row
// beyond the page size so callers can detect a next page.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = 10
		}
		if size > 250 {
			size = 250
		}
		if token := strings.TrimSpace(page.PageToken); token != "" {
			if cursor, err := pagination.DecodeCursor(token); err == nil && cursor != nil {
				switch {
				case cursor.CreatedAt != "" && cursor.ID != "":
					db = db.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
				case cursor.ID != "":
					db = db.Where("id < ?", cursor.ID)
				}
			}
		}
		return db.Limit(size + 1)
	})
}
