package option

import (
	"strings"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm query before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type optionFunc func(db *gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// Where appends a raw predicate for conditions a struct filter cannot
// express (NULL checks, ranges, NOT IN).
func Where(condition string, args ...any) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(condition, args...)
	})
}

// Limit caps the result size; non-positive leaves the query unbounded.
func Limit(n int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	})
}

type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

// WithSortBy orders the query by an allow-listed column, newest first by
// default.
func WithSortBy(sort QuerySortBy) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || (sort.Allow != nil && !sort.Allow[field]) {
			field = "created_at"
		}
		direction := "DESC"
		if !sort.Desc && field != "created_at" {
			direction = "ASC"
		}
		return db.Order(field + " " + direction).Order("id DESC")
	})
}
