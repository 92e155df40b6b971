package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// sortColumns whitelists the columns a list query may be ordered by so
// caller input never reaches the ORDER BY clause as raw SQL
type sortColumns struct {
	allowed  map[string]struct{}
	fallback string
}

func newSortColumns(fallback string, columns ...string) sortColumns {
	allowed := make(map[string]struct{}, len(columns)+1)
	allowed[fallback] = struct{}{}
	for _, c := range columns {
		allowed[c] = struct{}{}
	}
	return sortColumns{allowed: allowed, fallback: fallback}
}

// column returns field when it is whitelisted and the fallback otherwise
func (s sortColumns) column(field string) string {
	field = strings.TrimSpace(field)
	if _, ok := s.allowed[field]; ok {
		return field
	}
	return s.fallback
}

// orderBy builds the ORDER BY clause. Only "asc" (any case) sorts
// ascending. id breaks ties so pages do not overlap.
func (s sortColumns) orderBy(field, dir string) clause.OrderBy {
	desc := !strings.EqualFold(strings.TrimSpace(dir), "asc")
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: s.column(field)}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}}
}

var listingSort = newSortColumns("created_at",
	"updated_at", "sku", "title", "price_amount", "quantity", "status", "category", "sold_at")
