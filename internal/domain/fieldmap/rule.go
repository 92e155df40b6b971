// Package fieldmap maps a UnifiedListing onto a marketplace's field set using
// declarative per-platform rule tables.
package fieldmap

import (
	"github.com/shopspring/decimal"

	"github.com/reseller/crosslist/internal/domain/listing"
)

// FieldType is the declared type of a marketplace field
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeEnum   FieldType = "enum"
	TypeList   FieldType = "list"
)

// Transform converts a resolved source value into the marketplace value.
// Transforms must be pure.
type Transform func(v any) (any, error)

// Rule maps one marketplace field
type Rule struct {
	// Field is the marketplace's field or column name
	Field string
	// Source is a unified listing path such as "title" or "item_specifics.brand"
	Source string
	// Fallbacks are tried in order when Source resolves to nothing
	Fallbacks []string
	Type      FieldType
	Required  bool
	// MaxLength limits string length in runes; 0 means unlimited
	MaxLength int
	// NoTruncate rejects over-long values instead of truncating them
	NoTruncate bool
	MinLength  int
	MinValue   *decimal.Decimal
	MaxValue   *decimal.Decimal
	// Allowed restricts enum values after transform
	Allowed []string
	// Default is used when no source resolves; nil means omit the field
	Default   any
	Transform Transform
}

// Table is the complete rule set of one platform
type Table struct {
	Platform listing.Platform
	Rules    []Rule
}

// Rule returns the rule for a marketplace field
func (t Table) Rule(field string) (Rule, bool) {
	for _, r := range t.Rules {
		if r.Field == field {
			return r, true
		}
	}
	return Rule{}, false
}

// Fields returns the marketplace field names in table order
func (t Table) Fields() []string {
	names := make([]string, len(t.Rules))
	for i, r := range t.Rules {
		names[i] = r.Field
	}
	return names
}

// Bound returns a *decimal.Decimal for MinValue/MaxValue declarations
func Bound(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
