package fieldmap

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/rivo/uniseg"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/reseller/crosslist/internal/domain/listing"
)

// Map translates l through the table. Fields whose source is missing fall
// back to Default or are omitted; only Required fields produce a violation.
// The listing is never modified.
func (t Table) Map(l *listing.UnifiedListing) (listing.Payload, []listing.FieldViolation) {
	payload := listing.Payload{Platform: t.Platform, Fields: make([]listing.PayloadField, 0, len(t.Rules))}
	var violations []listing.FieldViolation

	for _, r := range t.Rules {
		v, vs := r.apply(l)
		violations = append(violations, vs...)
		if v == nil || len(vs) > 0 {
			continue
		}
		payload.Fields = append(payload.Fields, listing.PayloadField{Name: r.Field, Value: v})
	}
	return payload, violations
}

// Validate returns the violations Map would report
func (t Table) Validate(l *listing.UnifiedListing) listing.ValidationResult {
	_, violations := t.Map(l)
	return listing.ValidationResult{Platform: t.Platform, Violations: violations}
}

// MapStrict maps l and returns a *listing.ValidationError when any rule fails
func (t Table) MapStrict(l *listing.UnifiedListing) (listing.Payload, error) {
	payload, violations := t.Map(l)
	if len(violations) > 0 {
		return listing.Payload{}, &listing.ValidationError{Platform: t.Platform, Violations: violations}
	}
	return payload, nil
}

func (r Rule) apply(l *listing.UnifiedListing) (any, []listing.FieldViolation) {
	var v any
	for _, path := range append([]string{r.Source}, r.Fallbacks...) {
		if path == "" {
			continue
		}
		if candidate := resolve(l, path); !isEmpty(candidate) {
			v = candidate
			break
		}
	}

	if v == nil {
		switch {
		case r.Default != nil:
			return r.Default, nil
		case r.Required:
			return nil, []listing.FieldViolation{r.violation(listing.ViolationRequired, "is required")}
		default:
			return nil, nil
		}
	}

	// Ranges apply to the source amount; the transform only shapes the output
	if r.Type == TypeNumber {
		if _, vs := r.checkNumber(v); len(vs) > 0 {
			return nil, vs
		}
	}

	if r.Transform != nil {
		out, err := r.Transform(v)
		if err != nil {
			return nil, []listing.FieldViolation{r.violation(listing.ViolationInvalidValue, err.Error())}
		}
		v = out
		if isEmpty(v) {
			if r.Required {
				return nil, []listing.FieldViolation{r.violation(listing.ViolationRequired, "is required")}
			}
			return nil, nil
		}
	}

	switch r.Type {
	case TypeNumber:
		return v, nil
	case TypeList:
		if _, ok := v.([]string); !ok {
			return nil, []listing.FieldViolation{r.violation(listing.ViolationInvalidValue, "must be a list")}
		}
		return v, nil
	default:
		return r.checkString(listing.FormatValue(v))
	}
}

func (r Rule) checkString(s string) (any, []listing.FieldViolation) {
	s = norm.NFC.String(s)
	n := utf8.RuneCountInString(s)

	if r.MaxLength > 0 && n > r.MaxLength {
		if r.NoTruncate {
			return nil, []listing.FieldViolation{r.violation(listing.ViolationTooLong,
				fmt.Sprintf("must be at most %d characters, got %d", r.MaxLength, n))}
		}
		s = Truncate(s, r.MaxLength)
	}
	if r.MinLength > 0 && n < r.MinLength {
		return nil, []listing.FieldViolation{r.violation(listing.ViolationTooShort,
			fmt.Sprintf("must be at least %d characters", r.MinLength))}
	}
	if len(r.Allowed) > 0 && !contains(r.Allowed, s) {
		return nil, []listing.FieldViolation{r.violation(listing.ViolationInvalidValue,
			fmt.Sprintf("%q is not an allowed value", s))}
	}
	return s, nil
}

func (r Rule) checkNumber(v any) (any, []listing.FieldViolation) {
	d, ok := toDecimal(v)
	if !ok {
		return nil, []listing.FieldViolation{r.violation(listing.ViolationInvalidValue, "must be a number")}
	}
	if r.MinValue != nil && d.LessThan(*r.MinValue) {
		return nil, []listing.FieldViolation{r.violation(listing.ViolationOutOfRange,
			"must be at least "+r.MinValue.String())}
	}
	if r.MaxValue != nil && d.GreaterThan(*r.MaxValue) {
		return nil, []listing.FieldViolation{r.violation(listing.ViolationOutOfRange,
			"must be at most "+r.MaxValue.String())}
	}
	return v, nil
}

func (r Rule) violation(code listing.ViolationCode, msg string) listing.FieldViolation {
	return listing.FieldViolation{Field: r.Field, Code: code, Message: r.Field + " " + msg}
}

// Truncate cuts s to at most n runes at a grapheme cluster boundary. A base
// letter keeps its combining marks and an emoji sequence is kept or dropped
// whole, so the result may be shorter than n.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	end, used := 0, 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		used += len(g.Runes())
		if used > n {
			break
		}
		_, end = g.Positions()
	}
	return s[:end]
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case float64:
		return decimal.NewFromFloat(t), true
	case string:
		if _, err := strconv.ParseFloat(t, 64); err != nil {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(t)
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
