package fieldmap

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/reseller/crosslist/internal/domain/listing"
)

// DollarsToCents converts a decimal amount to integer cents
func DollarsToCents(v any) (any, error) {
	d, ok := toDecimal(v)
	if !ok {
		return nil, fmt.Errorf("cannot convert %v to cents", v)
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

// FormatPrice renders an amount with two decimals
func FormatPrice(v any) (any, error) {
	d, ok := toDecimal(v)
	if !ok {
		return nil, fmt.Errorf("cannot format %v as a price", v)
	}
	return d.StringFixed(2), nil
}

// PriceWithCurrency renders an amount as "25.00 USD", the catalog feed format
func PriceWithCurrency(currency string) Transform {
	return func(v any) (any, error) {
		d, ok := toDecimal(v)
		if !ok {
			return nil, fmt.Errorf("cannot format %v as a price", v)
		}
		return d.StringFixed(2) + " " + currency, nil
	}
}

// EnumLabels relabels an enumeration. Unmapped values get fallback, or an
// error when fallback is empty.
func EnumLabels(labels map[string]string, fallback string) Transform {
	return func(v any) (any, error) {
		key := fmt.Sprint(v)
		if label, ok := labels[key]; ok {
			return label, nil
		}
		if fallback != "" {
			return fallback, nil
		}
		return nil, fmt.Errorf("no label for %q", key)
	}
}

// JoinList joins a string list with sep
func JoinList(sep string) Transform {
	return func(v any) (any, error) {
		list, ok := v.([]string)
		if !ok {
			return nil, fmt.Errorf("expected a list, got %T", v)
		}
		return strings.Join(list, sep), nil
	}
}

// PhotoAt picks the i-th photo location (0 is the primary photo)
func PhotoAt(i int) Transform {
	return func(v any) (any, error) {
		list, ok := v.([]string)
		if !ok {
			return nil, fmt.Errorf("expected a photo list, got %T", v)
		}
		if i >= len(list) {
			return nil, nil
		}
		return list[i], nil
	}
}

// LimitList keeps at most n entries
func LimitList(n int) Transform {
	return func(v any) (any, error) {
		list, ok := v.([]string)
		if !ok {
			return nil, fmt.Errorf("expected a list, got %T", v)
		}
		if len(list) > n {
			list = list[:n]
		}
		return append([]string(nil), list...), nil
	}
}

// Hashtags renders tags as "#one #two", adding the hash where missing
func Hashtags(v any) (any, error) {
	list, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("expected a tag list, got %T", v)
	}
	tags := make([]string, 0, len(list))
	for _, t := range list {
		t = strings.ReplaceAll(strings.TrimSpace(t), " ", "")
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		tags = append(tags, t)
	}
	return strings.Join(tags, " "), nil
}

// Lowercase lowercases a string value
func Lowercase(v any) (any, error) {
	return strings.ToLower(fmt.Sprint(v)), nil
}

// Availability maps a quantity to feed availability text
func Availability(v any) (any, error) {
	d, ok := toDecimal(v)
	if !ok {
		return nil, fmt.Errorf("cannot read quantity %v", v)
	}
	if d.IsPositive() {
		return "in stock", nil
	}
	return "out of stock", nil
}

// YesNo maps a bool to marketplace yes/no text
func YesNo(yes, no string) Transform {
	return func(v any) (any, error) {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected a bool, got %T", v)
		}
		if b {
			return yes, nil
		}
		return no, nil
	}
}

// Chain applies transforms left to right
func Chain(ts ...Transform) Transform {
	return func(v any) (any, error) {
		var err error
		for _, t := range ts {
			if v, err = t(v); err != nil {
				return nil, err
			}
			if v == nil {
				return nil, nil
			}
		}
		return v, nil
	}
}

// WholeAmount rounds an amount to an integer for platforms that price in whole units
func WholeAmount(v any) (any, error) {
	d, ok := toDecimal(v)
	if !ok {
		return nil, fmt.Errorf("cannot convert %v to a whole amount", v)
	}
	return d.Round(0).IntPart(), nil
}

// Prefix prepends s to the text value
func Prefix(s string) Transform {
	return func(v any) (any, error) {
		return s + listing.FormatValue(v), nil
	}
}
