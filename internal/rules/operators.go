// internal/rules/operators.go
package rules

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

/*
 * Value comparison for status and custom checks.
 *
 * Configuration values arrive from YAML/JSON as strings, ints or floats;
 * bundle values are strings or decimals. Two strings compare exactly. Two
 * numbers (decimal, int, float) compare by value, so 0, 0.0 and decimal
 * zero are equal. Anything else compares the rendered values exactly, so
 * decimal 5 equals "5" but "0100.0" never equals 100.
 */

// compareEqual reports whether value equals expected.
func compareEqual(value, expected any) bool {
	if value == nil || expected == nil {
		return value == nil && expected == nil
	}
	if a, ok := value.(string); ok {
		if b, ok := expected.(string); ok {
			return a == b
		}
	}
	if na, ok := toDecimal(value); ok {
		if nb, ok := toDecimal(expected); ok {
			return na.Equal(nb)
		}
	}
	return render(value) == render(expected)
}

// toDecimal converts numeric values. Strings are never numbers here.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case decimal.NullDecimal:
		return n.Decimal, n.Valid
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

func render(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
