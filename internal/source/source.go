// Package source defines the catalog record source the pipeline queries.
//
// The catalog speaks a SQL-like query language over objects with nested
// relationships; every query returns a flat list of records whose related
// objects appear as nested maps. Record exposes dotted-path access over
// that shape so callers never type-assert nested maps themselves.
package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/solatis/linewarden/internal/fieldpath"
)

// RecordSource executes a query and returns every matching record.
// Implementations follow pagination to completion before returning.
type RecordSource interface {
	ExecuteQuery(ctx context.Context, query string) (Result, error)
}

// Result is the outcome of one query.
type Result struct {
	TotalSize int      `json:"totalSize"`
	Records   []Record `json:"records"`
}

// Record is one catalog record.
type Record map[string]any

// Lookup resolves a dotted path. The second return is false when the path
// does not exist; a present null returns (nil, true).
func (r Record) Lookup(path string) (any, bool) {
	if r == nil {
		return nil, false
	}
	return fieldpath.Lookup(r, path)
}

// String returns the value at path rendered as a string, or "" when the
// path is missing or null.
func (r Record) String(path string) string {
	v, ok := r.Lookup(path)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// NullableString returns nil when the path is missing or null.
func (r Record) NullableString(path string) *string {
	v, ok := r.Lookup(path)
	if !ok || v == nil {
		return nil
	}
	s := r.String(path)
	return &s
}

// Decimal parses the value at path as a decimal. present reports whether the
// path exists at all; the NullDecimal is invalid for null values. A non-numeric
// value returns an error.
func (r Record) Decimal(path string) (d decimal.NullDecimal, present bool, err error) {
	v, ok := r.Lookup(path)
	if !ok {
		return decimal.NullDecimal{}, false, nil
	}
	if v == nil {
		return decimal.NullDecimal{}, true, nil
	}
	switch n := v.(type) {
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(n)), true, nil
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(n))), true, nil
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(n)), true, nil
	case interface{ String() string }:
		// json.Number and decimal.Decimal
		parsed, perr := decimal.NewFromString(n.String())
		if perr != nil {
			return decimal.NullDecimal{}, true, fmt.Errorf("%s: %w", path, perr)
		}
		return decimal.NewNullDecimal(parsed), true, nil
	case string:
		parsed, perr := decimal.NewFromString(strings.TrimSpace(n))
		if perr != nil {
			return decimal.NullDecimal{}, true, fmt.Errorf("%s: %w", path, perr)
		}
		return decimal.NewNullDecimal(parsed), true, nil
	default:
		return decimal.NullDecimal{}, true, fmt.Errorf("%s: unsupported numeric type %T", path, v)
	}
}
