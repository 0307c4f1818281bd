// Package query renders named catalog query templates into query strings.
package query

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/linewarden/internal/types"
)

// Template names used by the pipeline.
const (
	YesterdayOrders         = "yesterday_orders"
	YesterdayOrdersByReason = "yesterday_orders_by_reason"
	OrdersForMSISDNs        = "orders_for_msisdns"
	LatestLineForMSISDN     = "latest_line_for_msisdn"
	DeviceForLine           = "device_for_line"
	ChildrenForRootItem     = "children_for_root_item"
	DeviceChildren          = "device_children"
	OrderHistoryForMSISDN   = "order_history_for_msisdn"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Build renders a template.
//
// Placeholders in where conditions are replaced literally from bindings;
// values are not escaped, callers pass values through Quote. Placeholders
// with no binding are left in place and surface when the source rejects the
// query. Fields, table and ordering are never substituted.
func Build(t types.QueryTemplate, bindings map[string]string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(t.Fields, ", "))
	b.WriteString(" FROM ")
	b.WriteString(t.FromTable)

	if len(t.WhereConditions) > 0 {
		conds := make([]string, len(t.WhereConditions))
		for i, c := range t.WhereConditions {
			conds[i] = substitute(c, bindings)
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	if t.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(t.OrderBy)
	}
	if t.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(t.Limit))
	}
	return b.String()
}

func substitute(cond string, bindings map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(cond, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := bindings[name]; ok {
			return v
		}
		return m
	})
}

// Unresolved lists the placeholder names still present in a built query,
// sorted and deduplicated.
func Unresolved(q string) []string {
	seen := make(map[string]struct{})
	for _, m := range placeholderRe.FindAllStringSubmatch(q, -1) {
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Quote renders s as a single-quoted literal, escaping backslashes and quotes.
func Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// InList renders the body of an IN predicate: 'a', 'b', 'c'.
func InList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return strings.Join(quoted, ", ")
}
