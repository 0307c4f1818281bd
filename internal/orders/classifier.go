// internal/orders/classifier.go
package orders

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/solatis/linewarden/internal/types"
)

/*
 * Order classification.
 *
 * Steps run strictly in this order:
 *   1. reason exclusion (exact, case-sensitive; null reasons never dropped)
 *   2. type exclusion (exact, case-sensitive)
 *   3. disconnect exclusion (reason contains "disconnect", any case)
 *   4. grouping by MSISDN keeping the greatest CreatedDate
 *   5. multiplicity flagging from the surviving pre-group counts
 *
 * CreatedDate is compared as a string. The catalog emits one fixed ISO-8601
 * layout, so lexical order is chronological order. Ties keep the order seen
 * first, which makes a descending-sorted feed behave as "first wins" while an
 * unsorted feed still yields the latest order.
 */

// ClassifierConfig carries the exclusion lists.
type ClassifierConfig struct {
	IgnoreReasons []string
	IgnoreTypes   []string
}

// Classifier filters and groups order lines.
type Classifier struct {
	ignoreReasons map[string]struct{}
	ignoreTypes   map[string]struct{}
	logger        *logrus.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(cfg ClassifierConfig, logger *logrus.Logger) *Classifier {
	return &Classifier{
		ignoreReasons: toSet(cfg.IgnoreReasons),
		ignoreTypes:   toSet(cfg.IgnoreTypes),
		logger:        logger,
	}
}

// Filter applies the three exclusion steps and returns survivors in input order.
func (c *Classifier) Filter(orders []types.Order) []types.Order {
	var droppedReason, droppedType, droppedDisconnect int

	out := make([]types.Order, 0, len(orders))
	for _, o := range orders {
		if o.Reason != nil {
			if _, ok := c.ignoreReasons[*o.Reason]; ok {
				droppedReason++
				continue
			}
		}
		if _, ok := c.ignoreTypes[o.Type]; ok {
			droppedType++
			continue
		}
		if IsDisconnect(o) {
			droppedDisconnect++
			continue
		}
		out = append(out, o)
	}

	c.logger.WithFields(logrus.Fields{
		"input":              len(orders),
		"kept":               len(out),
		"dropped_reason":     droppedReason,
		"dropped_type":       droppedType,
		"dropped_disconnect": droppedDisconnect,
	}).Debug("orders filtered")
	return out
}

// FilterAndGroup runs the full classification pipeline.
func (c *Classifier) FilterAndGroup(orders []types.Order) map[string]types.ClassifiedOrder {
	return Group(c.Filter(orders))
}

// IsDisconnect reports whether the order reason mentions a disconnect.
func IsDisconnect(o types.Order) bool {
	return strings.Contains(strings.ToLower(o.ReasonOrEmpty()), "disconnect")
}

// Group keeps the latest order per MSISDN and flags multiplicity.
func Group(orders []types.Order) map[string]types.ClassifiedOrder {
	latest := make(map[string]types.ClassifiedOrder)
	counts := make(map[string]int)

	for _, o := range orders {
		counts[o.MSISDN]++
		cur, ok := latest[o.MSISDN]
		if !ok || o.CreatedDate > cur.CreatedDate {
			latest[o.MSISDN] = types.ClassifiedOrder{Order: o}
		}
	}
	return FlagMultiplicity(latest, counts)
}

// FlagMultiplicity sets OrderCount and HasMultipleOrders from counts.
// Identifiers missing from counts keep a count of one. Applying it again with
// the same counts leaves the map unchanged.
func FlagMultiplicity(grouped map[string]types.ClassifiedOrder, counts map[string]int) map[string]types.ClassifiedOrder {
	out := make(map[string]types.ClassifiedOrder, len(grouped))
	for msisdn, co := range grouped {
		n := counts[msisdn]
		if n == 0 {
			n = 1
		}
		co.OrderCount = n
		co.HasMultipleOrders = n > 1
		out[msisdn] = co
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
