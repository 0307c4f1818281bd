// internal/orders/retriever.go

// Package orders retrieves catalog order lines and reduces them to one
// order per subscriber.
package orders

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/solatis/linewarden/internal/query"
	"github.com/solatis/linewarden/internal/source"
	"github.com/solatis/linewarden/internal/types"
)

// Retrieval strategies.
const (
	StrategyLatest   = "latest"
	StrategyFiltered = "filtered"
)

// BatchSize bounds how many identifiers go into one IN predicate.
const BatchSize = 100

// catalogTimeLayout is the datetime literal format the catalog accepts.
const catalogTimeLayout = "2006-01-02T15:04:05Z"

// RetrieverConfig selects and parameterizes the retrieval strategy.
type RetrieverConfig struct {
	Strategy     string
	Reason       string
	ValidReasons []string
	Location     *time.Location
}

// Retriever fetches order lines from the record source.
type Retriever struct {
	src       source.RecordSource
	templates query.Templates
	cfg       RetrieverConfig
	logger    *logrus.Logger
	now       func() time.Time
}

// NewRetriever creates a Retriever. A nil Location means UTC.
func NewRetriever(src source.RecordSource, templates query.Templates, cfg RetrieverConfig, logger *logrus.Logger) *Retriever {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyLatest
	}
	return &Retriever{src: src, templates: templates, cfg: cfg, logger: logger, now: time.Now}
}

// Window returns the previous full day: [start of today - 24h, start of today)
// in the configured location.
func (r *Retriever) Window() (start, end time.Time) {
	now := r.now().In(r.cfg.Location)
	end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.cfg.Location)
	return end.Add(-24 * time.Hour), end
}

// FetchWindow returns every qualifying order line in the window under the
// configured strategy, in source order.
func (r *Retriever) FetchWindow(ctx context.Context) ([]types.Order, error) {
	start, end := r.Window()
	bindings := map[string]string{
		"window_start": start.UTC().Format(catalogTimeLayout),
		"window_end":   end.UTC().Format(catalogTimeLayout),
	}

	var name string
	switch r.cfg.Strategy {
	case StrategyLatest:
		name = query.YesterdayOrders
	case StrategyFiltered:
		if r.cfg.Reason == "" {
			return nil, types.NewConfigError("orders", "order reason filter required for %q strategy", StrategyFiltered)
		}
		if len(r.cfg.ValidReasons) > 0 && !slices.Contains(r.cfg.ValidReasons, r.cfg.Reason) {
			return nil, types.NewConfigError("orders", "invalid reason %q, valid: %v", r.cfg.Reason, r.cfg.ValidReasons)
		}
		name = query.YesterdayOrdersByReason
		bindings["reason"] = query.Quote(r.cfg.Reason)
	default:
		return nil, types.NewConfigError("orders", "unknown fetch strategy %q", r.cfg.Strategy)
	}

	tmpl, err := r.templates.Get(name)
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"strategy":     r.cfg.Strategy,
		"window_start": bindings["window_start"],
		"window_end":   bindings["window_end"],
	}).Info("fetching orders")

	return r.run(ctx, tmpl, bindings)
}

// GetOrders returns the latest qualifying order per subscriber for the
// window, without the classifier's ignore lists. An empty result is an
// empty map. Bulk runs use FetchWindow and classify the lines instead.
func (r *Retriever) GetOrders(ctx context.Context) (map[string]types.Order, error) {
	lines, err := r.FetchWindow(ctx)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string]types.Order)
	for _, o := range Group(lines) {
		grouped[o.MSISDN] = o.Order
	}
	r.logger.WithFields(logrus.Fields{
		"order_lines": len(lines),
		"msisdns":     len(grouped),
	}).Info("orders grouped")
	return grouped, nil
}

// GetOrdersForMSISDNs fetches order lines for an explicit identifier list in
// chunks of BatchSize, concatenating chunk results.
func (r *Retriever) GetOrdersForMSISDNs(ctx context.Context, msisdns []string) ([]types.Order, error) {
	if len(msisdns) == 0 {
		return nil, nil
	}
	tmpl, err := r.templates.Get(query.OrdersForMSISDNs)
	if err != nil {
		return nil, err
	}

	var all []types.Order
	for chunk := range slices.Chunk(msisdns, BatchSize) {
		lines, err := r.run(ctx, tmpl, map[string]string{"msisdn_list": query.InList(chunk)})
		if err != nil {
			return nil, err
		}
		all = append(all, lines...)
	}

	r.logger.WithFields(logrus.Fields{
		"msisdns":     len(msisdns),
		"order_lines": len(all),
	}).Info("fetched orders for msisdn list")
	return all, nil
}

func (r *Retriever) run(ctx context.Context, tmpl types.QueryTemplate, bindings map[string]string) ([]types.Order, error) {
	q := query.Build(tmpl, bindings)
	if missing := query.Unresolved(q); len(missing) > 0 {
		r.logger.WithField("placeholders", missing).Warn("query has unresolved placeholders")
	}

	res, err := r.src.ExecuteQuery(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	out := make([]types.Order, 0, len(res.Records))
	for i, rec := range res.Records {
		o := FromRecord(rec)
		if o.MSISDN == "" {
			r.logger.WithField("record", i).Warn("order record has no msisdn")
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// FromRecord maps an order line record onto Order.
func FromRecord(rec source.Record) types.Order {
	return types.Order{
		ID:          rec.String("Order.Id"),
		OrderItemID: rec.String("Id"),
		MSISDN:      rec.String("PR_MSISDN__c"),
		Type:        rec.String("Order.Type"),
		Reason:      rec.NullableString("Order.vlocity_cmt__Reason__c"),
		Status:      rec.String("Order.vlocity_cmt__OrderStatus__c"),
		CreatedDate: rec.String("CreatedDate"),
		CreatedBy:   rec.String("Order.CreatedBy.Name"),
		Notes:       rec.String("Order.vlocity_cmt__Notes__c"),
		ProductName: rec.String("Product2.Name"),
		Billing: types.BillingInfo{
			AccountNumber: rec.String("vlocity_cmt__BillingAccountId__r.PR_Mobile_Billing_Number__c"),
			Segment:       rec.String("vlocity_cmt__BillingAccountId__r.Segment__c"),
			PaymentType:   rec.String("vlocity_cmt__BillingAccountId__r.vlocity_cmt__AccountPaymentType__c"),
		},
	}
}
