package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/linewarden/internal/logging"
	"github.com/solatis/linewarden/internal/query"
	"github.com/solatis/linewarden/internal/source"
	"github.com/solatis/linewarden/internal/source/sourcetest"
	"github.com/solatis/linewarden/internal/types"
)

func strPtr(s string) *string { return &s }

func orderRecord(msisdn, created, reason string) source.Record {
	var r any
	if reason != "" {
		r = reason
	}
	return source.Record{
		"Id":           "oli-" + msisdn + "-" + created,
		"PR_MSISDN__c": msisdn,
		"CreatedDate":  created,
		"Order": map[string]any{
			"Id":                          "ord-" + created,
			"Type":                        "Change",
			"vlocity_cmt__Reason__c":      r,
			"vlocity_cmt__OrderStatus__c": "Activated",
			"CreatedBy":                   map[string]any{"Name": "Agent"},
		},
	}
}

func fixedRetriever(src source.RecordSource, cfg RetrieverConfig) *Retriever {
	r := NewRetriever(src, query.DefaultTemplates(100), cfg, logging.Discard())
	r.now = func() time.Time { return time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC) }
	return r
}

func TestRetriever_Window(t *testing.T) {
	r := fixedRetriever(sourcetest.New(), RetrieverConfig{})
	start, end := r.Window()
	if want := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}
}

func TestRetriever_GetOrdersLatest(t *testing.T) {
	src := sourcetest.New().Add("FROM OrderItem",
		orderRecord("555", "2026-03-09T10:00:00.000+0000", "Upgrade"),
		orderRecord("555", "2026-03-09T12:00:00.000+0000", "Change Plan"),
		orderRecord("", "2026-03-09T12:00:00.000+0000", "Upgrade"),
		orderRecord("777", "2026-03-09T08:00:00.000+0000", ""),
	)
	r := fixedRetriever(src, RetrieverConfig{Strategy: StrategyLatest})

	got, err := r.GetOrders(context.Background())
	if err != nil {
		t.Fatalf("GetOrders() error = %v, want nil", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(GetOrders()) = %d, want 2", len(got))
	}
	if reason := got["555"].ReasonOrEmpty(); reason != "Change Plan" {
		t.Errorf("555 reason = %q, want Change Plan", reason)
	}
	if got["777"].Reason != nil {
		t.Errorf("777 reason = %v, want nil", *got["777"].Reason)
	}

	q := src.Queries()[0]
	if !strings.Contains(q, "CreatedDate >= 2026-03-09T00:00:00Z AND CreatedDate < 2026-03-10T00:00:00Z") {
		t.Errorf("query window not bound: %s", q)
	}
	if !strings.Contains(q, "LIMIT 100") {
		t.Errorf("query missing page size: %s", q)
	}
}

func TestRetriever_EmptyResult(t *testing.T) {
	r := fixedRetriever(sourcetest.New(), RetrieverConfig{})
	got, err := r.GetOrders(context.Background())
	if err != nil {
		t.Fatalf("GetOrders() error = %v, want nil", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("GetOrders() = %v, want empty map", got)
	}
}

func TestRetriever_Filtered(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RetrieverConfig
		wantErr error
	}{
		{name: "missing reason", cfg: RetrieverConfig{Strategy: StrategyFiltered}, wantErr: types.ErrInvalidConfig},
		{
			name:    "reason not allowed",
			cfg:     RetrieverConfig{Strategy: StrategyFiltered, Reason: "Port In", ValidReasons: []string{"Upgrade"}},
			wantErr: types.ErrInvalidConfig,
		},
		{name: "unknown strategy", cfg: RetrieverConfig{Strategy: "oldest"}, wantErr: types.ErrInvalidConfig},
		{name: "valid", cfg: RetrieverConfig{Strategy: StrategyFiltered, Reason: "Upgrade", ValidReasons: []string{"Upgrade"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := sourcetest.New()
			_, err := fixedRetriever(src, tt.cfg).GetOrders(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetOrders() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if n := len(src.Queries()); n != 0 {
					t.Errorf("queries = %d, want 0 on config error", n)
				}
				return
			}
			if q := src.Queries()[0]; !strings.Contains(q, "Order.vlocity_cmt__Reason__c = 'Upgrade'") {
				t.Errorf("reason not bound: %s", q)
			}
		})
	}
}

func TestRetriever_SourceError(t *testing.T) {
	src := sourcetest.New().Fail("FROM OrderItem", types.ErrSourceUnavailable)
	_, err := fixedRetriever(src, RetrieverConfig{}).GetOrders(context.Background())
	if !errors.Is(err, types.ErrSourceUnavailable) {
		t.Errorf("GetOrders() error = %v, want ErrSourceUnavailable", err)
	}
}

func TestRetriever_GetOrdersForMSISDNsChunks(t *testing.T) {
	src := sourcetest.New().Add("FROM OrderItem", orderRecord("555", "2026-03-09T10:00:00.000+0000", "Upgrade"))
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprintf("%03d", i)
	}

	got, err := fixedRetriever(src, RetrieverConfig{}).GetOrdersForMSISDNs(context.Background(), ids)
	if err != nil {
		t.Fatalf("GetOrdersForMSISDNs() error = %v, want nil", err)
	}
	if n := len(src.Queries()); n != 3 {
		t.Errorf("queries = %d, want 3 chunks", n)
	}
	if len(got) != 3 {
		t.Errorf("len(orders) = %d, want 3 (one per chunk)", len(got))
	}
	if !strings.Contains(src.Queries()[2], "IN ('200', ") {
		t.Errorf("third chunk = %s", src.Queries()[2])
	}
}

func TestClassifier_Pipeline(t *testing.T) {
	c := NewClassifier(ClassifierConfig{
		IgnoreReasons: []string{"Suspend"},
		IgnoreTypes:   []string{"Cancel"},
	}, logging.Discard())

	orders := []types.Order{
		{MSISDN: "1", Reason: strPtr("Disconnect Request"), CreatedDate: "2026-03-09T12:00:00Z"},
		{MSISDN: "1", Reason: strPtr("Upgrade"), CreatedDate: "2026-03-09T10:00:00Z"},
		{MSISDN: "2", Reason: strPtr("Suspend"), CreatedDate: "2026-03-09T10:00:00Z"},
		{MSISDN: "2", Reason: strPtr("suspend"), CreatedDate: "2026-03-09T09:00:00Z"},
		{MSISDN: "3", Type: "Cancel", CreatedDate: "2026-03-09T10:00:00Z"},
		{MSISDN: "4", Reason: nil, CreatedDate: "2026-03-09T10:00:00Z"},
		{MSISDN: "5", Reason: strPtr("A"), CreatedDate: "2026-03-09T08:00:00Z"},
		{MSISDN: "5", Reason: strPtr("B"), CreatedDate: "2026-03-09T11:00:00Z"},
		{MSISDN: "5", Reason: strPtr("C"), CreatedDate: "2026-03-09T11:00:00Z"},
	}

	got := c.FilterAndGroup(orders)

	if r := got["1"].ReasonOrEmpty(); r != "Upgrade" {
		t.Errorf("1 reason = %q, want Upgrade", r)
	}
	if got["1"].HasMultipleOrders {
		t.Errorf("1 HasMultipleOrders = true, want false after disconnect exclusion")
	}
	if r := got["2"].ReasonOrEmpty(); r != "suspend" {
		t.Errorf("2 reason = %q, want suspend (case-sensitive ignore)", r)
	}
	if _, ok := got["3"]; ok {
		t.Errorf("3 survived type exclusion")
	}
	if _, ok := got["4"]; !ok {
		t.Errorf("4 with null reason was dropped")
	}
	five := got["5"]
	if five.ReasonOrEmpty() != "B" || five.OrderCount != 3 || !five.HasMultipleOrders {
		t.Errorf("5 = %+v, want reason B (tie keeps first), count 3", five)
	}
}

func TestClassifier_DisconnectExclusion(t *testing.T) {
	c := NewClassifier(ClassifierConfig{}, logging.Discard())
	got := c.Filter([]types.Order{
		{MSISDN: "1", Reason: strPtr("Disconnect Request")},
		{MSISDN: "1", Reason: strPtr("Upgrade")},
	})
	if len(got) != 1 || got[0].ReasonOrEmpty() != "Upgrade" {
		t.Errorf("Filter() = %+v, want only Upgrade", got)
	}
}

// Property-based test: multiplicity flagging is idempotent
func TestFlagMultiplicity_PropertyIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("flagging twice leaves order counts unchanged", prop.ForAll(
		func(ids []int) bool {
			orders := make([]types.Order, len(ids))
			for i, id := range ids {
				orders[i] = types.Order{MSISDN: fmt.Sprintf("m%d", id), CreatedDate: fmt.Sprintf("2026-03-09T%02d:00:00Z", i%24)}
			}
			once := Group(orders)
			counts := make(map[string]int, len(once))
			for k, v := range once {
				counts[k] = v.OrderCount
			}
			twice := FlagMultiplicity(once, counts)
			if len(twice) != len(once) {
				return false
			}
			for k, v := range once {
				if twice[k].OrderCount != v.OrderCount || twice[k].HasMultipleOrders != v.HasMultipleOrders {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}

// Property-based test: orders whose reason mentions a disconnect never survive
func TestFilter_PropertyDisconnectNeverSurvives(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	c := NewClassifier(ClassifierConfig{}, logging.Discard())

	properties.Property("disconnect reasons are excluded in any case", prop.ForAll(
		func(prefix, suffix string, upper bool) bool {
			word := "disconnect"
			if upper {
				word = "DisConnect"
			}
			reason := prefix + word + suffix
			return len(c.Filter([]types.Order{{MSISDN: "1", Reason: &reason}})) == 0
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
