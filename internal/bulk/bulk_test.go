package bulk

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/solatis/linewarden/internal/logging"
	"github.com/solatis/linewarden/internal/orders"
	"github.com/solatis/linewarden/internal/query"
	"github.com/solatis/linewarden/internal/source"
	"github.com/solatis/linewarden/internal/source/sourcetest"
	"github.com/solatis/linewarden/internal/types"
	"github.com/solatis/linewarden/internal/verdict"
)

// stubValidator answers from a function and tracks peak concurrency.
type stubValidator struct {
	fn       func(ctx context.Context, msisdn string) (verdict.Result, error)
	inFlight atomic.Int32
	peak     atomic.Int32

	mu   sync.Mutex
	seen []string
}

func (s *stubValidator) Validate(ctx context.Context, msisdn string, _ *types.ClassifiedOrder) (verdict.Result, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	s.mu.Lock()
	s.seen = append(s.seen, msisdn)
	s.mu.Unlock()
	return s.fn(ctx, msisdn)
}

func passing(_ context.Context, msisdn string) (verdict.Result, error) {
	return verdict.Success(verdict.Entry{
		MSISDN:           msisdn,
		ValidationStatus: verdict.StatusPassed,
		Summary:          verdict.EntrySummary{Status: verdict.StatusPassed, SuccessRate: 100},
	}), nil
}

func jobs(ids ...string) []Job {
	out := make([]Job, len(ids))
	for i, id := range ids {
		out[i] = Job{MSISDN: id}
	}
	return out
}

func TestExecutor_RunKeepsJobOrder(t *testing.T) {
	v := &stubValidator{fn: func(ctx context.Context, msisdn string) (verdict.Result, error) {
		if msisdn == "1" {
			time.Sleep(20 * time.Millisecond)
		}
		return passing(ctx, msisdn)
	}}
	e := NewExecutor(v, ExecutorConfig{Workers: 3}, logging.Discard())

	got := e.Run(context.Background(), jobs("1", "2", "3", "4"))
	if len(got) != 4 {
		t.Fatalf("len(Run()) = %d, want 4", len(got))
	}
	for i, want := range []string{"1", "2", "3", "4"} {
		if got[i].MSISDN != want {
			t.Errorf("outcome[%d].MSISDN = %q, want %q", i, got[i].MSISDN, want)
		}
		if got[i].Failed() {
			t.Errorf("outcome[%d] failed: %+v", i, got[i].Result)
		}
	}
}

func TestExecutor_RespectsWorkerLimit(t *testing.T) {
	v := &stubValidator{fn: func(ctx context.Context, msisdn string) (verdict.Result, error) {
		time.Sleep(5 * time.Millisecond)
		return passing(ctx, msisdn)
	}}
	e := NewExecutor(v, ExecutorConfig{Workers: 2}, logging.Discard())

	e.Run(context.Background(), jobs("a", "b", "c", "d", "e", "f"))
	if p := v.peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestExecutor_FailuresAreIsolated(t *testing.T) {
	v := &stubValidator{fn: func(ctx context.Context, msisdn string) (verdict.Result, error) {
		switch msisdn {
		case "boom":
			return verdict.Result{}, errors.New("connection reset")
		case "nodevice":
			return verdict.Error(types.ErrNoDevice), nil
		}
		return passing(ctx, msisdn)
	}}
	e := NewExecutor(v, ExecutorConfig{}, logging.Discard())

	got := e.Run(context.Background(), jobs("ok", "boom", "nodevice"))
	if got[0].Failed() {
		t.Errorf("ok failed: %+v", got[0].Result)
	}
	if !got[1].Failed() || !strings.Contains(got[1].Result.Message, "connection reset") {
		t.Errorf("boom = %+v, want transport error", got[1].Result)
	}
	if !got[2].Failed() || got[2].Result.Message != "no device found (mandatory)" {
		t.Errorf("nodevice = %+v, want lookup error", got[2].Result)
	}
}

func TestExecutor_CallTimeout(t *testing.T) {
	v := &stubValidator{fn: func(ctx context.Context, msisdn string) (verdict.Result, error) {
		<-ctx.Done()
		return verdict.Result{}, ctx.Err()
	}}
	e := NewExecutor(v, ExecutorConfig{CallTimeout: 10 * time.Millisecond}, logging.Discard())

	got := e.Run(context.Background(), jobs("slow"))
	if !got[0].Failed() || !strings.Contains(got[0].Result.Message, "deadline exceeded") {
		t.Errorf("slow = %+v, want deadline error", got[0].Result)
	}
}

func TestExecutor_CancelledContext(t *testing.T) {
	v := &stubValidator{fn: passing}
	e := NewExecutor(v, ExecutorConfig{}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := e.Run(ctx, jobs("a", "b"))
	for i, o := range got {
		if !o.Failed() {
			t.Errorf("outcome[%d] = %+v, want failure after cancel", i, o.Result)
		}
	}
	if len(v.seen) != 0 {
		t.Errorf("validator called %d times, want 0", len(v.seen))
	}
}

func TestExecutor_Empty(t *testing.T) {
	e := NewExecutor(&stubValidator{fn: passing}, ExecutorConfig{}, logging.Discard())
	if got := e.Run(context.Background(), nil); len(got) != 0 {
		t.Errorf("Run(nil) = %v, want empty", got)
	}
}

func TestYesterdayReport_Summary(t *testing.T) {
	now := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

	empty := NewYesterdayReport(nil, FormatJSON, now)
	if empty.Summary.SuccessRate != 0 || empty.Summary.TotalMSISDNs != 0 {
		t.Errorf("empty summary = %+v", empty.Summary)
	}

	all := make([]Outcome, 4)
	for i := range all {
		res, _ := passing(context.Background(), "x")
		all[i] = Outcome{MSISDN: "x", Result: res}
	}
	r := NewYesterdayReport(all, FormatCSV, now)
	if r.Summary.SuccessRate != 100 || r.Summary.SuccessfulValidations != 4 {
		t.Errorf("summary = %+v, want 100%% of 4", r.Summary)
	}
	if r.Summary.OutputFormat != "csv" || r.Summary.Timestamp != "2026-03-10T06:00:00Z" {
		t.Errorf("summary = %+v", r.Summary)
	}

	// A FAILED verdict is still a successful validation.
	failedVerdict := verdict.Success(verdict.Entry{ValidationStatus: verdict.StatusFailed})
	mixed := NewYesterdayReport([]Outcome{
		{MSISDN: "1", Result: failedVerdict},
		{MSISDN: "2", Result: verdict.Error(types.ErrNoActiveLine)},
		{MSISDN: "3", Result: failedVerdict},
	}, FormatJSON, now)
	if mixed.Summary.SuccessfulValidations != 2 || mixed.Summary.FailedValidations != 1 || mixed.Summary.SuccessRate != 66.67 {
		t.Errorf("mixed summary = %+v", mixed.Summary)
	}
}

func TestRender_CSV(t *testing.T) {
	reason := "Change Plan"
	res, _ := passing(context.Background(), "555")
	r := NewYesterdayReport([]Outcome{
		{
			MSISDN: "555",
			Order:  &types.ClassifiedOrder{Order: types.Order{Reason: &reason, Status: "Activated"}, HasMultipleOrders: true, OrderCount: 2},
			Result: res,
		},
		{MSISDN: "666", Result: verdict.Error(types.ErrNoDevice)},
	}, FormatCSV, time.Now())

	var buf bytes.Buffer
	if err := Render(&buf, FormatCSV, r); err != nil {
		t.Fatalf("Render() error = %v, want nil", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("csv.ReadAll() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	if strings.Join(records[0], "|") != "MSISDN|Order Reason|Order Status|Validation Status|Has Multiple Orders|Order Count|Success Rate|Errors" {
		t.Errorf("headers = %v", records[0])
	}
	if strings.Join(records[1], "|") != "555|Change Plan|Activated|PASSED|true|2|100.00|" {
		t.Errorf("row 1 = %v", records[1])
	}
	if records[2][3] != "ERROR" || records[2][7] != "no device found (mandatory)" {
		t.Errorf("row 2 = %v", records[2])
	}
}

func TestRender_XLSX(t *testing.T) {
	r := NewMSISDNListReport(2, nil, []string{"777"}, FilterInfo{}, time.Now())

	var buf bytes.Buffer
	if err := Render(&buf, FormatXLSX, r); err != nil {
		t.Fatalf("Render() error = %v, want nil", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.Sheet())
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "MSISDN" || rows[1][0] != "777" || rows[1][1] != "NO_ORDERS" {
		t.Errorf("rows = %v", rows)
	}
}

func TestRender_JSON(t *testing.T) {
	r := NewMSISDNListReport(1, nil, nil, FilterInfo{IgnoredReasons: []string{"Move"}}, time.Now())

	var buf bytes.Buffer
	if err := Render(&buf, FormatJSON, r); err != nil {
		t.Fatalf("Render() error = %v, want nil", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	for _, key := range []string{"summary", "order_filter_info", "results", "msisdns_without_orders"} {
		if _, ok := got[key]; !ok {
			t.Errorf("report JSON missing %q", key)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, types.ErrInvalidConfig) {
		t.Errorf("ParseFormat(pdf) error = %v, want ErrInvalidConfig", err)
	}
}

func TestNormalizeMSISDNs(t *testing.T) {
	ids, rejected := NormalizeMSISDNs([]string{" 555 ", "", "555", "777", "# comment"}, "")
	if strings.Join(ids, ",") != "555,777" || len(rejected) != 0 {
		t.Errorf("NormalizeMSISDNs() = %v, %v", ids, rejected)
	}

	ids, rejected = NormalizeMSISDNs([]string{"(650) 253-0000", "+1 650 253 0000", "12"}, "us")
	if strings.Join(ids, ",") != "16502530000" {
		t.Errorf("ids = %v, want [16502530000]", ids)
	}
	if len(rejected) != 1 || rejected[0] != "12" {
		t.Errorf("rejected = %v, want [12]", rejected)
	}
}

func TestSplitMSISDNs(t *testing.T) {
	got := SplitMSISDNs("1, 2;3\n4\t 5")
	if strings.Join(got, ",") != "1,2,3,4,5" {
		t.Errorf("SplitMSISDNs() = %v", got)
	}
}

func orderLine(msisdn, created, reason string) source.Record {
	return source.Record{
		"Id":           "oli-" + msisdn + created,
		"PR_MSISDN__c": msisdn,
		"CreatedDate":  created,
		"Order": map[string]any{
			"Id":                          "ord-" + msisdn,
			"vlocity_cmt__Reason__c":      reason,
			"vlocity_cmt__OrderStatus__c": "Activated",
		},
	}
}

type memRecorder struct {
	runs []Run
	err  error
}

func (m *memRecorder) SaveRun(_ context.Context, run Run) error {
	m.runs = append(m.runs, run)
	return m.err
}

func newRunner(src source.RecordSource, v Validator, rec Recorder) *Runner {
	log := logging.Discard()
	ret := orders.NewRetriever(src, query.DefaultTemplates(100), orders.RetrieverConfig{}, log)
	cls := orders.NewClassifier(orders.ClassifierConfig{IgnoreReasons: []string{"Move"}}, log)
	exec := NewExecutor(v, ExecutorConfig{Workers: 2}, log)
	return NewRunner(ret, cls, exec, rec, RunnerConfig{Format: FormatJSON}, log)
}

func TestRunner_Yesterday(t *testing.T) {
	src := sourcetest.New().Add("FROM OrderItem",
		orderLine("555", "2026-03-09T10:00:00.000+0000", "Upgrade"),
		orderLine("555", "2026-03-09T11:00:00.000+0000", "Change Plan"),
		orderLine("777", "2026-03-09T09:00:00.000+0000", "Move"),
		orderLine("888", "2026-03-09T09:00:00.000+0000", "Disconnect Service"),
		orderLine("111", "2026-03-09T09:00:00.000+0000", "Upgrade"),
	)
	v := &stubValidator{fn: passing}
	rec := &memRecorder{}

	report, err := newRunner(src, v, rec).Yesterday(context.Background())
	if err != nil {
		t.Fatalf("Yesterday() error = %v, want nil", err)
	}
	if report.Summary.TotalMSISDNs != 2 {
		t.Fatalf("TotalMSISDNs = %d, want 2", report.Summary.TotalMSISDNs)
	}
	if report.Results[0].MSISDN != "111" || report.Results[1].MSISDN != "555" {
		t.Errorf("results not sorted: %s, %s", report.Results[0].MSISDN, report.Results[1].MSISDN)
	}
	o := report.Results[1].Order
	if o == nil || o.ReasonOrEmpty() != "Change Plan" || !o.HasMultipleOrders || o.OrderCount != 2 {
		t.Errorf("555 order = %+v", o)
	}
	if len(rec.runs) != 1 || rec.runs[0].Kind != KindYesterday || report.RunID != string(rec.runs[0].ID) {
		t.Errorf("recorded runs = %+v, report run id %q", rec.runs, report.RunID)
	}
}

func TestRunner_YesterdaySourceFailure(t *testing.T) {
	src := sourcetest.New().Fail("FROM OrderItem", types.ErrSourceUnavailable)
	_, err := newRunner(src, &stubValidator{fn: passing}, nil).Yesterday(context.Background())
	if !errors.Is(err, types.ErrSourceUnavailable) {
		t.Errorf("Yesterday() error = %v, want ErrSourceUnavailable", err)
	}
}

func TestRunner_MSISDNList(t *testing.T) {
	src := sourcetest.New().Add("FROM OrderItem",
		orderLine("555", "2026-03-09T10:00:00.000+0000", "Upgrade"),
		orderLine("777", "2026-03-09T10:00:00.000+0000", "Move"),
	)
	v := &stubValidator{fn: passing}
	rec := &memRecorder{err: errors.New("disk full")}

	report, err := newRunner(src, v, rec).MSISDNList(context.Background(), []string{"555", "777", "999", "555"})
	if err != nil {
		t.Fatalf("MSISDNList() error = %v, want nil", err)
	}
	s := report.Summary
	if s.TotalMSISDNsRequested != 3 || s.MSISDNsWithOrders != 1 || s.MSISDNsWithoutOrders != 2 || s.SuccessRate != 100 {
		t.Errorf("summary = %+v", s)
	}
	if strings.Join(report.MSISDNsWithoutOrders, ",") != "777,999" {
		t.Errorf("without orders = %v", report.MSISDNsWithoutOrders)
	}
	if report.RunID != "" {
		t.Errorf("RunID = %q, want empty when recording fails", report.RunID)
	}
	if len(v.seen) != 1 || v.seen[0] != "555" {
		t.Errorf("validated = %v, want [555]", v.seen)
	}
}

func TestRunner_MSISDNListEmpty(t *testing.T) {
	_, err := newRunner(sourcetest.New(), &stubValidator{fn: passing}, nil).MSISDNList(context.Background(), []string{" ", ""})
	if !errors.Is(err, types.ErrInvalidConfig) {
		t.Errorf("MSISDNList() error = %v, want ErrInvalidConfig", err)
	}
}
