package bulk

import (
	"strconv"
	"strings"
	"time"

	"github.com/solatis/linewarden/internal/verdict"
)

// Report is a tabular view shared by the CSV and XLSX renderers. JSON output
// marshals the report value itself.
type Report interface {
	Sheet() string
	Headers() []string
	Rows() [][]string
}

// YesterdaySummary aggregates a previous-day run.
type YesterdaySummary struct {
	TotalMSISDNs          int     `json:"total_msisdns"`
	SuccessfulValidations int     `json:"successful_validations"`
	FailedValidations     int     `json:"failed_validations"`
	SuccessRate           float64 `json:"success_rate"`
	Timestamp             string  `json:"timestamp"`
	OutputFormat          string  `json:"output_format"`
}

// YesterdayReport is the result of a previous-day run.
type YesterdayReport struct {
	RunID   string           `json:"run_id,omitempty"`
	Summary YesterdaySummary `json:"summary"`
	Results []Outcome        `json:"results"`
}

// NewYesterdayReport summarizes outcomes. A validation counts as successful
// when it did not return an error envelope, whatever its verdict.
func NewYesterdayReport(outcomes []Outcome, format Format, now time.Time) *YesterdayReport {
	ok, failed := tally(outcomes)
	return &YesterdayReport{
		Summary: YesterdaySummary{
			TotalMSISDNs:          len(outcomes),
			SuccessfulValidations: ok,
			FailedValidations:     failed,
			SuccessRate:           verdict.Rate(ok, len(outcomes)),
			Timestamp:             now.UTC().Format(time.RFC3339),
			OutputFormat:          string(format),
		},
		Results: nonNilOutcomes(outcomes),
	}
}

// Sheet names the xlsx worksheet.
func (r *YesterdayReport) Sheet() string { return "Yesterday" }

// Headers returns the tabular column names.
func (r *YesterdayReport) Headers() []string {
	return []string{"MSISDN", "Order Reason", "Order Status", "Validation Status", "Has Multiple Orders", "Order Count", "Success Rate", "Errors"}
}

// Rows returns one row per outcome, in result order.
func (r *YesterdayReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Results))
	for _, o := range r.Results {
		var reason, status, multiple, count string
		if o.Order != nil {
			reason = o.Order.ReasonOrEmpty()
			status = o.Order.Status
			multiple = strconv.FormatBool(o.Order.HasMultipleOrders)
			count = strconv.Itoa(o.Order.OrderCount)
		}
		rows = append(rows, []string{
			o.MSISDN, reason, status, validationStatus(o), multiple, count, successRate(o), o.Result.Message,
		})
	}
	return rows
}

// FilterInfo records the exclusion lists applied to an identifier-list run.
type FilterInfo struct {
	IgnoredReasons []string `json:"ignored_reasons"`
	IgnoredTypes   []string `json:"ignored_types"`
	Disconnects    string   `json:"disconnects"`
}

// ListSummary aggregates an identifier-list run.
type ListSummary struct {
	TotalMSISDNsRequested int     `json:"total_msisdns_requested"`
	MSISDNsWithOrders     int     `json:"msisdns_with_orders"`
	MSISDNsWithoutOrders  int     `json:"msisdns_without_orders"`
	SuccessfulValidations int     `json:"successful_validations"`
	FailedValidations     int     `json:"failed_validations"`
	SuccessRate           float64 `json:"success_rate"`
	Timestamp             string  `json:"timestamp"`
}

// MSISDNListReport is the result of an identifier-list run.
type MSISDNListReport struct {
	RunID                string      `json:"run_id,omitempty"`
	Summary              ListSummary `json:"summary"`
	OrderFilterInfo      FilterInfo  `json:"order_filter_info"`
	Results              []Outcome   `json:"results"`
	MSISDNsWithoutOrders []string    `json:"msisdns_without_orders"`
}

// NewMSISDNListReport summarizes outcomes of an identifier-list run.
// requested is the number of distinct identifiers asked for.
func NewMSISDNListReport(requested int, outcomes []Outcome, without []string, filter FilterInfo, now time.Time) *MSISDNListReport {
	ok, failed := tally(outcomes)
	if without == nil {
		without = []string{}
	}
	return &MSISDNListReport{
		Summary: ListSummary{
			TotalMSISDNsRequested: requested,
			MSISDNsWithOrders:     len(outcomes),
			MSISDNsWithoutOrders:  len(without),
			SuccessfulValidations: ok,
			FailedValidations:     failed,
			SuccessRate:           verdict.Rate(ok, len(outcomes)),
			Timestamp:             now.UTC().Format(time.RFC3339),
		},
		OrderFilterInfo:      filter,
		Results:              nonNilOutcomes(outcomes),
		MSISDNsWithoutOrders: without,
	}
}

// Sheet names the xlsx worksheet.
func (r *MSISDNListReport) Sheet() string { return "MSISDN List" }

// Headers returns the tabular column names.
func (r *MSISDNListReport) Headers() []string {
	return []string{"MSISDN", "Validation Status", "Success Rate", "Errors", "Order Reason", "Asset Count"}
}

// Rows returns one row per outcome followed by a NO_ORDERS row per
// identifier without a qualifying order.
func (r *MSISDNListReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Results)+len(r.MSISDNsWithoutOrders))
	for _, o := range r.Results {
		var reason string
		if o.Order != nil {
			reason = o.Order.ReasonOrEmpty()
		}
		rows = append(rows, []string{
			o.MSISDN, validationStatus(o), successRate(o), o.Result.Message, reason, strconv.Itoa(assetCount(o)),
		})
	}
	for _, m := range r.MSISDNsWithoutOrders {
		rows = append(rows, []string{m, "NO_ORDERS", "", "", "", "0"})
	}
	return rows
}

func tally(outcomes []Outcome) (ok, failed int) {
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		} else {
			ok++
		}
	}
	return ok, failed
}

func nonNilOutcomes(o []Outcome) []Outcome {
	if o == nil {
		return []Outcome{}
	}
	return o
}

func validationStatus(o Outcome) string {
	if o.Result.Entry == nil {
		return strings.ToUpper(o.Result.Status)
	}
	return string(o.Result.Entry.ValidationStatus)
}

func successRate(o Outcome) string {
	if o.Result.Entry == nil {
		return ""
	}
	return strconv.FormatFloat(o.Result.Entry.Summary.SuccessRate, 'f', 2, 64)
}

func assetCount(o Outcome) int {
	e := o.Result.Entry
	if e == nil {
		return 0
	}
	n := len(e.ChildOfLine) + len(e.ChildOfDevice)
	if e.LineAsset != nil {
		n++
	}
	if e.DeviceAsset != nil {
		n++
	}
	return n
}
