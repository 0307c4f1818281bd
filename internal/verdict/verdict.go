// Package verdict merges assembly and evaluation results into per-subscriber
// verdict records and aggregates them.
package verdict

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solatis/linewarden/internal/assets"
	"github.com/solatis/linewarden/internal/rules"
	"github.com/solatis/linewarden/internal/types"
)

// Status is the overall verdict for one subscriber.
type Status string

const (
	StatusPassed             Status = "PASSED"
	StatusPassedWithWarnings Status = "PASSED_WITH_WARNINGS"
	StatusFailed             Status = "FAILED"
)

// Reduce combines the basic set, the reason sets and the warnings.
//
//   - basic FAILED => FAILED
//   - first non-skipped reason set FAILED => FAILED
//   - basic PASSED and that reason set PASSED or absent => PASSED
//   - anything else => PASSED_WITH_WARNINGS
//
// Any warning turns PASSED into PASSED_WITH_WARNINGS. A FAILED verdict stays
// FAILED.
func Reduce(basic rules.Status, reasons []rules.ReasonResult, warnings []types.Warning) Status {
	reason := rules.StatusSkipped
	for _, r := range reasons {
		if r.Status != rules.StatusSkipped {
			reason = r.Status
			break
		}
	}

	var s Status
	switch {
	case basic == rules.StatusFailed:
		s = StatusFailed
	case reason == rules.StatusFailed:
		s = StatusFailed
	case basic == rules.StatusPassed && (reason == rules.StatusPassed || reason == rules.StatusSkipped):
		s = StatusPassed
	default:
		s = StatusPassedWithWarnings
	}
	if s == StatusPassed && len(warnings) > 0 {
		s = StatusPassedWithWarnings
	}
	return s
}

// Rate returns num/den as a percentage rounded to two places, 0 when den is 0.
func Rate(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(num) * 100).
		Div(decimal.NewFromInt(int64(den))).
		Round(2).
		InexactFloat64()
}

// LineDetails summarizes the line asset.
type LineDetails struct {
	MSISDN        string `json:"msisdn,omitempty"`
	Segment       string `json:"segment,omitempty"`
	BillingNumber string `json:"billing_number,omitempty"`
}

// OrderHistory lists the historical orders used for reason extraction.
type OrderHistory struct {
	Count  int           `json:"count"`
	Orders []types.Order `json:"orders"`
}

// Validations holds the raw check results.
type Validations struct {
	Basic       rules.ResultSet            `json:"basic"`
	ReasonBased map[string]rules.ResultSet `json:"reason_based"`
}

// EntrySummary is the per-subscriber summary.
type EntrySummary struct {
	Status      Status  `json:"status"`
	SuccessRate float64 `json:"success_rate"`
}

// WarningsBlock reports manual modifications.
type WarningsBlock struct {
	ManualModificationsDetected bool            `json:"manual_modifications_detected"`
	ModifiedByUsers             []string        `json:"modified_by_users"`
	AssetsManuallyModified      []types.Warning `json:"assets_manually_modified"`
}

// Entry is the verdict record of one subscriber.
type Entry struct {
	MSISDN           string                 `json:"msisdn"`
	LineDetails      LineDetails            `json:"line_details"`
	ValidationStatus Status                 `json:"validation_status"`
	Order            *types.ClassifiedOrder `json:"order,omitempty"`
	OrderReasons     []string               `json:"order_reasons"`
	OrderStatus      string                 `json:"order_status"`
	OrderHistory     OrderHistory           `json:"order_history"`
	DeviceAsset      *types.Asset           `json:"Device Asset"`
	LineAsset        *types.Asset           `json:"Line Asset"`
	ChildOfLine      []types.Asset          `json:"Child of Line"`
	ChildOfDevice    []types.Asset          `json:"Child of Device"`
	Validations      Validations            `json:"validations"`
	Summary          EntrySummary           `json:"summary"`
	Warnings         *WarningsBlock         `json:"warnings,omitempty"`
	Notes            string                 `json:"notes"`
}

// BuildEntry assembles the verdict record. asm must not have failed.
func BuildEntry(asm *assets.Assembly, ev rules.Evaluation, order *types.ClassifiedOrder) Entry {
	status := Reduce(ev.Basic.Status, ev.Reasons, ev.Warnings)

	passed, failed, total := ev.Basic.Passed, ev.Basic.Failed, ev.Basic.Total
	if r, ok := ev.FirstRan(); ok {
		passed += r.Passed
		failed += r.Failed
		total += r.Total
	}

	e := Entry{
		MSISDN:           asm.MSISDN,
		LineDetails:      lineDetails(asm),
		ValidationStatus: status,
		Order:            order,
		OrderReasons:     nonNil(asm.Reasons),
		OrderStatus:      asm.LatestStatus,
		OrderHistory:     OrderHistory{Count: len(asm.History), Orders: asm.History},
		DeviceAsset:      asm.Bundle.Device,
		LineAsset:        asm.Bundle.Line,
		ChildOfLine:      emptyAsNil(asm.Bundle.LineChildren),
		ChildOfDevice:    emptyAsNil(asm.Bundle.DeviceChildren),
		Validations: Validations{
			Basic:       ev.Basic,
			ReasonBased: ev.ReasonMap(),
		},
		Summary: EntrySummary{Status: status, SuccessRate: Rate(passed, total)},
	}
	if len(ev.Warnings) > 0 {
		e.Warnings = warningsBlock(ev.Warnings)
	}

	switch status {
	case StatusPassed:
		e.Notes = "All checks passed."
	case StatusPassedWithWarnings:
		e.Notes = fmt.Sprintf("All checks passed but %d asset(s) manually modified. Review warnings.", len(ev.Warnings))
	default:
		e.Notes = fmt.Sprintf("Validation failed. %d check(s) failed.", failed)
	}
	return e
}

func lineDetails(asm *assets.Assembly) LineDetails {
	ld := LineDetails{MSISDN: asm.MSISDN}
	if rec := asm.Raw.Line; rec != nil {
		if m := rec.String("PR_MSISDN__c"); m != "" {
			ld.MSISDN = m
		}
		ld.Segment = rec.String("vlocity_cmt__BillingAccountId__r.Segment__c")
		ld.BillingNumber = rec.String("vlocity_cmt__BillingAccountId__r.PR_Mobile_Billing_Number__c")
	}
	return ld
}

func warningsBlock(ws []types.Warning) *WarningsBlock {
	seen := make(map[string]bool)
	users := []string{}
	for _, w := range ws {
		if !seen[w.ModifiedBy] {
			seen[w.ModifiedBy] = true
			users = append(users, w.ModifiedBy)
		}
	}
	sort.Strings(users)
	return &WarningsBlock{
		ManualModificationsDetected: true,
		ModifiedByUsers:             users,
		AssetsManuallyModified:      ws,
	}
}

func emptyAsNil(a []types.Asset) []types.Asset {
	if len(a) == 0 {
		return nil
	}
	return a
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Summary aggregates verdicts.
type Summary struct {
	TotalMSISDNsValidated int     `json:"total_msisdns_validated"`
	Passed                int     `json:"passed"`
	PassedWithWarnings    int     `json:"passed_with_warnings"`
	Failed                int     `json:"failed"`
	SuccessRate           float64 `json:"success_rate"`
}

// Response is the aggregate over many entries.
type Response struct {
	DateValidated    string  `json:"date_validated"`
	Timestamp        string  `json:"timestamp"`
	Status           string  `json:"status"`
	Summary          Summary `json:"summary"`
	ValidatedMSISDNs []Entry `json:"validated_msisdns"`
}

// BuildResponse aggregates entries, sorted by MSISDN.
func BuildResponse(entries []Entry, now time.Time) Response {
	sorted := append([]Entry{}, entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MSISDN < sorted[j].MSISDN })

	s := Summary{TotalMSISDNsValidated: len(sorted)}
	for _, e := range sorted {
		switch e.ValidationStatus {
		case StatusPassed:
			s.Passed++
		case StatusPassedWithWarnings:
			s.PassedWithWarnings++
		case StatusFailed:
			s.Failed++
		}
	}
	s.SuccessRate = Rate(s.Passed+s.PassedWithWarnings, s.TotalMSISDNsValidated)

	return Response{
		DateValidated:    now.Format("2006-01-02"),
		Timestamp:        now.UTC().Format(time.RFC3339),
		Status:           "success",
		Summary:          s,
		ValidatedMSISDNs: sorted,
	}
}

// Result is what a single validation returns over the transport: an entry on
// success, an error envelope otherwise.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Entry   *Entry `json:"result,omitempty"`
}

// Success wraps an entry.
func Success(e Entry) Result {
	return Result{Status: "success", Entry: &e}
}

// Error renders err as an error envelope.
func Error(err error) Result {
	return Result{Status: "error", Message: err.Error()}
}

// IsError reports whether the result is an error envelope.
func (r Result) IsError() bool {
	return r.Status == "error"
}
