// internal/rules/engine.go
package rules

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/solatis/linewarden/internal/types"
)

/*
 * Check evaluation.
 *
 * The engine holds compiled check sets built once at construction and never
 * mutated afterwards, so one Engine is shared by every concurrent
 * evaluation. All per-call state (results, details, warnings) lives in the
 * returned Evaluation.
 *
 * Evaluation flow:
 *   1. basic set, always
 *   2. per reason (deduplicated, order kept, empty skipped): reason set, or
 *      SKIPPED when none is configured
 *   3. warnings for manually modified assets
 *
 * A check that panics is recovered into a failed outcome for that check
 * only; the remaining checks and sets still run.
 */

// Status is the outcome of a check set.
type Status string

const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// ResultSet is the outcome of one check set.
type ResultSet struct {
	Status  Status            `json:"status"`
	Checks  map[string]bool   `json:"checks"`
	Details map[string]string `json:"details,omitempty"`
	Passed  int               `json:"passed"`
	Failed  int               `json:"failed"`
	Total   int               `json:"total"`
}

// ReasonResult is the result set of one reason, in evaluation order.
type ReasonResult struct {
	Reason string
	ResultSet
}

// Evaluation is everything one Evaluate call produces.
type Evaluation struct {
	Basic    ResultSet
	Reasons  []ReasonResult
	Warnings []types.Warning
}

// FirstRan returns the first reason set that was not skipped.
func (e Evaluation) FirstRan() (ReasonResult, bool) {
	for _, r := range e.Reasons {
		if r.Status != StatusSkipped {
			return r, true
		}
	}
	return ReasonResult{}, false
}

// ReasonMap returns reason results keyed by reason.
func (e Evaluation) ReasonMap() map[string]ResultSet {
	out := make(map[string]ResultSet, len(e.Reasons))
	for _, r := range e.Reasons {
		out[r.Reason] = r.ResultSet
	}
	return out
}

// Config is the check configuration.
type Config struct {
	Basic       []types.CheckDescriptor
	ReasonBased []types.ReasonCheckSet
	SystemUsers []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithCustom registers a custom strategy under name.
func WithCustom(name string, fn CustomFunc) Option {
	return func(e *Engine) {
		e.custom[name] = fn
	}
}

// Engine evaluates compiled check sets against asset bundles.
type Engine struct {
	basic       CheckSet
	reasons     map[string]CheckSet
	systemUsers map[string]bool
	custom      map[string]CustomFunc
	logger      *logrus.Logger
}

// NewEngine compiles cfg. A descriptor without id is a configuration error.
func NewEngine(cfg Config, logger *logrus.Logger, opts ...Option) (*Engine, error) {
	basic, err := CompileSet(cfg.Basic)
	if err != nil {
		return nil, fmt.Errorf("basic checks: %w", err)
	}

	reasons := make(map[string]CheckSet, len(cfg.ReasonBased))
	for _, rs := range cfg.ReasonBased {
		if rs.Reason == "" {
			return nil, types.NewConfigError("rules", "reason check set without reason")
		}
		set, err := CompileSet(rs.Checks)
		if err != nil {
			return nil, fmt.Errorf("reason %q: %w", rs.Reason, err)
		}
		reasons[rs.Reason] = set
	}

	e := &Engine{
		basic:       basic,
		reasons:     reasons,
		systemUsers: make(map[string]bool, len(cfg.SystemUsers)),
		custom:      map[string]CustomFunc{CustomRawFieldEquals: rawFieldEquals},
		logger:      logger,
	}
	for _, u := range cfg.SystemUsers {
		e.systemUsers[u] = true
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate runs the basic set and the reason sets against bundle.
func (e *Engine) Evaluate(bundle types.AssetBundle, reasons []string) Evaluation {
	ev := Evaluation{
		Basic:    e.runSet(bundle, e.basic),
		Reasons:  []ReasonResult{},
		Warnings: DetectWarnings(bundle, e.systemUsers),
	}

	seen := make(map[string]bool, len(reasons))
	for _, reason := range reasons {
		if reason == "" || seen[reason] {
			continue
		}
		seen[reason] = true

		set, ok := e.reasons[reason]
		if !ok {
			ev.Reasons = append(ev.Reasons, ReasonResult{
				Reason:    reason,
				ResultSet: ResultSet{Status: StatusSkipped, Checks: map[string]bool{}},
			})
			continue
		}
		ev.Reasons = append(ev.Reasons, ReasonResult{Reason: reason, ResultSet: e.runSet(bundle, set)})
	}
	return ev
}

func (e *Engine) runSet(bundle types.AssetBundle, set CheckSet) ResultSet {
	rs := ResultSet{Checks: make(map[string]bool, len(set))}
	for _, c := range set {
		o := e.runCheck(bundle, c)
		rs.Checks[c.CheckID()] = o.Passed
		if o.Passed {
			rs.Passed++
			continue
		}
		rs.Failed++
		if o.Detail != "" {
			if rs.Details == nil {
				rs.Details = make(map[string]string)
			}
			rs.Details[c.CheckID()] = o.Detail
		}
	}
	rs.Total = len(rs.Checks)
	rs.Status = StatusPassed
	if rs.Failed > 0 {
		rs.Status = StatusFailed
	}
	return rs
}

// runCheck dispatches one check; a panic fails that check only.
func (e *Engine) runCheck(bundle types.AssetBundle, c Check) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{
				"check": c.CheckID(),
				"panic": r,
			}).Error("check panicked")
			out = fail("check panicked: %v", r)
		}
	}()

	switch c := c.(type) {
	case PresenceCheck:
		out = evalPresence(bundle, c)
	case StatusCheck:
		out = evalStatus(bundle, c)
	case ChargesCheck:
		out = evalCharges(bundle, c)
	case CustomCheck:
		fn, ok := e.custom[c.Logic]
		if !ok {
			// unregistered custom strategies pass
			return pass()
		}
		out = fn(bundle, c)
	case UnknownCheck:
		out = fail("unknown validation type %q", c.Type)
	default:
		out = fail("unsupported check %T", c)
	}

	if !out.Passed {
		e.logger.WithFields(logrus.Fields{
			"check":  c.CheckID(),
			"detail": out.Detail,
		}).Debug("check failed")
	}
	return out
}
