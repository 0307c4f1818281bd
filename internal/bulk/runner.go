package bulk

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solatis/linewarden/internal/orders"
	"github.com/solatis/linewarden/internal/types"
)

// Run kinds.
const (
	KindYesterday  = "yesterday"
	KindMSISDNList = "msisdn_list"
)

// Run is a finished bulk run, handed to a Recorder.
type Run struct {
	ID         types.RunID
	Kind       string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Succeeded  int
	Failed     int
	Outcomes   []Outcome
}

// Recorder persists finished runs.
type Recorder interface {
	SaveRun(ctx context.Context, run Run) error
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Filter FilterInfo
	// Region enables phone-number normalization of list input.
	Region string
	Format Format
}

// Runner wires retrieval, classification, execution and reporting.
type Runner struct {
	retriever  *orders.Retriever
	classifier *orders.Classifier
	executor   *Executor
	recorder   Recorder
	cfg        RunnerConfig
	logger     *logrus.Logger
	now        func() time.Time
}

// NewRunner creates a Runner. recorder may be nil.
func NewRunner(r *orders.Retriever, c *orders.Classifier, e *Executor, recorder Recorder, cfg RunnerConfig, logger *logrus.Logger) *Runner {
	return &Runner{
		retriever:  r,
		classifier: c,
		executor:   e,
		recorder:   recorder,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Yesterday validates every subscriber with a qualifying order in the
// previous-day window.
func (r *Runner) Yesterday(ctx context.Context) (*YesterdayReport, error) {
	started := r.now()
	lines, err := r.retriever.FetchWindow(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	grouped := r.classifier.FilterAndGroup(lines)

	msisdns := make([]string, 0, len(grouped))
	for m := range grouped {
		msisdns = append(msisdns, m)
	}
	sort.Strings(msisdns)

	outcomes := r.executor.Run(ctx, jobsFor(msisdns, grouped))

	report := NewYesterdayReport(outcomes, r.cfg.Format, r.now())
	report.RunID = r.record(ctx, KindYesterday, started, outcomes)
	return report, nil
}

// MSISDNList validates an explicit identifier list. Identifiers with no
// qualifying order are reported but not validated.
func (r *Runner) MSISDNList(ctx context.Context, raw []string) (*MSISDNListReport, error) {
	started := r.now()
	ids, rejected := NormalizeMSISDNs(raw, r.cfg.Region)
	if len(rejected) > 0 {
		r.logger.WithField("rejected", rejected).Warn("skipping invalid msisdns")
	}
	if len(ids) == 0 {
		return nil, types.NewConfigError("bulk", "no valid msisdns supplied")
	}

	lines, err := r.retriever.GetOrdersForMSISDNs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	grouped := r.classifier.FilterAndGroup(lines)

	var with, without []string
	for _, id := range ids {
		if _, ok := grouped[id]; ok {
			with = append(with, id)
		} else {
			without = append(without, id)
		}
	}
	r.logger.WithFields(logrus.Fields{
		"requested":      len(ids),
		"with_orders":    len(with),
		"without_orders": len(without),
	}).Info("msisdn list classified")

	outcomes := r.executor.Run(ctx, jobsFor(with, grouped))

	report := NewMSISDNListReport(len(ids), outcomes, without, r.cfg.Filter, r.now())
	report.RunID = r.record(ctx, KindMSISDNList, started, outcomes)
	return report, nil
}

func jobsFor(msisdns []string, grouped map[string]types.ClassifiedOrder) []Job {
	jobs := make([]Job, 0, len(msisdns))
	for _, m := range msisdns {
		co := grouped[m]
		jobs = append(jobs, Job{MSISDN: m, Order: &co})
	}
	return jobs
}

// record saves the run when a recorder is configured. A failure to persist
// is logged; the report is still returned.
func (r *Runner) record(ctx context.Context, kind string, started time.Time, outcomes []Outcome) string {
	if r.recorder == nil {
		return ""
	}
	ok, failed := tally(outcomes)
	run := Run{
		ID:         types.NewRunID(),
		Kind:       kind,
		StartedAt:  started,
		FinishedAt: r.now(),
		Total:      len(outcomes),
		Succeeded:  ok,
		Failed:     failed,
		Outcomes:   outcomes,
	}
	if err := r.recorder.SaveRun(ctx, run); err != nil {
		r.logger.WithFields(logrus.Fields{
			"run_id": run.ID,
			"error":  err.Error(),
		}).Error("failed to record run")
		return ""
	}
	return string(run.ID)
}
