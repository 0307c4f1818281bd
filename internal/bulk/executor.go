// Package bulk runs the single-subscriber validation over many subscribers
// with bounded parallelism and pacing, and turns the outcomes into reports.
package bulk

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/solatis/linewarden/internal/types"
	"github.com/solatis/linewarden/internal/verdict"
)

// Defaults applied when ExecutorConfig fields are zero.
const (
	DefaultWorkers       = 5
	DefaultPause         = 100 * time.Millisecond
	DefaultCallTimeout   = 30 * time.Second
	DefaultProgressEvery = 10
)

// Validator validates one subscriber. Implementations include the gRPC client
// and the in-process service.
type Validator interface {
	Validate(ctx context.Context, msisdn string, order *types.ClassifiedOrder) (verdict.Result, error)
}

// Job is one unit of work.
type Job struct {
	MSISDN string
	Order  *types.ClassifiedOrder
}

// Outcome is the result of one job. Result is an error envelope when the
// call failed or timed out.
type Outcome struct {
	MSISDN   string                 `json:"msisdn"`
	Order    *types.ClassifiedOrder `json:"order,omitempty"`
	Result   verdict.Result         `json:"validation_result"`
	Duration time.Duration          `json:"-"`
}

// Failed reports whether the outcome carries an error envelope.
func (o Outcome) Failed() bool {
	return o.Result.IsError()
}

// ExecutorConfig tunes parallelism and pacing.
type ExecutorConfig struct {
	Workers int
	// Pause is slept by each worker before it starts a unit.
	Pause time.Duration
	// RatePerSecond caps call starts across all workers. Zero disables it.
	RatePerSecond float64
	CallTimeout   time.Duration
	ProgressEvery int
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Pause < 0 {
		c.Pause = 0
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	return c
}

// Executor fans jobs out over a bounded worker pool.
type Executor struct {
	validator Validator
	cfg       ExecutorConfig
	limiter   *rate.Limiter
	logger    *logrus.Logger
}

// NewExecutor creates an Executor. A zero Pause in cfg means no pause; use
// DefaultPause explicitly to get the default.
func NewExecutor(v Validator, cfg ExecutorConfig, logger *logrus.Logger) *Executor {
	cfg = cfg.withDefaults()
	e := &Executor{validator: v, cfg: cfg, logger: logger}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return e
}

// Run validates every job and returns one outcome per job, in job order.
// A failing job never affects its siblings. When ctx is cancelled, jobs not
// yet started are recorded as failed.
func (e *Executor) Run(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	if len(jobs) == 0 {
		return outcomes
	}

	start := time.Now()
	var done atomic.Int64
	total := len(jobs)

	e.logger.WithFields(logrus.Fields{
		"jobs":    total,
		"workers": e.cfg.Workers,
		"pause":   e.cfg.Pause.String(),
	}).Info("bulk run started")

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = e.runOne(ctx, job)
			if n := done.Add(1); n%int64(e.cfg.ProgressEvery) == 0 && int(n) < total {
				e.logger.WithFields(logrus.Fields{
					"completed": n,
					"total":     total,
				}).Info("bulk progress")
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
	}
	e.logger.WithFields(logrus.Fields{
		"completed": total,
		"failed":    failed,
		"elapsed":   time.Since(start).Round(time.Millisecond).String(),
	}).Info("bulk run finished")
	return outcomes
}

func (e *Executor) runOne(ctx context.Context, job Job) Outcome {
	out := Outcome{MSISDN: job.MSISDN, Order: job.Order}
	began := time.Now()

	if err := e.wait(ctx); err != nil {
		out.Result = verdict.Error(fmt.Errorf("not started: %w", err))
		return out
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	res, err := e.validator.Validate(callCtx, job.MSISDN, job.Order)
	out.Duration = time.Since(began)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"msisdn": job.MSISDN,
			"error":  err.Error(),
		}).Warn("validation call failed")
		out.Result = verdict.Error(fmt.Errorf("%w: %v", types.ErrTransport, err))
		return out
	}
	out.Result = res
	return out
}

// wait applies the per-unit pause and the global rate limit.
func (e *Executor) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.cfg.Pause > 0 {
		t := time.NewTimer(e.cfg.Pause)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if e.limiter != nil {
		return e.limiter.Wait(ctx)
	}
	return nil
}
