package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/linewarden/internal/bulk"
	"github.com/solatis/linewarden/internal/types"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID         string    `db:"run_id" json:"run_id"`
	Kind       string    `db:"kind" json:"kind"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
	Total      int       `db:"total" json:"total"`
	Succeeded  int       `db:"succeeded" json:"succeeded"`
	Failed     int       `db:"failed" json:"failed"`
}

// ResultRecord is one subscriber's stored outcome. ResultJSON holds the full
// validation envelope.
type ResultRecord struct {
	MSISDN           string  `db:"msisdn" json:"msisdn"`
	Status           string  `db:"status" json:"status"`
	ValidationStatus string  `db:"validation_status" json:"validation_status"`
	SuccessRate      float64 `db:"success_rate" json:"success_rate"`
	Message          string  `db:"message" json:"message,omitempty"`
	OrderReason      string  `db:"order_reason" json:"order_reason"`
	ResultJSON       string  `db:"result_json" json:"-"`
}

// Store persists bulk run history. It implements bulk.Recorder.
type Store struct {
	db *sqlx.DB
	q  *Queries
}

// NewStore loads the named queries for db. The schema must already be
// migrated.
func NewStore(db *sqlx.DB) (*Store, error) {
	q, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, q: q}, nil
}

// SaveRun writes the run and every outcome in one transaction.
func (s *Store) SaveRun(ctx context.Context, run bulk.Run) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := s.q.WithTx(tx)
	if _, err := q.Exec(ctx, "insert-run",
		string(run.ID), run.Kind, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Total, run.Succeeded, run.Failed,
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	for _, o := range run.Outcomes {
		rec, err := resultRecord(o)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, "insert-run-result",
			string(run.ID), rec.MSISDN, rec.Status, rec.ValidationStatus,
			rec.SuccessRate, rec.Message, rec.OrderReason, rec.ResultJSON,
		); err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", o.MSISDN, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

func resultRecord(o bulk.Outcome) (ResultRecord, error) {
	body, err := json.Marshal(o.Result)
	if err != nil {
		return ResultRecord{}, fmt.Errorf("failed to encode result for %s: %w", o.MSISDN, err)
	}
	rec := ResultRecord{
		MSISDN:     o.MSISDN,
		Status:     o.Result.Status,
		Message:    o.Result.Message,
		ResultJSON: string(body),
	}
	if o.Order != nil {
		rec.OrderReason = o.Order.ReasonOrEmpty()
	}
	if e := o.Result.Entry; e != nil {
		rec.ValidationStatus = string(e.ValidationStatus)
		rec.SuccessRate = e.Summary.SuccessRate
	}
	return rec, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := []RunRecord{}
	if err := s.q.Select(ctx, "list-runs", &runs, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id types.RunID) (*RunRecord, error) {
	var run RunRecord
	if err := s.q.Get(ctx, "get-run", &run, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return &run, nil
}

// RunResults returns the stored outcomes of a run ordered by msisdn.
func (s *Store) RunResults(ctx context.Context, id types.RunID) ([]ResultRecord, error) {
	results := []ResultRecord{}
	if err := s.q.Select(ctx, "list-run-results", &results, string(id)); err != nil {
		return nil, fmt.Errorf("failed to list results for %s: %w", id, err)
	}
	return results, nil
}
