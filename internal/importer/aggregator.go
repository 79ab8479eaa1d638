// Package importer implements the import job processing pipeline: the
// per-job aggregator that drives validation and persistence row by row,
// the lifecycle controller that owns job state transitions, and the
// worker queue that dispatches jobs to the controller.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crmtools/customer-import/internal/csvstream"
	"github.com/crmtools/customer-import/internal/customer"
)

// MsgEmailExists is the rejection message recorded when the sink reports a
// duplicate email. Part of the job report contract.
const MsgEmailExists = "Email already exists"

// JobStore is the slice of the job store the pipeline needs.
type JobStore interface {
	Find(ctx context.Context, id uuid.UUID) (*customer.ImportJob, error)
	Save(ctx context.Context, job *customer.ImportJob) error
}

// RecordSink persists one normalized record per call, with exactly one
// attempt. A duplicate email surfaces as customer.ErrDuplicateEmail.
type RecordSink interface {
	Create(ctx context.Context, rec customer.Record) (uuid.UUID, error)
}

// aggregator owns one job's counters and rejection log for the duration of
// a run. No other component writes to the job document while it is
// processing.
//
// Row-level failures (validation, duplicate email, store errors) are
// recorded and never abort the run; only a failure to persist the job
// document itself is returned as an error, which is fatal to the job.
type aggregator struct {
	job        *customer.ImportJob
	jobs       JobStore
	sink       RecordSink
	log        *slog.Logger
	checkpoint int // save every N rows; 0 disables intermediate saves

	rows int // data rows observed so far
}

func newAggregator(job *customer.ImportJob, jobs JobStore, sink RecordSink, checkpoint int, log *slog.Logger) *aggregator {
	return &aggregator{
		job:        job,
		jobs:       jobs,
		sink:       sink,
		log:        log,
		checkpoint: checkpoint,
	}
}

// processRow runs one decoded row through validation and, if it passes,
// the sink. The outcome is recorded on the job accumulator.
func (a *aggregator) processRow(ctx context.Context, row csvstream.Row) error {
	a.rows++

	rec, violations := customer.Validate(row.Fields)
	switch {
	case len(violations) > 0:
		a.job.Reject(row.Num, row.Fields, violations)

	default:
		if _, err := a.sink.Create(ctx, rec); err != nil {
			a.job.Reject(row.Num, row.Fields, []string{sinkMessage(err)})
			if !errors.Is(err, customer.ErrDuplicateEmail) {
				a.log.Warn("record store failed",
					"job_id", a.job.ID, "row", row.Num, "error", err)
			}
		} else {
			a.job.SuccessCount++
		}
	}

	if a.checkpoint > 0 && a.rows%a.checkpoint == 0 {
		if err := a.jobs.Save(ctx, a.job); err != nil {
			return fmt.Errorf("checkpoint at row %d: %w", row.Num, err)
		}
	}
	return nil
}

// complete finalizes the job after the row sequence is exhausted:
// TotalRecords is set to the rows actually observed, the completion
// timestamp is stamped, and the document is saved in the completed state.
func (a *aggregator) complete(ctx context.Context) error {
	now := time.Now().UTC()
	a.job.TotalRecords = a.rows
	a.job.CompletedAt = &now
	a.job.Status = customer.JobCompleted

	if err := a.jobs.Save(ctx, a.job); err != nil {
		return fmt.Errorf("save completed job: %w", err)
	}
	return nil
}

// sinkMessage maps a sink error to the rejection message recorded on the
// job report.
func sinkMessage(err error) string {
	if errors.Is(err, customer.ErrDuplicateEmail) {
		return MsgEmailExists
	}
	return err.Error()
}
