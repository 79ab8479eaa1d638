package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/crmtools/customer-import/internal/csvstream"
	"github.com/crmtools/customer-import/internal/customer"
)

// Task identifies one enqueued import: the job to run and the uploaded
// file to consume.
type Task struct {
	JobID uuid.UUID
	Path  string
}

// Controller orchestrates the lifecycle of one import job per Run call:
//
//	pending → processing → completed | failed
//
// Terminal states are never left; redelivery of a finished job is a no-op.
// The temporary upload file is removed exactly once on every exit path.
type Controller struct {
	jobs JobStore
	sink RecordSink
	log  *slog.Logger

	// CheckpointRows controls how often partial progress is persisted
	// during a run. 0 saves only at start and completion.
	CheckpointRows int
}

func NewController(jobs JobStore, sink RecordSink, checkpointRows int, log *slog.Logger) *Controller {
	return &Controller{
		jobs:           jobs,
		sink:           sink,
		log:            log,
		CheckpointRows: checkpointRows,
	}
}

// Run processes one import job end to end. The returned error is the fatal
// error that moved the job to failed, or nil. Row-level failures do not
// surface here; they are recorded on the job's rejection log.
func (c *Controller) Run(ctx context.Context, task Task) error {
	defer c.removeUpload(task.Path)

	log := c.log.With("job_id", task.JobID)

	job, err := c.jobs.Find(ctx, task.JobID)
	if err != nil {
		log.Error("import job lookup failed", "error", err)
		return fmt.Errorf("find job %s: %w", task.JobID, err)
	}

	// At-least-once delivery: a redelivered finished job must not be
	// reprocessed.
	if job.Status.Terminal() {
		log.Info("skipping redelivered job", "status", job.Status)
		return nil
	}

	now := time.Now().UTC()
	job.Status = customer.JobProcessing
	job.StartedAt = &now
	if err := c.jobs.Save(ctx, job); err != nil {
		log.Error("import job start failed", "error", err)
		return fmt.Errorf("mark job processing: %w", err)
	}

	if err := c.process(ctx, job, task.Path); err != nil {
		c.fail(ctx, job, err)
		return err
	}

	log.Info("import job completed",
		"total", job.TotalRecords,
		"success", job.SuccessCount,
		"failed", job.FailedCount,
	)
	return nil
}

// process streams the file through the aggregator. Any returned error is
// fatal to the job.
func (c *Controller) process(ctx context.Context, job *customer.ImportJob, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	dec, err := csvstream.NewDecoder(f)
	if err != nil {
		return err
	}

	agg := newAggregator(job, c.jobs, c.sink, c.CheckpointRows, c.log)
	for dec.Next() {
		if err := agg.processRow(ctx, dec.Row()); err != nil {
			return err
		}
	}
	if err := dec.Err(); err != nil {
		return err
	}

	return agg.complete(ctx)
}

// fail moves the job to the failed terminal state. TotalRecords is left
// untouched: a fatally aborted run never commits a partial total. The save
// is best effort; if even that fails there is nothing left to record.
func (c *Controller) fail(ctx context.Context, job *customer.ImportJob, cause error) {
	job.Status = customer.JobFailed
	if err := c.jobs.Save(ctx, job); err != nil {
		c.log.Error("failed-state save failed", "job_id", job.ID, "error", err)
	}
	c.log.Error("import job failed", "job_id", job.ID, "error", cause)
}

// removeUpload deletes the temporary upload file. Called exactly once per
// Run regardless of outcome.
func (c *Controller) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.log.Warn("upload cleanup failed", "path", path, "error", err)
	}
}
