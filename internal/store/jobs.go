package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crmtools/customer-import/internal/customer"
)

// JobStore persists import job documents. Save always writes the full
// document (counters, rejection log, status, timestamps) so the stored row
// matches the in-memory accumulator at every checkpoint.
type JobStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewJobStore(pool *pgxpool.Pool, log *slog.Logger) *JobStore {
	return &JobStore{pool: pool, log: log}
}

// Create inserts a new job in the pending state and returns it.
func (s *JobStore) Create(ctx context.Context) (*customer.ImportJob, error) {
	job := &customer.ImportJob{
		ID:       uuid.New(),
		Status:   customer.JobPending,
		Rejected: []customer.RejectionEntry{},
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO import_jobs (id, status) VALUES ($1, $2)
		 RETURNING created_at, updated_at`,
		job.ID, job.Status,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}

	s.log.Info("import job created", "job_id", job.ID)
	return job, nil
}

// Find fetches one job document by id.
func (s *JobStore) Find(ctx context.Context, id uuid.UUID) (*customer.ImportJob, error) {
	var (
		job      customer.ImportJob
		rejected []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, total_records, success_count, failed_count,
		        rejected_records, started_at, completed_at, created_at, updated_at
		 FROM import_jobs WHERE id = $1`,
		id,
	).Scan(&job.ID, &job.Status, &job.TotalRecords, &job.SuccessCount, &job.FailedCount,
		&rejected, &job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("find import job: %w", err)
	}

	if err := json.Unmarshal(rejected, &job.Rejected); err != nil {
		return nil, fmt.Errorf("decode rejection log for job %s: %w", id, err)
	}
	return &job, nil
}

// Save writes the full job document back. The job must already exist.
func (s *JobStore) Save(ctx context.Context, job *customer.ImportJob) error {
	rejected := job.Rejected
	if rejected == nil {
		rejected = []customer.RejectionEntry{}
	}
	payload, err := json.Marshal(rejected)
	if err != nil {
		return fmt.Errorf("encode rejection log for job %s: %w", job.ID, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE import_jobs
		 SET status = $2, total_records = $3, success_count = $4, failed_count = $5,
		     rejected_records = $6, started_at = $7, completed_at = $8, updated_at = now()
		 WHERE id = $1`,
		job.ID, job.Status, job.TotalRecords, job.SuccessCount, job.FailedCount,
		payload, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		s.log.Error("import job save failed", "job_id", job.ID, "error", err)
		return fmt.Errorf("save import job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}
