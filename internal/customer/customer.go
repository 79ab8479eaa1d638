// Package customer holds the domain types for the customer import service:
// the persisted customer entity, the normalized import record, the import
// job document with its per-row rejection log, and the record validator.
package customer

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors shared between the stores and their consumers.
var (
	// ErrNotFound is returned when a customer or job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when a create or update collides with
	// the unique index on customers.email.
	ErrDuplicateEmail = errors.New("duplicate email")
)

// Customer is the persisted customer entity.
type Customer struct {
	ID          uuid.UUID `json:"id"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Timezone    string    `json:"timezone"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Record is a fully validated, normalized customer record ready for
// persistence. Email is lowercased, FullName trimmed, DateOfBirth at date
// precision.
type Record struct {
	FullName    string
	Email       string
	DateOfBirth time.Time
	Timezone    string
}

// Patch is a partial customer update. Nil fields are left unchanged.
type Patch struct {
	FullName    *string
	Email       *string
	DateOfBirth *time.Time
	Timezone    *string
}

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// RejectionEntry records one data row that did not result in a stored
// customer, with the raw fields as received for operator debugging.
// Entries are immutable once appended.
type RejectionEntry struct {
	Row              int               `json:"row"`
	Data             map[string]string `json:"data"`
	ValidationErrors []string          `json:"validationErrors"`
}

// ImportJob tracks the status and results of one CSV import run.
//
// TotalRecords stays 0 until the run completes; it is only finalized on the
// completion path, so a fatally aborted job never reports a partial total.
// SuccessCount and FailedCount are monotonically non-decreasing while the
// job is processing.
type ImportJob struct {
	ID           uuid.UUID        `json:"id"`
	Status       JobStatus        `json:"status"`
	TotalRecords int              `json:"totalRecords"`
	SuccessCount int              `json:"successCount"`
	FailedCount  int              `json:"failedCount"`
	Rejected     []RejectionEntry `json:"rejectedRecords"`
	StartedAt    *time.Time       `json:"startedAt"`
	CompletedAt  *time.Time       `json:"completedAt"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// Reject appends a rejection entry and bumps the failure counter.
func (j *ImportJob) Reject(row int, data map[string]string, errs []string) {
	j.FailedCount++
	j.Rejected = append(j.Rejected, RejectionEntry{
		Row:              row,
		Data:             data,
		ValidationErrors: errs,
	})
}
