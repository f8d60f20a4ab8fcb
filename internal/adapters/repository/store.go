// Package repository persists analysis jobs and their reports.
package repository

import (
	"context"
	"time"

	"github.com/okian/tenure/internal/domain/model"
)

// Record is a stored analysis result. Report holds the JSON encoded report,
// Summary its key-value form for listing without decoding the report.
type Record struct {
	JobID     string
	Summary   model.Summary
	Report    []byte
	CreatedAt time.Time
}

// Store provides read/write access to analysis jobs and reports.
type Store interface {
	// CreateJob inserts a new job. The ID must be unique.
	CreateJob(ctx context.Context, job model.Job) error

	// UpdateJob moves a job to status. errMsg is stored for failed jobs.
	// Returns ErrNotFound if the job is unknown.
	UpdateJob(ctx context.Context, id string, status model.JobStatus, errMsg string, at time.Time) error

	// GetJob returns a job by ID or ErrNotFound.
	GetJob(ctx context.Context, id string) (model.Job, error)

	// ListJobs returns up to limit jobs, newest first.
	ListJobs(ctx context.Context, limit int) ([]model.Job, error)

	// CountJobs returns the number of jobs per status.
	CountJobs(ctx context.Context) (map[model.JobStatus]int, error)

	// SaveReport stores the result of a job, replacing any earlier one.
	SaveReport(ctx context.Context, rec Record) error

	// GetReport returns the result of a job or ErrNotFound.
	GetReport(ctx context.Context, jobID string) (Record, error)

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close releases the database.
	Close() error
}
