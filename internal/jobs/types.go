package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeUpload normalizes and stores an uploaded file.
	JobTypeUpload JobType = "upload"
	// JobTypeIngest normalizes and stores a file read from GCS.
	JobTypeIngest JobType = "ingest"
	// JobTypeDeleteAll removes every stored record.
	JobTypeDeleteAll JobType = "delete_all"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed, possibly with a warning.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed. Failed jobs are not retried.
	JobStatusFailed JobStatus = "failed"
)

// ErrJobNotFound is returned by a JobStore for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// ActionJob represents one user-triggered action on the record store.
type ActionJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Type is the action to run.
	Type JobType `json:"type"`

	// Period is the declared period of an upload.
	Period string `json:"period,omitempty"`

	// Layout names the file layout of an upload.
	Layout string `json:"layout,omitempty"`

	// Filename is the original name of an uploaded file.
	Filename string `json:"filename,omitempty"`

	// GCSURI is the source of an ingest job.
	GCSURI string `json:"gcs_uri,omitempty"`

	// Payload holds the uploaded bytes until the job has run. It is never
	// kept by a JobStore.
	Payload []byte `json:"-"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Warning is set on completed jobs that stored nothing.
	Warning string `json:"warning,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RowsRead, RowsDropped and RowsStored summarize an upload.
	RowsRead    int `json:"rows_read"`
	RowsDropped int `json:"rows_dropped"`
	RowsStored  int `json:"rows_stored"`

	// ArchiveURI is where the raw upload was archived, if anywhere.
	ArchiveURI string `json:"archive_uri,omitempty"`
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// Publish enqueues an action job.
	Publish(ctx context.Context, job *ActionJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It may fill in the job's result fields and Warning. A returned error marks
// the job failed.
type JobHandler func(ctx context.Context, job *ActionJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ActionJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ActionJob, error)

	// ListJobs retrieves jobs with optional filtering, oldest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ActionJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Type filters jobs by action.
	Type JobType

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
