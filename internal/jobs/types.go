// Package jobs defines the asynchronous settlement job types and the queue
// ports that decouple transaction intake from pipeline execution.
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/exchange-settler/internal/settlement"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeSettleTransaction represents a transaction settlement job.
	JobTypeSettleTransaction JobType = "settle_transaction"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// SettleTransactionJob tracks one asynchronous settlement request through
// the queue.
type SettleTransactionJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Transaction is the settlement request to run.
	Transaction settlement.Transaction `json:"transaction"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains the stage error if the job failed. Settlement jobs
	// are enqueued with MaxRetries 0: a pipeline failure is terminal.
	Error string `json:"error,omitempty"`

	// RecordID and StorageLocation identify the ledger record written by
	// a completed job.
	RecordID        string `json:"record_id,omitempty"`
	StorageLocation string `json:"storage_location,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// NewSettleTransactionJob wraps a transaction in a fresh pending job.
func NewSettleTransactionJob(tx settlement.Transaction) *SettleTransactionJob {
	return &SettleTransactionJob{
		JobID:       uuid.NewString(),
		Transaction: tx,
		Status:      JobStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *SettleTransactionJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *SettleTransactionJob) GetType() JobType {
	return JobTypeSettleTransaction
}

// GetStatus implements the Job interface.
func (j *SettleTransactionJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory,
// Cloud Tasks, Pub/Sub).
type Publisher interface {
	// PublishSettleTransaction publishes a settlement job.
	PublishSettleTransaction(ctx context.Context, job *SettleTransactionJob) error

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
// It should return an error if the job failed.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
// This allows tracking job execution across service restarts.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *SettleTransactionJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*SettleTransactionJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*SettleTransactionJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// UserID filters jobs by the settling user.
	UserID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
