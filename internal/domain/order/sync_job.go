package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SyncJob
// ---------------------------------------------------------------------------

// SyncJobStatus represents the lifecycle state of a sync job
type SyncJobStatus string

const (
	// SyncJobStatusPending indicates the job has been created but not started
	SyncJobStatusPending SyncJobStatus = "PENDING"
	// SyncJobStatusRunning indicates the job is in progress
	SyncJobStatusRunning SyncJobStatus = "RUNNING"
	// SyncJobStatusCompleted indicates the job finished, possibly with skipped records
	SyncJobStatusCompleted SyncJobStatus = "COMPLETED"
	// SyncJobStatusFailed indicates the fetch phase failed and the job aborted
	SyncJobStatusFailed SyncJobStatus = "FAILED"
	// SyncJobStatusCancelled indicates an operator cancelled the job
	SyncJobStatusCancelled SyncJobStatus = "CANCELLED"
)

// IsValid returns true if the status is valid
func (s SyncJobStatus) IsValid() bool {
	switch s {
	case SyncJobStatusPending, SyncJobStatusRunning, SyncJobStatusCompleted,
		SyncJobStatusFailed, SyncJobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states a job never leaves
func (s SyncJobStatus) IsTerminal() bool {
	switch s {
	case SyncJobStatusCompleted, SyncJobStatusFailed, SyncJobStatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncJobStatus
func (s SyncJobStatus) String() string {
	return string(s)
}

// SyncJob records one execution of the sync engine for one store connection
// and time window.
type SyncJob struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	ConnectionID uuid.UUID
	Status       SyncJobStatus

	WindowAfter  time.Time
	WindowBefore time.Time

	TotalCount     int
	ProcessedCount int
	CreatedCount   int
	UpdatedCount   int
	FailedCount    int

	ErrorMessage string

	// CancelRequested is set by an operator; the engine observes it between
	// pages and between orders and stops starting new work.
	CancelRequested bool

	StartedAt  *time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewSyncJob creates a pending job for a connection and window.
func NewSyncJob(tenantID, connectionID uuid.UUID, after, before time.Time) *SyncJob {
	return &SyncJob{
		ID:           uuid.New(),
		TenantID:     tenantID,
		ConnectionID: connectionID,
		Status:       SyncJobStatusPending,
		WindowAfter:  after,
		WindowBefore: before,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

// Start transitions the job to running.
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = SyncJobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
}

// Complete transitions the job to completed.
func (j *SyncJob) Complete() {
	now := time.Now()
	j.Status = SyncJobStatusCompleted
	j.FinishedAt = &now
	j.UpdatedAt = now
}

// Fail transitions the job to failed, capturing the error verbatim.
func (j *SyncJob) Fail(message string) {
	now := time.Now()
	j.Status = SyncJobStatusFailed
	j.ErrorMessage = message
	j.FinishedAt = &now
	j.UpdatedAt = now
}

// MarkCancelled transitions the job to cancelled.
func (j *SyncJob) MarkCancelled() {
	now := time.Now()
	j.Status = SyncJobStatusCancelled
	j.FinishedAt = &now
	j.UpdatedAt = now
}

// ---------------------------------------------------------------------------
// SyncLog
// ---------------------------------------------------------------------------

// SyncLogLevel is the severity of a sync log entry
type SyncLogLevel string

const (
	SyncLogLevelDebug   SyncLogLevel = "DEBUG"
	SyncLogLevelInfo    SyncLogLevel = "INFO"
	SyncLogLevelWarning SyncLogLevel = "WARNING"
	SyncLogLevelError   SyncLogLevel = "ERROR"
)

// SyncLogEntry is an append-only, timestamped record attached to a job.
// Entries are never mutated after creation; they are the audit trail for
// post-hoc debugging of partial failures, independent of any external log
// system.
type SyncLogEntry struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	Level     SyncLogLevel
	Message   string
	// Context carries the offending raw record or other structured detail,
	// serialized as JSON, so skipped records can be replayed manually.
	Context   string
	CreatedAt time.Time
}

// NewSyncLogEntry creates a log entry for a job.
func NewSyncLogEntry(jobID uuid.UUID, level SyncLogLevel, message, context string) *SyncLogEntry {
	return &SyncLogEntry{
		ID:        uuid.New(),
		JobID:     jobID,
		Level:     level,
		Message:   message,
		Context:   context,
		CreatedAt: time.Now(),
	}
}

// SyncJobFilter defines filter criteria for listing jobs
type SyncJobFilter struct {
	ConnectionID *uuid.UUID
	Status       *SyncJobStatus
	Page         int
	PageSize     int
}

// SyncJobRepository defines the interface for persisting sync jobs and logs
type SyncJobRepository interface {
	// Save creates or updates a job
	Save(ctx context.Context, job *SyncJob) error

	// FindByID finds a job by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*SyncJob, error)

	// FindAll lists jobs for a tenant matching the filter
	FindAll(ctx context.Context, tenantID uuid.UUID, filter SyncJobFilter) ([]SyncJob, error)

	// Count counts jobs for a tenant matching the filter
	Count(ctx context.Context, tenantID uuid.UUID, filter SyncJobFilter) (int64, error)

	// RequestCancel marks a job for cancellation
	RequestCancel(ctx context.Context, id uuid.UUID) error

	// IsCancelRequested re-reads the cancellation flag
	IsCancelRequested(ctx context.Context, id uuid.UUID) (bool, error)

	// AppendLog appends a log entry; entries are immutable once written
	AppendLog(ctx context.Context, entry *SyncLogEntry) error

	// FindLogs returns all log entries for a job in creation order
	FindLogs(ctx context.Context, jobID uuid.UUID) ([]SyncLogEntry, error)
}
