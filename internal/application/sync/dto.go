package sync

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trafficlens/backend/internal/domain/order"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// StartSyncRequest asks for a sync of one connection over a time window
type StartSyncRequest struct {
	ConnectionID uuid.UUID `json:"connection_id" binding:"required"`
	After        time.Time `json:"after" binding:"required"`
	Before       time.Time `json:"before" binding:"required"`
}

// JobListFilter represents filter options for listing sync jobs
type JobListFilter struct {
	ConnectionID *uuid.UUID `form:"connection_id"`
	Status       string     `form:"status"`
	Page         int        `form:"page"`
	PageSize     int        `form:"page_size"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// SyncSummary is the caller-facing result of one completed sync run.
type SyncSummary struct {
	JobID        uuid.UUID           `json:"job_id"`
	Status       order.SyncJobStatus `json:"status"`
	TotalCount   int                 `json:"total_count"`
	Processed    int                 `json:"processed_count"`
	CreatedCount int                 `json:"created_count"`
	UpdatedCount int                 `json:"updated_count"`
	FailedCount  int                 `json:"failed_count"`
	Pages        int                 `json:"pages"`
}

// SyncJobResponse represents a sync job in API responses
type SyncJobResponse struct {
	ID             uuid.UUID           `json:"id"`
	ConnectionID   uuid.UUID           `json:"connection_id"`
	Status         order.SyncJobStatus `json:"status"`
	WindowAfter    time.Time           `json:"window_after"`
	WindowBefore   time.Time           `json:"window_before"`
	TotalCount     int                 `json:"total_count"`
	ProcessedCount int                 `json:"processed_count"`
	CreatedCount   int                 `json:"created_count"`
	UpdatedCount   int                 `json:"updated_count"`
	FailedCount    int                 `json:"failed_count"`
	ErrorMessage   string              `json:"error_message,omitempty"`
	StartedAt      *time.Time          `json:"started_at,omitempty"`
	FinishedAt     *time.Time          `json:"finished_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// SyncLogEntryResponse represents one job log line in API responses
type SyncLogEntryResponse struct {
	ID        uuid.UUID          `json:"id"`
	Level     order.SyncLogLevel `json:"level"`
	Message   string             `json:"message"`
	Context   string             `json:"context,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// ValidationReport is the result of a completeness check of one window.
type ValidationReport struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	WindowAfter  time.Time `json:"window_after"`
	WindowBefore time.Time `json:"window_before"`

	RemoteCount int `json:"remote_count"`
	LocalCount  int `json:"local_count"`

	// MissingIDs exist remotely but not locally; ExtraIDs exist locally
	// but not remotely.
	MissingIDs []string `json:"missing_ids"`
	ExtraIDs   []string `json:"extra_ids"`

	// Accuracy is (remote - missing) / remote, 0 when remote is empty.
	Accuracy decimal.Decimal `json:"accuracy"`

	// Paid-search cross-check: expected is recomputed from the raw remote
	// payloads, actual is the locally stored Paid Search order count.
	PaidSearchExpected int  `json:"paid_search_expected"`
	PaidSearchActual   int  `json:"paid_search_actual"`
	PaidSearchMatch    bool `json:"paid_search_match"`
}

// ToSyncJobResponse converts a domain job to a response DTO
func ToSyncJobResponse(j *order.SyncJob) SyncJobResponse {
	return SyncJobResponse{
		ID:             j.ID,
		ConnectionID:   j.ConnectionID,
		Status:         j.Status,
		WindowAfter:    j.WindowAfter,
		WindowBefore:   j.WindowBefore,
		TotalCount:     j.TotalCount,
		ProcessedCount: j.ProcessedCount,
		CreatedCount:   j.CreatedCount,
		UpdatedCount:   j.UpdatedCount,
		FailedCount:    j.FailedCount,
		ErrorMessage:   j.ErrorMessage,
		StartedAt:      j.StartedAt,
		FinishedAt:     j.FinishedAt,
		CreatedAt:      j.CreatedAt,
	}
}

// ToSyncLogEntryResponse converts a domain log entry to a response DTO
func ToSyncLogEntryResponse(e *order.SyncLogEntry) SyncLogEntryResponse {
	return SyncLogEntryResponse{
		ID:        e.ID,
		Level:     e.Level,
		Message:   e.Message,
		Context:   e.Context,
		CreatedAt: e.CreatedAt,
	}
}

// summaryFromJob derives a SyncSummary from the job's final counters.
func summaryFromJob(j *order.SyncJob, pages int) *SyncSummary {
	return &SyncSummary{
		JobID:        j.ID,
		Status:       j.Status,
		TotalCount:   j.TotalCount,
		Processed:    j.ProcessedCount,
		CreatedCount: j.CreatedCount,
		UpdatedCount: j.UpdatedCount,
		FailedCount:  j.FailedCount,
		Pages:        pages,
	}
}
