package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/trafficlens/backend/internal/domain/order"
)

// SyncJobModel is the persistence model for the SyncJob domain entity.
type SyncJobModel struct {
	ID           uuid.UUID           `gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID           `gorm:"type:uuid;not null;index:idx_sync_job_tenant,priority:1"`
	ConnectionID uuid.UUID           `gorm:"type:uuid;not null;index"`
	Status       order.SyncJobStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`

	WindowAfter  time.Time `gorm:"not null"`
	WindowBefore time.Time `gorm:"not null"`

	TotalCount     int `gorm:"not null;default:0"`
	ProcessedCount int `gorm:"not null;default:0"`
	CreatedCount   int `gorm:"not null;default:0"`
	UpdatedCount   int `gorm:"not null;default:0"`
	FailedCount    int `gorm:"not null;default:0"`

	ErrorMessage string `gorm:"type:text"`

	CancelRequested bool `gorm:"not null;default:false"`

	StartedAt  *time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time `gorm:"not null;index"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncJobModel) TableName() string {
	return "sync_jobs"
}

// ToDomain converts the persistence model to a domain SyncJob entity.
func (m *SyncJobModel) ToDomain() *order.SyncJob {
	return &order.SyncJob{
		ID:           m.ID,
		TenantID:     m.TenantID,
		ConnectionID: m.ConnectionID,
		Status:       m.Status,

		WindowAfter:  m.WindowAfter,
		WindowBefore: m.WindowBefore,

		TotalCount:     m.TotalCount,
		ProcessedCount: m.ProcessedCount,
		CreatedCount:   m.CreatedCount,
		UpdatedCount:   m.UpdatedCount,
		FailedCount:    m.FailedCount,

		ErrorMessage:    m.ErrorMessage,
		CancelRequested: m.CancelRequested,

		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncJob entity.
func (m *SyncJobModel) FromDomain(j *order.SyncJob) {
	m.ID = j.ID
	m.TenantID = j.TenantID
	m.ConnectionID = j.ConnectionID
	m.Status = j.Status

	m.WindowAfter = j.WindowAfter
	m.WindowBefore = j.WindowBefore

	m.TotalCount = j.TotalCount
	m.ProcessedCount = j.ProcessedCount
	m.CreatedCount = j.CreatedCount
	m.UpdatedCount = j.UpdatedCount
	m.FailedCount = j.FailedCount

	m.ErrorMessage = j.ErrorMessage
	m.CancelRequested = j.CancelRequested

	m.StartedAt = j.StartedAt
	m.FinishedAt = j.FinishedAt
	m.CreatedAt = j.CreatedAt
	m.UpdatedAt = j.UpdatedAt
}

// SyncJobModelFromDomain creates a new persistence model from a domain entity.
func SyncJobModelFromDomain(j *order.SyncJob) *SyncJobModel {
	m := &SyncJobModel{}
	m.FromDomain(j)
	return m
}

// SyncLogEntryModel is the persistence model for sync log entries.
// Rows are append-only; there is no update path.
type SyncLogEntryModel struct {
	ID        uuid.UUID          `gorm:"type:uuid;primary_key"`
	JobID     uuid.UUID          `gorm:"type:uuid;not null;index:idx_sync_log_job,priority:1"`
	Level     order.SyncLogLevel `gorm:"type:varchar(10);not null"`
	Message   string             `gorm:"type:text;not null"`
	Context   string             `gorm:"type:jsonb"`
	CreatedAt time.Time          `gorm:"not null;index:idx_sync_log_job,priority:2"`
}

// TableName returns the table name for GORM
func (SyncLogEntryModel) TableName() string {
	return "sync_log_entries"
}

// ToDomain converts the persistence model to a domain SyncLogEntry.
func (m *SyncLogEntryModel) ToDomain() *order.SyncLogEntry {
	return &order.SyncLogEntry{
		ID:        m.ID,
		JobID:     m.JobID,
		Level:     m.Level,
		Message:   m.Message,
		Context:   m.Context,
		CreatedAt: m.CreatedAt,
	}
}

// SyncLogEntryModelFromDomain creates a new persistence model from a domain entry.
func SyncLogEntryModelFromDomain(e *order.SyncLogEntry) *SyncLogEntryModel {
	return &SyncLogEntryModel{
		ID:        e.ID,
		JobID:     e.JobID,
		Level:     e.Level,
		Message:   e.Message,
		Context:   e.Context,
		CreatedAt: e.CreatedAt,
	}
}
