package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trafficlens/backend/internal/domain/order"
	"github.com/trafficlens/backend/internal/domain/shared"
	"github.com/trafficlens/backend/internal/infrastructure/persistence/models"
)

// GormSyncJobRepository implements order.SyncJobRepository using GORM
type GormSyncJobRepository struct {
	db *gorm.DB
}

// NewGormSyncJobRepository creates a new GormSyncJobRepository
func NewGormSyncJobRepository(db *gorm.DB) *GormSyncJobRepository {
	return &GormSyncJobRepository{db: db}
}

// Save creates or updates a job
func (r *GormSyncJobRepository) Save(ctx context.Context, job *order.SyncJob) error {
	model := models.SyncJobModelFromDomain(job)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByID finds a job by its ID
func (r *GormSyncJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.SyncJob, error) {
	var model models.SyncJobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists jobs for a tenant matching the filter, newest first
func (r *GormSyncJobRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter order.SyncJobFilter) ([]order.SyncJob, error) {
	var jobModels []models.SyncJobModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.SyncJobModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Order("created_at DESC").Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]order.SyncJob, len(jobModels))
	for i, model := range jobModels {
		jobs[i] = *model.ToDomain()
	}
	return jobs, nil
}

// Count counts jobs for a tenant matching the filter
func (r *GormSyncJobRepository) Count(ctx context.Context, tenantID uuid.UUID, filter order.SyncJobFilter) (int64, error) {
	var count int64
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.SyncJobModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// RequestCancel marks a job for cancellation. Only non-terminal jobs can
// be cancelled; marking a finished job is a no-op reported as not found.
func (r *GormSyncJobRepository) RequestCancel(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.SyncJobModel{}).
		Where("id = ? AND status IN ?", id, []string{
			order.SyncJobStatusPending.String(),
			order.SyncJobStatusRunning.String(),
		}).
		Update("cancel_requested", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// IsCancelRequested re-reads the cancellation flag from the database so a
// cancel issued from another process is observed promptly.
func (r *GormSyncJobRepository) IsCancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	var cancelRequested bool
	if err := r.db.WithContext(ctx).
		Model(&models.SyncJobModel{}).
		Where("id = ?", id).
		Select("cancel_requested").
		Scan(&cancelRequested).Error; err != nil {
		return false, err
	}
	return cancelRequested, nil
}

// AppendLog appends a log entry; entries are immutable once written
func (r *GormSyncJobRepository) AppendLog(ctx context.Context, entry *order.SyncLogEntry) error {
	model := models.SyncLogEntryModelFromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindLogs returns all log entries for a job in creation order
func (r *GormSyncJobRepository) FindLogs(ctx context.Context, jobID uuid.UUID) ([]order.SyncLogEntry, error) {
	var logModels []models.SyncLogEntryModel
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&logModels).Error; err != nil {
		return nil, err
	}

	entries := make([]order.SyncLogEntry, len(logModels))
	for i, model := range logModels {
		entries[i] = *model.ToDomain()
	}
	return entries, nil
}

// applyFilter applies filter criteria to the query
func (r *GormSyncJobRepository) applyFilter(query *gorm.DB, filter order.SyncJobFilter) *gorm.DB {
	if filter.ConnectionID != nil {
		query = query.Where("connection_id = ?", *filter.ConnectionID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// Ensure GormSyncJobRepository implements SyncJobRepository
var _ order.SyncJobRepository = (*GormSyncJobRepository)(nil)
