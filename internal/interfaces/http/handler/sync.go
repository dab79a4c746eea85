package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	commerceapp "github.com/trafficlens/backend/internal/application/commerce"
	syncapp "github.com/trafficlens/backend/internal/application/sync"
	"github.com/trafficlens/backend/internal/domain/commerce"
	"github.com/trafficlens/backend/internal/domain/order"
	"github.com/trafficlens/backend/internal/domain/shared"
	"github.com/trafficlens/backend/internal/interfaces/http/dto"
)

// SyncHandler handles order sync API endpoints
type SyncHandler struct {
	BaseHandler
	syncService      *syncapp.SyncService
	validatorService *syncapp.ValidatorService
	connService      *commerceapp.ConnectionService
	logger           *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(
	syncService *syncapp.SyncService,
	validatorService *syncapp.ValidatorService,
	connService *commerceapp.ConnectionService,
	logger *zap.Logger,
) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{
		syncService:      syncService,
		validatorService: validatorService,
		connService:      connService,
		logger:           logger,
	}
}

// Start godoc
// @Summary      Start an order sync job
// @Description  Creates a sync job for a connection and window and runs it in
// @Description  the background. Poll the job endpoint for progress.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Router       /sync/jobs [post]
func (h *SyncHandler) Start(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req syncapp.StartSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	// Resolve through the tenant-scoped lookup so one tenant cannot
	// trigger syncs against another tenant's connection.
	if _, err := h.connService.GetConnection(c.Request.Context(), tenantID, req.ConnectionID); err != nil {
		h.handleSyncError(c, err)
		return
	}

	job, err := h.syncService.CreateJob(c.Request.Context(), req.ConnectionID, req.After, req.Before)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	// The request context dies with the response; the job keeps going.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := h.syncService.RunJob(ctx, job.ID); err != nil {
			h.logger.Error("Background sync job failed",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		}
	}()

	h.Created(c, syncapp.ToSyncJobResponse(job))
}

// Get godoc
// @Summary      Get a sync job with its log trail
// @Tags         sync
// @Produce      json
// @Router       /sync/jobs/{id} [get]
func (h *SyncHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	job, logs, err := h.syncService.GetJob(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	entries := make([]syncapp.SyncLogEntryResponse, 0, len(logs))
	for i := range logs {
		entries = append(entries, syncapp.ToSyncLogEntryResponse(&logs[i]))
	}

	h.Success(c, gin.H{
		"job":  syncapp.ToSyncJobResponse(job),
		"logs": entries,
	})
}

// List godoc
// @Summary      List sync jobs
// @Tags         sync
// @Produce      json
// @Router       /sync/jobs [get]
func (h *SyncHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var query syncapp.JobListFilter
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindingError(c, err)
		return
	}

	filter := order.SyncJobFilter{
		ConnectionID: query.ConnectionID,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	if query.Status != "" {
		status := order.SyncJobStatus(query.Status)
		if !status.IsValid() {
			h.BadRequest(c, "Unknown job status")
			return
		}
		filter.Status = &status
	}

	jobs, total, err := h.syncService.ListJobs(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	responses := make([]syncapp.SyncJobResponse, 0, len(jobs))
	for i := range jobs {
		responses = append(responses, syncapp.ToSyncJobResponse(&jobs[i]))
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, responses, total, page, pageSize)
}

// Cancel godoc
// @Summary      Request cancellation of a running sync job
// @Description  Cancellation is cooperative; the engine observes the request
// @Description  at the next page or order boundary.
// @Tags         sync
// @Produce      json
// @Router       /sync/jobs/{id}/cancel [post]
func (h *SyncHandler) Cancel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	if err := h.syncService.Cancel(c.Request.Context(), tenantID, jobID); err != nil {
		h.handleSyncError(c, err)
		return
	}

	h.Success(c, gin.H{"status": "cancel_requested"})
}

// Validate godoc
// @Summary      Validate sync completeness for a connection and window
// @Description  Compares remote order IDs against local ones in both
// @Description  directions and reports an accuracy ratio.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Router       /sync/validate [post]
func (h *SyncHandler) Validate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req syncapp.StartSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	if _, err := h.connService.GetConnection(c.Request.Context(), tenantID, req.ConnectionID); err != nil {
		h.handleSyncError(c, err)
		return
	}

	report, err := h.validatorService.Validate(c.Request.Context(), req.ConnectionID, req.After, req.Before)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	h.Success(c, report)
}

// handleSyncError maps sync errors to HTTP responses
func (h *SyncHandler) handleSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, syncapp.ErrJobNotFound):
		h.NotFound(c, "Sync job not found")
	case errors.Is(err, syncapp.ErrJobNotPending):
		h.Conflict(c, "Job has already run")
	case errors.Is(err, commerce.ErrConnectionNotFound):
		h.NotFound(c, "Store connection not found")
	case errors.Is(err, commerce.ErrConnectionDisabled):
		h.UnprocessableEntity(c, "ERR_CONNECTION_DISABLED", "Store connection is disabled")
	case errors.Is(err, shared.ErrInvalidInput):
		h.BadRequest(c, "Window start must be before window end")
	case errors.Is(err, commerce.ErrPlatformUnavailable),
		errors.Is(err, commerce.ErrPlatformRequestFailed):
		h.ErrorWithCode(c, dto.ErrCodeStoreUnreachable, err.Error())
	default:
		h.HandleError(c, err)
	}
}
