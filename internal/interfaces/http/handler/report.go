package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	reportapp "github.com/trafficlens/backend/internal/application/report"
	"github.com/trafficlens/backend/internal/domain/shared"
)

// ReportHandler handles channel performance report API endpoints
type ReportHandler struct {
	BaseHandler
	reportService *reportapp.ChannelPerformanceService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService *reportapp.ChannelPerformanceService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// ChannelPerformance godoc
// @Summary      Channel performance report for a window
// @Description  Per-channel orders, sessions, revenue and derived metrics,
// @Description  with period-over-period deltas against a comparison window
// @Description  (defaults to the equal-length preceding window).
// @Tags         reports
// @Produce      json
// @Router       /reports/channel-performance [get]
func (h *ReportHandler) ChannelPerformance(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	current, ok := h.parseWindow(c, "after", "before")
	if !ok {
		return
	}

	var comparison reportapp.Window
	if c.Query("comparison_after") != "" || c.Query("comparison_before") != "" {
		comparison, ok = h.parseWindow(c, "comparison_after", "comparison_before")
		if !ok {
			return
		}
	}

	result, err := h.reportService.Report(c.Request.Context(), tenantID, current, comparison)
	if err != nil {
		h.handleReportError(c, err)
		return
	}

	h.Success(c, result)
}

// UnclassifiedPairs godoc
// @Summary      Source/medium pairs that fell through to the fallback channel
// @Description  Ranked by order volume so operators know which rules to add.
// @Tags         reports
// @Produce      json
// @Router       /reports/unclassified-pairs [get]
func (h *ReportHandler) UnclassifiedPairs(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	window, ok := h.parseWindow(c, "after", "before")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.BadRequest(c, "Invalid limit")
			return
		}
	}

	pairs, err := h.reportService.UnclassifiedPairs(c.Request.Context(), tenantID, window, limit)
	if err != nil {
		h.handleReportError(c, err)
		return
	}

	h.Success(c, pairs)
}

// parseWindow reads a pair of RFC3339 query params into a report window.
// On failure it writes the error response and returns ok=false.
func (h *ReportHandler) parseWindow(c *gin.Context, afterParam, beforeParam string) (reportapp.Window, bool) {
	after, err := time.Parse(time.RFC3339, c.Query(afterParam))
	if err != nil {
		h.BadRequest(c, "Invalid or missing "+afterParam+" (expected RFC3339)")
		return reportapp.Window{}, false
	}
	before, err := time.Parse(time.RFC3339, c.Query(beforeParam))
	if err != nil {
		h.BadRequest(c, "Invalid or missing "+beforeParam+" (expected RFC3339)")
		return reportapp.Window{}, false
	}
	return reportapp.Window{After: after, Before: before}, true
}

// handleReportError maps report errors to HTTP responses
func (h *ReportHandler) handleReportError(c *gin.Context, err error) {
	if errors.Is(err, shared.ErrInvalidInput) {
		h.BadRequest(c, "Window start must be before window end")
		return
	}
	h.HandleError(c, err)
}
