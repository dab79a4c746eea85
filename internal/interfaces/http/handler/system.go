package handler

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Version is stamped at build time via -ldflags; "dev" otherwise.
var Version = "dev"

// SystemHandler serves the unauthenticated service endpoints. These sit
// outside the tenant middleware; they must never touch tenant data.
type SystemHandler struct {
	BaseHandler
	startedAt time.Time
}

func NewSystemHandler() *SystemHandler {
	return &SystemHandler{startedAt: time.Now()}
}

// SystemInfoResponse describes the running service.
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name      string    `json:"name" example:"TrafficLens API"`
	Version   string    `json:"version" example:"1.4.2"`
	GoVersion string    `json:"go_version" example:"go1.25.5"`
	StartedAt time.Time `json:"started_at" example:"2026-08-30T09:00:00Z"`
	Uptime    string    `json:"uptime" example:"1h30m45s"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get service information
// @Description  Returns the service version, Go runtime and uptime
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      "TrafficLens API",
		Version:   Version,
		GoVersion: runtime.Version(),
		StartedAt: h.startedAt.UTC(),
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// PingResponse answers liveness checks that want a body.
// @name HandlerPingResponse
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-08-31T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Description  Cheap liveness check with no dependencies
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
