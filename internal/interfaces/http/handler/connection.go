package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	commerceapp "github.com/trafficlens/backend/internal/application/commerce"
	"github.com/trafficlens/backend/internal/domain/commerce"
	"github.com/trafficlens/backend/internal/interfaces/http/dto"
)

// ConnectionHandler handles store connection API endpoints
type ConnectionHandler struct {
	BaseHandler
	connService *commerceapp.ConnectionService
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(connService *commerceapp.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connService: connService}
}

// Create godoc
// @Summary      Register a store connection
// @Tags         connections
// @Accept       json
// @Produce      json
// @Router       /connections [post]
func (h *ConnectionHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req commerceapp.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	conn, err := h.connService.CreateConnection(c.Request.Context(), tenantID, req.Name, req.BaseURL, req.ConsumerKey, req.ConsumerSecret)
	if err != nil {
		h.handleConnectionError(c, err)
		return
	}

	h.Created(c, commerceapp.ToConnectionResponse(conn))
}

// Update godoc
// @Summary      Update a store connection
// @Tags         connections
// @Accept       json
// @Produce      json
// @Router       /connections/{id} [put]
func (h *ConnectionHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	var req commerceapp.UpdateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	conn, err := h.connService.UpdateConnection(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.handleConnectionError(c, err)
		return
	}

	h.Success(c, commerceapp.ToConnectionResponse(conn))
}

// Get godoc
// @Summary      Get a store connection
// @Tags         connections
// @Produce      json
// @Router       /connections/{id} [get]
func (h *ConnectionHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	conn, err := h.connService.GetConnection(c.Request.Context(), tenantID, id)
	if err != nil {
		h.handleConnectionError(c, err)
		return
	}

	h.Success(c, commerceapp.ToConnectionResponse(conn))
}

// List godoc
// @Summary      List store connections
// @Tags         connections
// @Produce      json
// @Router       /connections [get]
func (h *ConnectionHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	conns, err := h.connService.ListConnections(c.Request.Context(), tenantID)
	if err != nil {
		h.handleConnectionError(c, err)
		return
	}

	responses := make([]commerceapp.ConnectionResponse, 0, len(conns))
	for i := range conns {
		responses = append(responses, commerceapp.ToConnectionResponse(&conns[i]))
	}

	h.Success(c, responses)
}

// Delete godoc
// @Summary      Delete a store connection
// @Tags         connections
// @Router       /connections/{id} [delete]
func (h *ConnectionHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	if err := h.connService.DeleteConnection(c.Request.Context(), tenantID, id); err != nil {
		h.handleConnectionError(c, err)
		return
	}

	h.NoContent(c)
}

// Ping godoc
// @Summary      Verify connectivity and credentials for a connection
// @Tags         connections
// @Produce      json
// @Router       /connections/{id}/ping [post]
func (h *ConnectionHandler) Ping(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	if err := h.connService.Ping(c.Request.Context(), tenantID, id); err != nil {
		h.handleConnectionError(c, err)
		return
	}

	h.Success(c, gin.H{"status": "ok"})
}

// handleConnectionError maps commerce domain errors to HTTP responses
func (h *ConnectionHandler) handleConnectionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, commerce.ErrConnectionNotFound):
		h.NotFound(c, "Store connection not found")
	case errors.Is(err, commerce.ErrConnectionInvalidURL),
		errors.Is(err, commerce.ErrConnectionMissingCredentials):
		h.BadRequest(c, err.Error())
	case errors.Is(err, commerce.ErrPlatformAuthFailed):
		// Credentials are fixed on the store side, so point the caller at
		// the key-rotation guide.
		c.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponseWithHelp(
			"ERR_STORE_AUTH_FAILED",
			"Store rejected the configured credentials",
			getRequestID(c),
			"https://docs.trafficlens.io/stores/woocommerce-credentials",
		))
	case errors.Is(err, commerce.ErrPlatformUnavailable),
		errors.Is(err, commerce.ErrPlatformRequestFailed):
		h.ErrorWithCode(c, dto.ErrCodeStoreUnreachable, err.Error())
	default:
		h.HandleError(c, err)
	}
}
