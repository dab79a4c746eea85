package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trafficlens/backend/internal/interfaces/http/dto"
)

// BodyLimit caps the request body size. The API only ever receives small
// JSON documents (connections, rules, sync triggers); anything larger is a
// mistake or abuse.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodeBadRequest, "Request body exceeds maximum allowed size"))
			return
		}

		// Chunked requests carry no Content-Length; the limited reader
		// catches those while streaming
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
