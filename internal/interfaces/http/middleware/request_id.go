package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ronl/business-api/pkg/constants"
)

const maxRequestIDLength = 128

// RequestID reuses the caller's X-Request-ID or generates one, and echoes it
// on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(constants.HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}

		c.Set(string(constants.ContextKeyRequestID), id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, id))
		c.Header(constants.HeaderRequestID, id)
		c.Next()
	}
}
