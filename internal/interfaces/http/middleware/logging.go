package middleware

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// AccessLog logs one line per request once the handler chain has finished.
func AccessLog(log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Int64("latency_ms", time.Since(start).Milliseconds()),
			logger.String("client_ip", c.ClientIP()),
			logger.String("user_agent", c.Request.UserAgent()),
		}
		if user, ok := CurrentUser(c); ok {
			fields = append(fields, logger.String("user_id", user.UserID), logger.String("tenant_id", user.TenantID))
		}
		var lastErr error
		if len(c.Errors) > 0 {
			lastErr = c.Errors.Last().Err
			fields = append(fields, logger.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error(c.Request.Context(), "Request failed", lastErr, fields...)
		case status >= 400:
			log.Warn(c.Request.Context(), "Request rejected", fields...)
		default:
			log.Info(c.Request.Context(), "Request processed", fields...)
		}
	}
}

// Recovery turns a panic in the handler chain into a 500 INTERNAL_ERROR. A
// panic unwinds past Audit, so the audit entry is finalized here.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error(c.Request.Context(), "Panic recovered", fmt.Errorf("panic: %v", r),
					logger.String("path", c.Request.URL.Path),
					logger.String("stack", string(debug.Stack())),
				)
				if !c.Writer.Written() {
					dto.SendError(c, errors.ErrInternal())
				}
				c.Abort()
				FinalizeAudit(c)
			}
		}()
		c.Next()
	}
}
