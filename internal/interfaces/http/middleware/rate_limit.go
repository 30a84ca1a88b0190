package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// RateLimitOptions selects how requests are bucketed.
type RateLimitOptions struct {
	// PerTenant buckets authenticated callers by tenant and address.
	PerTenant bool
}

// RateLimitMiddleware counts requests per client address, or per tenant and
// address when PerTenant is set and a user is attached. Limiter errors fail open.
func RateLimitMiddleware(limiter service.RateLimiter, opts RateLimitOptions, metrics service.Metrics, log logger.Logger) gin.HandlerFunc {
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	log = log.WithComponent("rate-limit")

	return func(c *gin.Context) {
		scope, key := "ip", c.ClientIP()
		if opts.PerTenant {
			if user, ok := CurrentUser(c); ok && user.TenantID != "" {
				scope, key = "tenant", user.TenantID+":"+c.ClientIP()
			}
		}

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Error(c.Request.Context(), "rate limiter failed", err, logger.String("scope", scope))
			c.Next()
			return
		}

		resetSeconds := int(math.Ceil(time.Until(decision.ResetAt).Seconds()))
		if resetSeconds < 0 {
			resetSeconds = 0
		}
		c.Header(constants.HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
		c.Header(constants.HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
		c.Header(constants.HeaderRateLimitReset, strconv.Itoa(resetSeconds))

		if !decision.Allowed {
			metrics.RecordRateLimitHit(scope)
			log.Warn(c.Request.Context(), "rate limit exceeded",
				logger.String("scope", scope),
				logger.String("identifier", key),
				logger.Int("limit", decision.Limit),
			)
			c.Header(constants.HeaderRetryAfter, strconv.Itoa(max(resetSeconds, 1)))
			dto.SendError(c, errors.ErrRateLimitExceeded())
			return
		}

		c.Next()
	}
}
