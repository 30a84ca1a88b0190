package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// Gate builds role and assurance checks that share metrics and logging.
type Gate struct {
	metrics service.Metrics
	logger  logger.Logger
}

// NewGate creates a Gate.
func NewGate(metrics service.Metrics, log logger.Logger) *Gate {
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	return &Gate{metrics: metrics, logger: log.WithComponent("authorization")}
}

// RequireRoles passes callers holding at least one of roles.
func (g *Gate) RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			dto.SendError(c, errors.ErrUnauthorized())
			return
		}
		if !user.HasAnyRole(roles...) {
			g.metrics.RecordAuthorizationDenied(errors.CodeForbidden)
			g.logger.Warn(c.Request.Context(), "Insufficient permissions",
				logger.String("user_id", user.UserID),
				logger.Any("required_roles", roles),
				logger.Any("user_roles", user.Roles()),
			)
			dto.SendError(c, errors.ErrForbidden())
			return
		}
		c.Next()
	}
}

// RequireAssurance passes callers authenticated at level or higher.
func (g *Gate) RequireAssurance(level models.AssuranceLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			dto.SendError(c, errors.ErrUnauthorized())
			return
		}
		if !user.AssuranceLevel.Satisfies(level) {
			g.metrics.RecordAuthorizationDenied(errors.CodeInsufficientAssurance)
			g.logger.Warn(c.Request.Context(), "Insufficient assurance level",
				logger.String("user_id", user.UserID),
				logger.String("required", level.String()),
				logger.String("actual", user.AssuranceLevel.String()),
			)
			dto.SendError(c, errors.ErrInsufficientAssurance(level.String()))
			return
		}
		c.Next()
	}
}
