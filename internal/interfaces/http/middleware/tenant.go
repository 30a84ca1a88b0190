package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// TenantGate scopes requests to the caller's municipality.
type TenantGate struct {
	isolation *service.TenantIsolation
	metrics   service.Metrics
	logger    logger.Logger
}

// NewTenantGate creates a TenantGate.
func NewTenantGate(isolation *service.TenantIsolation, metrics service.Metrics, log logger.Logger) *TenantGate {
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	return &TenantGate{isolation: isolation, metrics: metrics, logger: log.WithComponent("tenant")}
}

// Guard requires an authenticated user with a municipality and propagates the
// tenant into the request context. With isolation disabled it passes through.
func (g *TenantGate) Guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.isolation.Enabled() {
			c.Next()
			return
		}

		user, ok := CurrentUser(c)
		if !ok {
			g.logger.Error(c.Request.Context(), "Tenant guard reached without authenticated user", nil)
			dto.SendError(c, errors.ErrUnauthorized())
			return
		}
		if user.TenantID == "" {
			g.metrics.RecordAuthorizationDenied(errors.CodeMissingTenant)
			g.logger.Warn(c.Request.Context(), "Missing tenant in user context", logger.String("user_id", user.UserID))
			dto.SendError(c, errors.ErrMissingTenant())
			return
		}

		if authCtx, ok := CurrentAuthContext(c); ok {
			authCtx.TenantID = user.TenantID
		}
		c.Set(string(constants.ContextKeyTenantID), user.TenantID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), constants.ContextKeyTenantID, user.TenantID))
		c.Next()
	}
}

// TenantParam requires the route parameter name to equal the caller's tenant.
func (g *TenantGate) TenantParam(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			dto.SendError(c, errors.ErrUnauthorized())
			return
		}
		requested := c.Param(name)
		if err := g.isolation.CheckResourceTenant(user.TenantID, requested); err != nil {
			g.metrics.RecordTenantViolation(user.TenantID)
			g.logger.Warn(c.Request.Context(), "Tenant mismatch detected",
				logger.String("user_id", user.UserID),
				logger.String("user_tenant", user.TenantID),
				logger.String("requested_tenant", requested),
				logger.String("path", c.Request.URL.Path),
			)
			dto.SendError(c, err)
			return
		}
		c.Next()
	}
}
