// Package middleware contains the gin middleware chain: request correlation,
// bearer authentication, role / assurance / tenant gates, auditing, rate
// limiting and the ambient HTTP concerns.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/pkg/constants"
)

// CurrentUser returns the user attached by RequireJWT or OptionalJWT.
func CurrentUser(c *gin.Context) (*models.AuthenticatedUser, bool) {
	v, ok := c.Get(string(constants.ContextKeyUser))
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.AuthenticatedUser)
	return user, ok && user != nil
}

// CurrentAuthContext returns the auth context of the request, if any.
func CurrentAuthContext(c *gin.Context) (*models.AuthContext, bool) {
	v, ok := c.Get(string(constants.ContextKeyAuthContext))
	if !ok {
		return nil, false
	}
	authCtx, ok := v.(*models.AuthContext)
	return authCtx, ok && authCtx != nil
}

// GetRequestID returns the correlation id assigned by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(string(constants.ContextKeyRequestID))
}

// SetAuditAction names the audit action of the current request.
func SetAuditAction(c *gin.Context, action string) {
	c.Set(string(constants.ContextKeyAuditAction), action)
}

// AddAuditDetails merges details into the audit entry of the current request.
func AddAuditDetails(c *gin.Context, details map[string]interface{}) {
	existing := auditDetails(c)
	if existing == nil {
		existing = make(map[string]interface{}, len(details))
		c.Set(string(constants.ContextKeyAuditDetails), existing)
	}
	for k, v := range details {
		existing[k] = v
	}
}

func auditDetails(c *gin.Context) map[string]interface{} {
	v, ok := c.Get(string(constants.ContextKeyAuditDetails))
	if !ok {
		return nil
	}
	details, _ := v.(map[string]interface{})
	return details
}

// setUser attaches the user to both the gin context and the request context.
func setUser(c *gin.Context, user *models.AuthenticatedUser) *models.AuthContext {
	authCtx := models.NewAuthContext(user, GetRequestID(c), c.ClientIP(), c.Request.UserAgent())
	c.Set(string(constants.ContextKeyUser), user)
	c.Set(string(constants.ContextKeyAuthContext), authCtx)
	c.Set(string(constants.ContextKeyUserID), user.UserID)
	c.Set(string(constants.ContextKeyTenantID), user.TenantID)

	ctx := context.WithValue(c.Request.Context(), constants.ContextKeyUserID, user.UserID)
	ctx = context.WithValue(ctx, constants.ContextKeyTenantID, user.TenantID)
	c.Request = c.Request.WithContext(ctx)
	return authCtx
}
