package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/internal/infrastructure/crypto"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// TokenVerifier turns a raw bearer token into an authenticated user.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*models.AuthenticatedUser, error)
}

// extractBearer extracts the token from the Authorization header.
func extractBearer(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, strings.TrimSpace(constants.BearerPrefix)) {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireJWT rejects requests without a valid bearer token and attaches the
// authenticated user and auth context for downstream handlers.
func RequireJWT(verifier TokenVerifier, metrics service.Metrics, log logger.Logger) gin.HandlerFunc {
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	log = log.WithComponent("jwt-auth")

	return func(c *gin.Context) {
		tokenStr := extractBearer(c.GetHeader(constants.HeaderAuthorization))
		if tokenStr == "" {
			metrics.RecordAuthentication("failure", "missing_token")
			log.Warn(c.Request.Context(), "Missing bearer token",
				logger.String("path", c.Request.URL.Path),
				logger.String("client_ip", c.ClientIP()),
			)
			dto.SendError(c, errors.ErrMissingToken())
			return
		}

		user, err := verifier.Verify(c.Request.Context(), tokenStr)
		if err != nil {
			kind := string(crypto.KindOf(err))
			if kind == "" {
				kind = "unknown"
			}
			metrics.RecordAuthentication("failure", kind)
			log.Warn(c.Request.Context(), "JWT verification failed",
				logger.String("reason", kind),
				logger.Error(err),
				logger.String("path", c.Request.URL.Path),
			)
			dto.SendError(c, errors.ErrInvalidToken().WithCause(err))
			return
		}

		metrics.RecordAuthentication("success", "")
		setUser(c, user)
		log.Debug(c.Request.Context(), "User authenticated",
			logger.String("user_id", user.UserID),
			logger.String("tenant_id", user.TenantID),
			logger.String("loa", user.AssuranceLevel.String()),
		)
		c.Next()
	}
}

// OptionalJWT attaches the user when a valid token is present and never fails.
func OptionalJWT(verifier TokenVerifier, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractBearer(c.GetHeader(constants.HeaderAuthorization))
		if tokenStr != "" {
			if user, err := verifier.Verify(c.Request.Context(), tokenStr); err == nil {
				setUser(c, user)
			} else {
				log.Debug(c.Request.Context(), "Ignoring invalid optional token", logger.Error(err))
			}
		}
		c.Next()
	}
}
