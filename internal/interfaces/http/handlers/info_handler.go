package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
)

// InfoHandler serves the root document and unknown routes.
type InfoHandler struct {
	version     string
	environment string
	tenantMode  bool
	auditMode   bool
}

// NewInfoHandler creates an InfoHandler.
func NewInfoHandler(version, environment string, tenantIsolation, auditLogging bool) *InfoHandler {
	return &InfoHandler{
		version:     version,
		environment: environment,
		tenantMode:  tenantIsolation,
		auditMode:   auditLogging,
	}
}

// Root describes the service and its endpoint groups.
// GET /
func (h *InfoHandler) Root(c *gin.Context) {
	prefix := "/" + constants.APIVersion
	dto.SendSuccess(c, http.StatusOK, gin.H{
		"name":          constants.DisplayName,
		"version":       h.version,
		"status":        "running",
		"environment":   h.environment,
		"documentation": prefix + "/health",
		"endpoints": gin.H{
			"health":   prefix + "/health",
			"process":  prefix + "/process",
			"decision": prefix + "/decision",
			"tasks":    prefix + "/task",
			"brp":      prefix + "/brp/personen",
		},
		"security": gin.H{
			"authentication":  "OIDC bearer token",
			"tenantIsolation": h.tenantMode,
			"auditLogging":    h.auditMode,
		},
	})
}

// NotFound answers unknown routes.
func (h *InfoHandler) NotFound(c *gin.Context) {
	dto.SendError(c, errors.ErrNotFound("Endpoint not found"))
}
