package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/application/service"
	"github.com/ronl/business-api/pkg/logger"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	healthService service.HealthAppService
	log           logger.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(healthService service.HealthAppService, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		healthService: healthService,
		log:           log.WithComponent("health-handler"),
	}
}

// HealthCheck godoc
// @Summary      Health Check
// @Description  Probes the identity broker and the workflow engine.
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.APIResponse
// @Failure      503  {object}  dto.APIResponse
// @Router       /v1/health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	report := h.healthService.Check(c.Request.Context())

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, &dto.APIResponse{Success: report.Healthy(), Data: report})
}

// LivenessCheck godoc
// @Summary      Liveness Check
// @Description  Answers as long as the process serves requests.
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.APIResponse
// @Router       /v1/health/live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	dto.SendSuccess(c, http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
	})
}

// ReadinessCheck godoc
// @Summary      Readiness Check
// @Description  Checks that the workflow engine is reachable.
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.APIResponse
// @Failure      503  {object}  dto.APIResponse
// @Router       /v1/health/ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if err := h.healthService.Ready(c.Request.Context()); err != nil {
		h.log.Warn(c.Request.Context(), "Service not ready", logger.Error(err))
		c.JSON(http.StatusServiceUnavailable, &dto.APIResponse{
			Success: false,
			Data: gin.H{
				"status":    "not ready",
				"reason":    "Operaton unavailable",
				"timestamp": time.Now().UTC(),
			},
		})
		return
	}
	dto.SendSuccess(c, http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
	})
}
