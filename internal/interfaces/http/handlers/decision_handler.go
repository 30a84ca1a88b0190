package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/application/service"
	"github.com/ronl/business-api/internal/interfaces/http/middleware"
	"github.com/ronl/business-api/pkg/logger"
)

// DecisionHandler serves /v1/decision.
type DecisionHandler struct {
	decisionService service.DecisionAppService
	logger          logger.Logger
}

// NewDecisionHandler creates a DecisionHandler.
func NewDecisionHandler(decisionService service.DecisionAppService, log logger.Logger) *DecisionHandler {
	return &DecisionHandler{
		decisionService: decisionService,
		logger:          log.WithComponent("decision-handler"),
	}
}

// Evaluate evaluates the decision named by :id. The engine's result list is
// returned unchanged.
// POST /v1/decision/:id/evaluate
func (h *DecisionHandler) Evaluate(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	key, ok := resourceParam(c, "id")
	if !ok {
		return
	}
	middleware.SetAuditAction(c, "decision.evaluate."+key)

	var req dto.EvaluateDecisionRequest
	if !bindJSON(c, &req) {
		return
	}

	result, count, err := h.decisionService.Evaluate(c.Request.Context(), user, key, &req)
	middleware.AddAuditDetails(c, map[string]interface{}{"decisionKey": key, "variableCount": count})
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, result)
}

// GetDefinition returns the latest definition of a decision.
// GET /v1/decision/:id
func (h *DecisionHandler) GetDefinition(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	key, ok := resourceParam(c, "id")
	if !ok {
		return
	}

	definition, err := h.decisionService.GetDefinition(c.Request.Context(), key)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, definition)
}
