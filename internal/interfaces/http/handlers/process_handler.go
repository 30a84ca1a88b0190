package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/application/service"
	"github.com/ronl/business-api/internal/interfaces/http/middleware"
	"github.com/ronl/business-api/pkg/logger"
	"github.com/ronl/business-api/pkg/utils"
)

// ProcessHandler serves /v1/process.
type ProcessHandler struct {
	processService service.ProcessAppService
	logger         logger.Logger
}

// NewProcessHandler creates a ProcessHandler.
func NewProcessHandler(processService service.ProcessAppService, log logger.Logger) *ProcessHandler {
	return &ProcessHandler{
		processService: processService,
		logger:         log.WithComponent("process-handler"),
	}
}

// StartProcess starts an instance of the process definition named by :id.
// POST /v1/process/:id/start
func (h *ProcessHandler) StartProcess(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	processKey, ok := resourceParam(c, "id")
	if !ok {
		return
	}
	middleware.SetAuditAction(c, "process.start."+processKey)

	var req dto.StartProcessRequest
	if !bindJSON(c, &req) {
		return
	}

	started, err := h.processService.StartProcess(c.Request.Context(), user, processKey, &req)
	if err != nil {
		dto.SendError(c, err)
		return
	}

	middleware.AddAuditDetails(c, map[string]interface{}{"processInstanceId": started.ProcessInstanceID})
	dto.SendSuccess(c, http.StatusCreated, started)
}

// GetStatus returns the lifecycle state of a process instance.
// GET /v1/process/:id/status
func (h *ProcessHandler) GetStatus(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := resourceParam(c, "id")
	if !ok {
		return
	}

	view, err := h.processService.GetStatus(c.Request.Context(), user, id)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, view)
}

// GetVariables returns the plain variable values of a process instance.
// GET /v1/process/:id/variables
func (h *ProcessHandler) GetVariables(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := resourceParam(c, "id")
	if !ok {
		return
	}

	vars, err := h.processService.GetVariables(c.Request.Context(), user, id)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, vars)
}

// CancelProcess deletes a process instance owned by the caller's municipality.
// DELETE /v1/process/:id
func (h *ProcessHandler) CancelProcess(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := resourceParam(c, "id")
	if !ok {
		return
	}
	middleware.SetAuditAction(c, "process.delete")

	var req dto.CancelProcessRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		dto.SendError(c, err)
		return
	}
	middleware.AddAuditDetails(c, map[string]interface{}{"processInstanceId": id, "reason": req.Reason})

	cancelled, err := h.processService.Cancel(c.Request.Context(), user, id, req.Reason)
	if err != nil {
		dto.SendError(c, err)
		return
	}

	h.logger.Info(c.Request.Context(), "Process instance cancelled",
		logger.String("process_instance_id", id),
		logger.String("tenant_id", user.TenantID),
	)
	dto.SendSuccess(c, http.StatusOK, cancelled)
}
