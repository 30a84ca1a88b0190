package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/application/service"
	"github.com/ronl/business-api/internal/interfaces/http/middleware"
	"github.com/ronl/business-api/pkg/logger"
)

// TaskHandler serves /v1/task.
type TaskHandler struct {
	taskService service.TaskAppService
	logger      logger.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(taskService service.TaskAppService, log logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      log.WithComponent("task-handler"),
	}
}

// ListTasks lists the tasks assigned to the caller within their municipality.
// GET /v1/task
func (h *TaskHandler) ListTasks(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.ListMine(c.Request.Context(), user)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, tasks)
}

// GetTask returns a task with its variables.
// GET /v1/task/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := resourceParam(c, "id")
	if !ok {
		return
	}

	details, err := h.taskService.Get(c.Request.Context(), user, id)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, details)
}

// ClaimTask assigns a task to the caller.
// POST /v1/task/:id/claim
func (h *TaskHandler) ClaimTask(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := resourceParam(c, "id")
	if !ok {
		return
	}
	middleware.SetAuditAction(c, "task.claim")
	middleware.AddAuditDetails(c, map[string]interface{}{"taskId": id})

	if err := h.taskService.Claim(c.Request.Context(), user, id); err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, gin.H{"message": "Task claimed", "taskId": id})
}

// CompleteTask completes a task with the submitted variables.
// POST /v1/task/:id/complete
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := resourceParam(c, "id")
	if !ok {
		return
	}
	middleware.SetAuditAction(c, "task.complete")

	var req dto.CompleteTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	middleware.AddAuditDetails(c, map[string]interface{}{"taskId": id, "variableCount": len(req.Variables)})

	if err := h.taskService.Complete(c.Request.Context(), user, id, &req); err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, gin.H{"message": "Task completed", "taskId": id})
}
