package dto

import (
	"encoding/json"

	"github.com/ronl/business-api/internal/domain/models"
)

// VariablesRequest is a body carrying client supplied variables, either plain
// JSON values or engine shaped {"value": ..., "type": ...} objects.
type VariablesRequest struct {
	Variables map[string]json.RawMessage `json:"variables"`
}

// StartProcessRequest starts a process instance. The business key is always
// derived server side.
type StartProcessRequest = VariablesRequest

// EvaluateDecisionRequest evaluates a decision.
type EvaluateDecisionRequest = VariablesRequest

// CompleteTaskRequest completes a user task.
type CompleteTaskRequest = VariablesRequest

// CancelProcessRequest cancels a process instance.
type CancelProcessRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CancelledProcess confirms a cancellation.
type CancelledProcess struct {
	Message           string `json:"message"`
	ProcessInstanceID string `json:"processInstanceId"`
}

// TaskDetails is a task together with its plain variable values.
type TaskDetails struct {
	Task      *models.Task           `json:"task"`
	Variables map[string]interface{} `json:"variables"`
}

// AuditLogResponse is returned by the audit query endpoint.
type AuditLogResponse struct {
	Entries []*models.AuditLogEntry `json:"entries"`
	Count   int                     `json:"count"`
}
