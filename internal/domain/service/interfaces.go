package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/ronl/business-api/internal/domain/models"
)

// WorkflowEngine is the gateway to the external BPMN/DMN engine. Every call is
// bounded by the gateway's own timeout.
type WorkflowEngine interface {
	StartProcess(ctx context.Context, processKey string, req *models.StartProcessRequest) (*models.ProcessInstance, error)
	GetProcessInstance(ctx context.Context, processInstanceID string) (*models.ProcessInstance, error)
	GetProcessVariables(ctx context.Context, processInstanceID string) (models.VariableMap, error)
	DeleteProcessInstance(ctx context.Context, processInstanceID, reason string) error

	EvaluateDecision(ctx context.Context, decisionKey string, variables models.VariableMap) (json.RawMessage, error)
	GetDecisionDefinition(ctx context.Context, decisionKey string) (json.RawMessage, error)

	// ListTasks filters on the municipality process variable unless tenantID is empty.
	ListTasks(ctx context.Context, assignee, tenantID string) ([]models.Task, error)
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	GetTaskVariables(ctx context.Context, taskID string) (models.VariableMap, error)
	ClaimTask(ctx context.Context, taskID, userID string) error
	CompleteTask(ctx context.Context, taskID string, req *models.CompleteTaskRequest) error

	Ping(ctx context.Context) error
}

// UpstreamFailure is implemented by gateway errors. UpstreamStatus is 0 when no
// response arrived.
type UpstreamFailure interface {
	error
	UpstreamStatus() int
	UpstreamMessage() string
	UpstreamBody() json.RawMessage
}

// UpstreamStatus returns the upstream HTTP status carried by err, or 0.
func UpstreamStatus(err error) int {
	var failure UpstreamFailure
	if stderrors.As(err, &failure) {
		return failure.UpstreamStatus()
	}
	return 0
}

// PopulationRegistry is the gateway to the BRP personen API.
type PopulationRegistry interface {
	// FetchPersons forwards a personen query and returns the upstream body.
	FetchPersons(ctx context.Context, query json.RawMessage) (json.RawMessage, error)
}

// AuditSink receives audit entries for durable persistence. Implementations are
// called from a background worker, never from the request path.
type AuditSink interface {
	Name() string
	Write(ctx context.Context, entry *models.AuditLogEntry) error
}

// AuditQuery filters audit entries.
type AuditQuery struct {
	TenantID string
	UserID   string
	Since    time.Time
	Limit    int
}

// AuditReader reads back recent audit entries, newest first.
type AuditReader interface {
	Recent(ctx context.Context, query AuditQuery) ([]*models.AuditLogEntry, error)
}

// RateLimitDecision is the outcome of a rate limit check.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter counts requests per key in a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*RateLimitDecision, error)
}

// SecretStore resolves credentials by logical path.
type SecretStore interface {
	ReadSecret(ctx context.Context, path string) (map[string]string, error)
}

// DependencyProbe checks one external dependency for the health surface.
type DependencyProbe interface {
	Name() string
	Probe(ctx context.Context) error
}
