// Package operaton is the REST gateway to the Operaton BPMN/DMN engine.
package operaton

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/internal/infrastructure/monitoring"
	"github.com/ronl/business-api/pkg/logger"
)

const (
	gatewayName      = "operaton"
	maxResponseBytes = 4 << 20
	defaultTimeout   = 30 * time.Second

	// DefaultDeleteReason is sent when a cancellation carries no reason.
	DefaultDeleteReason = "Cancelled by user"
)

// GatewayError is a failed engine call. StatusCode is 0 when no response arrived.
type GatewayError struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("operaton %s: %v", e.Operation, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("operaton %s: HTTP %d: %s", e.Operation, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("operaton %s: HTTP %d", e.Operation, e.StatusCode)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) UpstreamStatus() int { return e.StatusCode }

func (e *GatewayError) UpstreamMessage() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.StatusCode)
}

func (e *GatewayError) UpstreamBody() json.RawMessage { return nil }

// IsNotFound reports whether err is an engine 404.
func IsNotFound(err error) bool {
	var gwErr *GatewayError
	return stderrors.As(err, &gwErr) && gwErr.StatusCode == http.StatusNotFound
}

// Config configures a Client.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Username string
	Password string
	// Tracing defaults to the global tracer provider.
	Tracing *monitoring.TracingManager
}

// Client calls the engine's REST API. Basic auth is sent only when both
// username and password are set.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracing    *monitoring.TracingManager
	metrics    service.Metrics
	logger     logger.Logger

	mu       sync.RWMutex
	username string
	password string
}

// NewClient creates an engine client.
func NewClient(cfg Config, metrics service.Metrics, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	tracing := cfg.Tracing
	if tracing == nil {
		tracing = monitoring.GlobalTracing()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tracing:    tracing,
		metrics:    metrics,
		logger:     log.WithComponent("operaton"),
		username:   cfg.Username,
		password:   cfg.Password,
	}
}

// SetCredentials replaces the basic auth credentials, e.g. after reading them from a secret store.
func (c *Client) SetCredentials(username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = username
	c.password = password
}

func (c *Client) credentials() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username, c.password
}

// ================================================================================
// Processes
// ================================================================================

func (c *Client) StartProcess(ctx context.Context, processKey string, req *models.StartProcessRequest) (*models.ProcessInstance, error) {
	var instance models.ProcessInstance
	path := "/process-definition/key/" + url.PathEscape(processKey) + "/start"
	if err := c.do(ctx, "start_process", http.MethodPost, path, nil, req, &instance); err != nil {
		return nil, err
	}
	c.logger.Info(ctx, "Process started",
		logger.String("process_key", processKey),
		logger.String("process_instance_id", instance.ID),
		logger.String("business_key", instance.BusinessKey),
	)
	return &instance, nil
}

func (c *Client) GetProcessInstance(ctx context.Context, processInstanceID string) (*models.ProcessInstance, error) {
	var instance models.ProcessInstance
	path := "/process-instance/" + url.PathEscape(processInstanceID)
	if err := c.do(ctx, "get_process_instance", http.MethodGet, path, nil, nil, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

func (c *Client) GetProcessVariables(ctx context.Context, processInstanceID string) (models.VariableMap, error) {
	vars := models.VariableMap{}
	path := "/process-instance/" + url.PathEscape(processInstanceID) + "/variables"
	if err := c.do(ctx, "get_process_variables", http.MethodGet, path, nil, nil, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

func (c *Client) DeleteProcessInstance(ctx context.Context, processInstanceID, reason string) error {
	if reason == "" {
		reason = DefaultDeleteReason
	}
	query := url.Values{}
	query.Set("skipCustomListeners", "false")
	query.Set("skipIoMappings", "false")
	path := "/process-instance/" + url.PathEscape(processInstanceID)
	body := map[string]string{"reason": reason}
	if err := c.do(ctx, "delete_process_instance", http.MethodDelete, path, query, body, nil); err != nil {
		return err
	}
	c.logger.Info(ctx, "Process instance deleted",
		logger.String("process_instance_id", processInstanceID),
		logger.String("reason", reason),
	)
	return nil
}

// ================================================================================
// Decisions
// ================================================================================

// EvaluateDecision returns the engine's result list unchanged.
func (c *Client) EvaluateDecision(ctx context.Context, decisionKey string, variables models.VariableMap) (json.RawMessage, error) {
	var result json.RawMessage
	path := "/decision-definition/key/" + url.PathEscape(decisionKey) + "/evaluate"
	body := struct {
		Variables models.VariableMap `json:"variables"`
	}{Variables: variables}
	if err := c.do(ctx, "evaluate_decision", http.MethodPost, path, nil, body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetDecisionDefinition(ctx context.Context, decisionKey string) (json.RawMessage, error) {
	var definition json.RawMessage
	path := "/decision-definition/key/" + url.PathEscape(decisionKey)
	if err := c.do(ctx, "get_decision_definition", http.MethodGet, path, nil, nil, &definition); err != nil {
		return nil, err
	}
	return definition, nil
}

// ================================================================================
// Tasks
// ================================================================================

// ListTasks returns the tasks assigned to assignee in processes owned by
// tenantID. An empty tenantID applies no municipality filter.
func (c *Client) ListTasks(ctx context.Context, assignee, tenantID string) ([]models.Task, error) {
	query := url.Values{}
	query.Set("assignee", assignee)
	if tenantID != "" {
		query.Set("processVariables", "municipality_eq_"+tenantID)
	}
	tasks := []models.Task{}
	if err := c.do(ctx, "list_tasks", http.MethodGet, "/task", query, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, "get_task", http.MethodGet, "/task/"+url.PathEscape(taskID), nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) GetTaskVariables(ctx context.Context, taskID string) (models.VariableMap, error) {
	vars := models.VariableMap{}
	path := "/task/" + url.PathEscape(taskID) + "/variables"
	if err := c.do(ctx, "get_task_variables", http.MethodGet, path, nil, nil, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

func (c *Client) ClaimTask(ctx context.Context, taskID, userID string) error {
	path := "/task/" + url.PathEscape(taskID) + "/claim"
	if err := c.do(ctx, "claim_task", http.MethodPost, path, nil, map[string]string{"userId": userID}, nil); err != nil {
		return err
	}
	c.logger.Info(ctx, "Task claimed", logger.String("task_id", taskID), logger.String("user_id", userID))
	return nil
}

func (c *Client) CompleteTask(ctx context.Context, taskID string, req *models.CompleteTaskRequest) error {
	if req == nil {
		req = &models.CompleteTaskRequest{}
	}
	if req.Variables == nil {
		req.Variables = models.VariableMap{}
	}
	path := "/task/" + url.PathEscape(taskID) + "/complete"
	if err := c.do(ctx, "complete_task", http.MethodPost, path, nil, req, nil); err != nil {
		return err
	}
	c.logger.Info(ctx, "Task completed", logger.String("task_id", taskID))
	return nil
}

// ================================================================================
// Health
// ================================================================================

// Ping calls the engine's version endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "version", http.MethodGet, "/version", nil, nil, nil)
}

func (c *Client) Name() string { return gatewayName }

// Probe implements service.DependencyProbe.
func (c *Client) Probe(ctx context.Context) error {
	return c.Ping(ctx)
}

// ================================================================================
// Transport
// ================================================================================

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body, out interface{}) (err error) {
	ctx, span := c.tracing.StartGatewaySpan(ctx, gatewayName, operation,
		attribute.String("http.method", method),
		attribute.String("http.url", c.baseURL+path),
	)

	start := time.Now()
	status := 0
	defer func() {
		c.metrics.RecordGatewayCall(gatewayName, operation, status, time.Since(start))
		c.tracing.FinishGatewaySpan(span, status, err)
	}()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &GatewayError{Operation: operation, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &GatewayError{Operation: operation, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user, pass := c.credentials(); user != "" && pass != "" {
		req.SetBasicAuth(user, pass)
	}
	c.tracing.InjectHeaders(ctx, req.Header)

	c.logger.Debug(ctx, "Operaton request", logger.String("method", method), logger.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(ctx, "Operaton request failed", err, logger.String("operation", operation))
		return &GatewayError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &GatewayError{Operation: operation, StatusCode: status, Err: fmt.Errorf("read response: %w", err)}
	}

	if status < 200 || status >= 300 {
		message := gjson.GetBytes(data, "message").String()
		if message == "" {
			message = strings.TrimSpace(string(data))
		}
		gwErr := &GatewayError{Operation: operation, StatusCode: status, Body: message}
		c.logger.Error(ctx, "Operaton error response", gwErr,
			logger.String("operation", operation),
			logger.Int("status", status),
		)
		return gwErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &GatewayError{Operation: operation, StatusCode: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

var (
	_ service.WorkflowEngine  = (*Client)(nil)
	_ service.DependencyProbe = (*Client)(nil)
	_ service.UpstreamFailure = (*GatewayError)(nil)
)
