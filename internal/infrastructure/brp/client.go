// Package brp proxies person queries to the Haal Centraal BRP personen API.
package brp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/internal/infrastructure/monitoring"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/logger"
)

const (
	gatewayName      = "brp"
	maxResponseBytes = 4 << 20
)

// UpstreamError is a failed registry call. StatusCode is 0 when no response
// arrived; Body holds the upstream JSON document when there was one.
type UpstreamError struct {
	StatusCode int
	Message    string
	Body       json.RawMessage
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("brp: %v", e.Err)
	}
	return fmt.Sprintf("brp: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) UpstreamStatus() int { return e.StatusCode }

func (e *UpstreamError) UpstreamMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.StatusCode)
}

func (e *UpstreamError) UpstreamBody() json.RawMessage { return e.Body }

// ClientError reports whether the registry rejected the request itself (4xx).
func (e *UpstreamError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Client forwards personen queries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracing    *monitoring.TracingManager
	metrics    service.Metrics
	logger     logger.Logger
}

// NewClient creates a registry client. A non-positive timeout uses the 10s
// default and a nil tracing uses the global tracer provider.
func NewClient(baseURL string, timeout time.Duration, tracing *monitoring.TracingManager, metrics service.Metrics, log logger.Logger) *Client {
	if timeout <= 0 {
		timeout = constants.DefaultBRPTimeout
	}
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	if tracing == nil {
		tracing = monitoring.GlobalTracing()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tracing:    tracing,
		metrics:    metrics,
		logger:     log.WithComponent("brp"),
	}
}

// FetchPersons posts query to {base}/personen and returns the response body.
func (c *Client) FetchPersons(ctx context.Context, query json.RawMessage) (body json.RawMessage, err error) {
	ctx, span := c.tracing.StartGatewaySpan(ctx, gatewayName, "personen")

	start := time.Now()
	status := 0
	defer func() {
		c.metrics.RecordGatewayCall(gatewayName, "personen", status, time.Since(start))
		c.tracing.FinishGatewaySpan(span, status, err)
	}()

	if len(bytes.TrimSpace(query)) == 0 {
		query = json.RawMessage(`{}`)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/personen", bytes.NewReader(query))
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	c.tracing.InjectHeaders(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(ctx, "BRP API request failed", err)
		return nil, &UpstreamError{Message: "BRP API request failed", Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &UpstreamError{StatusCode: status, Message: "BRP API response unreadable", Err: err}
	}

	if status >= 400 {
		upErr := &UpstreamError{StatusCode: status, Message: "BRP API returned an error"}
		if json.Valid(data) {
			upErr.Body = data
			if status >= 500 {
				if msg := gjson.GetBytes(data, "message").String(); msg != "" {
					upErr.Message = msg
				}
			}
		}
		c.logger.Error(ctx, "BRP API returned error", upErr, logger.Int("status", status))
		return nil, upErr
	}
	if !json.Valid(data) {
		return nil, &UpstreamError{StatusCode: http.StatusBadGateway, Message: "BRP API returned invalid JSON"}
	}
	return data, nil
}

func (c *Client) Name() string { return gatewayName }

var (
	_ service.PopulationRegistry = (*Client)(nil)
	_ service.UpstreamFailure    = (*UpstreamError)(nil)
)
