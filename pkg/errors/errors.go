// Package errors defines the structured error type returned to API clients.
// Every error carries a stable machine-readable code and the HTTP status it maps to.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ================================================================================
// Error Codes
// ================================================================================

const (
	CodeMissingToken             = "MISSING_TOKEN"
	CodeInvalidToken             = "INVALID_TOKEN"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeForbidden                = "FORBIDDEN"
	CodeInsufficientAssurance    = "INSUFFICIENT_ASSURANCE"
	CodeMissingTenant            = "MISSING_TENANT"
	CodeTenantMismatch           = "TENANT_MISMATCH"
	CodeNotFound                 = "NOT_FOUND"
	CodeProcessNotFound          = "PROCESS_NOT_FOUND"
	CodeDecisionNotFound         = "DECISION_NOT_FOUND"
	CodeTaskNotFound             = "TASK_NOT_FOUND"
	CodeValidation               = "VALIDATION_ERROR"
	CodeRateLimitExceeded        = "RATE_LIMIT_EXCEEDED"
	CodePayloadTooLarge          = "PAYLOAD_TOO_LARGE"
	CodeProcessStartFailed       = "PROCESS_START_FAILED"
	CodeProcessDeleteFailed      = "PROCESS_DELETE_FAILED"
	CodeDecisionEvaluationFailed = "DECISION_EVALUATION_FAILED"
	CodeTaskOperationFailed      = "TASK_OPERATION_FAILED"
	CodeBRPAPIError              = "BRP_API_ERROR"
	CodeInternal                 = "INTERNAL_ERROR"
	CodeServiceUnavailable       = "SERVICE_UNAVAILABLE"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// AppError is a structured error with a code, an HTTP status and optional details.
type AppError interface {
	error

	// Code returns the stable error code sent to clients
	Code() string

	// HTTPStatus returns the HTTP status code
	HTTPStatus() int

	// Message returns the client-facing message
	Message() string

	// Details returns optional structured details
	Details() interface{}

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause returns a copy carrying cause as the underlying error
	WithCause(cause error) AppError

	// WithDetails returns a copy carrying details
	WithDetails(details interface{}) AppError

	// WithMessage returns a copy with a different client-facing message
	WithMessage(message string) AppError
}

// ================================================================================
// Base Error Implementation
// ================================================================================

type baseError struct {
	code       string
	httpStatus int
	message    string
	details    interface{}
	cause      error
}

// Error implements the error interface
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *baseError) Code() string         { return e.code }
func (e *baseError) HTTPStatus() int      { return e.httpStatus }
func (e *baseError) Message() string      { return e.message }
func (e *baseError) Details() interface{} { return e.details }
func (e *baseError) Unwrap() error        { return e.cause }

// Is matches any AppError with the same code.
func (e *baseError) Is(target error) bool {
	var other AppError
	if !stderrors.As(target, &other) {
		return false
	}
	return other.Code() == e.code
}

func (e *baseError) clone() *baseError {
	c := *e
	return &c
}

func (e *baseError) WithCause(cause error) AppError {
	c := e.clone()
	c.cause = cause
	return c
}

func (e *baseError) WithDetails(details interface{}) AppError {
	c := e.clone()
	c.details = details
	return c
}

func (e *baseError) WithMessage(message string) AppError {
	c := e.clone()
	c.message = message
	return c
}

// ================================================================================
// Constructors
// ================================================================================

// New creates an AppError with the given code, status and message.
func New(code string, httpStatus int, message string) AppError {
	return &baseError{
		code:       code,
		httpStatus: httpStatus,
		message:    message,
	}
}

// As extracts an AppError from an error chain.
func As(err error) (AppError, bool) {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code() == code
}

// ================================================================================
// Authentication / Authorization
// ================================================================================

func ErrMissingToken() AppError {
	return New(CodeMissingToken, http.StatusUnauthorized, "Authorization token is required")
}

func ErrInvalidToken() AppError {
	return New(CodeInvalidToken, http.StatusUnauthorized, "Invalid or expired token")
}

func ErrUnauthorized() AppError {
	return New(CodeUnauthorized, http.StatusUnauthorized, "Authentication required")
}

func ErrForbidden() AppError {
	return New(CodeForbidden, http.StatusForbidden, "Insufficient permissions")
}

// ErrInsufficientAssurance reports the minimum level the route requires.
func ErrInsufficientAssurance(required string) AppError {
	return New(CodeInsufficientAssurance, http.StatusForbidden,
		fmt.Sprintf("Assurance level '%s' or higher required", required))
}

func ErrMissingTenant() AppError {
	return New(CodeMissingTenant, http.StatusForbidden, "Municipality information missing")
}

func ErrTenantMismatch() AppError {
	return New(CodeTenantMismatch, http.StatusForbidden, "Access denied: municipality mismatch")
}

// ================================================================================
// Request / Resource
// ================================================================================

func ErrNotFound(message string) AppError {
	return New(CodeNotFound, http.StatusNotFound, message)
}

func ErrValidation(message string) AppError {
	return New(CodeValidation, http.StatusBadRequest, message)
}

func ErrRateLimitExceeded() AppError {
	return New(CodeRateLimitExceeded, http.StatusTooManyRequests, "Too many requests, please try again later")
}

func ErrPayloadTooLarge() AppError {
	return New(CodePayloadTooLarge, http.StatusRequestEntityTooLarge, "Request body too large")
}

// ================================================================================
// Upstream / Internal
// ================================================================================

func ErrProcessStartFailed() AppError {
	return New(CodeProcessStartFailed, http.StatusInternalServerError, "Failed to start process")
}

func ErrProcessNotFound() AppError {
	return New(CodeProcessNotFound, http.StatusNotFound, "Process instance not found")
}

func ErrProcessDeleteFailed() AppError {
	return New(CodeProcessDeleteFailed, http.StatusInternalServerError, "Failed to cancel process")
}

func ErrDecisionEvaluationFailed() AppError {
	return New(CodeDecisionEvaluationFailed, http.StatusInternalServerError, "Failed to evaluate decision")
}

func ErrDecisionNotFound() AppError {
	return New(CodeDecisionNotFound, http.StatusNotFound, "Decision definition not found")
}

func ErrTaskNotFound() AppError {
	return New(CodeTaskNotFound, http.StatusNotFound, "Task not found")
}

func ErrTaskOperationFailed(message string) AppError {
	return New(CodeTaskOperationFailed, http.StatusInternalServerError, message)
}

// ErrBRPAPI carries the upstream status so 4xx answers pass through unchanged.
func ErrBRPAPI(status int, message string) AppError {
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	return New(CodeBRPAPIError, status, message)
}

func ErrInternal() AppError {
	return New(CodeInternal, http.StatusInternalServerError, "An unexpected error occurred")
}

func ErrServiceUnavailable(message string) AppError {
	return New(CodeServiceUnavailable, http.StatusServiceUnavailable, message)
}

// ErrInvalidConfig reports a configuration problem found at startup.
func ErrInvalidConfig(message string) AppError {
	return New(CodeInternal, http.StatusInternalServerError, "invalid configuration: "+message)
}
