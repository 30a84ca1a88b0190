// Package constants defines system-wide constants for the business API.
package constants

import "time"

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is the type used for values stored in a context.Context or gin.Context.
type ContextKey string

const (
	// ContextKeyRequestID carries the request correlation id
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTenantID carries the authenticated municipality
	ContextKeyTenantID ContextKey = "tenant_id"

	// ContextKeyUserID carries the authenticated subject
	ContextKeyUserID ContextKey = "user_id"

	// ContextKeyUser carries the *models.AuthenticatedUser
	ContextKeyUser ContextKey = "auth_user"

	// ContextKeyAuthContext carries the *models.AuthContext
	ContextKeyAuthContext ContextKey = "auth_context"

	// ContextKeyTraceID carries the OpenTelemetry trace id
	ContextKeyTraceID ContextKey = "trace_id"

	// ContextKeyAuditAction carries a handler supplied audit action name
	ContextKeyAuditAction ContextKey = "audit_action"

	// ContextKeyAuditDetails carries handler supplied audit details
	ContextKeyAuditDetails ContextKey = "audit_details"

	// ContextKeyExposeErrorDetails marks requests whose error responses may carry details
	ContextKeyExposeErrorDetails ContextKey = "expose_error_details"
)

// ================================================================================
// HTTP Headers
// ================================================================================

const (
	HeaderAuthorization      = "Authorization"
	HeaderRequestID          = "X-Request-ID"
	HeaderAPIVersion         = "API-Version"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"

	// BearerPrefix is the scheme prefix of the Authorization header
	BearerPrefix = "Bearer "
)

// APIVersion is reported in the API-Version header and the root info document.
const APIVersion = "v1"

// ServiceName identifies this service in logs, traces and metrics.
const ServiceName = "business-api"

// DisplayName is reported by the health and root info documents.
const DisplayName = "RONL Business API"

// RoleAdmin may read the audit log of its own municipality.
const RoleAdmin = "admin"

// ================================================================================
// Environments
// ================================================================================

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvAcceptance  = "acceptance"
	EnvProduction  = "production"
)

// ================================================================================
// Workflow Variables
// ================================================================================

const (
	// VariableMunicipality is the process variable holding the owning tenant
	VariableMunicipality = "municipality"

	// VariableInitiator is the process variable holding the starting user
	VariableInitiator = "initiator"

	// VariableAssuranceLevel is the process variable holding the starter's LoA
	VariableAssuranceLevel = "assuranceLevel"
)

// ================================================================================
// Defaults
// ================================================================================

const (
	// DefaultAuditCapacity is the number of entries kept in the in-memory audit buffer
	DefaultAuditCapacity = 1000

	// DefaultAuditPruneInterval is how often the audit buffer is pruned
	DefaultAuditPruneInterval = time.Minute

	// DefaultAuditQueryLimit is the page size of the audit query endpoint
	DefaultAuditQueryLimit = 100

	// MaxAuditQueryLimit caps the page size of the audit query endpoint
	MaxAuditQueryLimit = 1000

	// DefaultJWKSRequestsPerMinute caps key-set fetches against the identity broker
	DefaultJWKSRequestsPerMinute = 10

	// DefaultBRPTimeout bounds a registry call
	DefaultBRPTimeout = 10 * time.Second

	// DefaultHealthCheckTimeout bounds a single dependency probe
	DefaultHealthCheckTimeout = 5 * time.Second

	// MaxRequestBodyBytes is the inbound request body limit
	MaxRequestBodyBytes = 1 << 20
)
