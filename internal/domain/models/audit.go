package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditResult classifies the outcome of an audited request.
type AuditResult string

const (
	AuditSuccess AuditResult = "success"
	AuditFailure AuditResult = "failure"
	AuditError   AuditResult = "error"
)

// ResultForStatus maps an HTTP status to an audit result: 2xx success,
// 4xx failure, anything else error.
func ResultForStatus(status int) AuditResult {
	switch {
	case status >= 200 && status < 300:
		return AuditSuccess
	case status >= 400 && status < 500:
		return AuditFailure
	default:
		return AuditError
	}
}

// AuditLogEntry is a single, append-only audit trail record.
type AuditLogEntry struct {
	ID            string                 `json:"id" gorm:"primaryKey;size:36"`
	Timestamp     time.Time              `json:"timestamp" gorm:"index;not null"`
	TenantID      string                 `json:"tenantId" gorm:"index;size:128;not null"`
	UserID        string                 `json:"userId" gorm:"index;size:255;not null"`
	Action        string                 `json:"action" gorm:"size:255;not null"`
	ResourceType  string                 `json:"resourceType,omitempty" gorm:"size:128"`
	ResourceID    string                 `json:"resourceId,omitempty" gorm:"size:255"`
	Details       map[string]interface{} `json:"details" gorm:"serializer:json"`
	SourceAddress string                 `json:"sourceAddress,omitempty" gorm:"size:64"`
	UserAgent     string                 `json:"userAgent,omitempty" gorm:"size:512"`
	Result        AuditResult            `json:"result" gorm:"size:16;not null"`
	ErrorMessage  string                 `json:"errorMessage,omitempty" gorm:"type:text"`
	RequestID     string                 `json:"requestId" gorm:"index;size:64"`
}

// TableName pins the table name used by the durable audit store.
func (AuditLogEntry) TableName() string {
	return "audit_logs"
}

// NewAuditLogEntry creates an entry stamped with a fresh id and the current UTC time.
func NewAuditLogEntry(tenantID, userID, action string, result AuditResult) *AuditLogEntry {
	return &AuditLogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
		UserID:    userID,
		Action:    action,
		Result:    result,
		Details:   map[string]interface{}{},
	}
}
