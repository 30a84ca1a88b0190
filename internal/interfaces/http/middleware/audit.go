package middleware

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/pkg/constants"
)

const (
	auditStateKey   = "audit_state"
	maxCapturedBody = 64 << 10
)

// EntryRecorder accepts finished audit entries.
type EntryRecorder interface {
	Record(ctx context.Context, entry *models.AuditLogEntry)
}

// errorBodyWriter copies error response bodies so the audit entry can carry
// error.message. Success bodies are not retained.
type errorBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *errorBodyWriter) Write(b []byte) (int, error) {
	if w.Status() >= 400 && w.body.Len() < maxCapturedBody {
		w.body.Write(b[:min(len(b), maxCapturedBody-w.body.Len())])
	}
	return w.ResponseWriter.Write(b)
}

func (w *errorBodyWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

type auditState struct {
	once      sync.Once
	start     time.Time
	recorder  EntryRecorder
	includeIP bool
	writer    *errorBodyWriter
}

// Audit records exactly one entry per authenticated request after the handler
// chain returns. Requests whose response was never written are not recorded.
func Audit(recorder EntryRecorder, includeIP bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		w := &errorBodyWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w
		state := &auditState{start: time.Now(), recorder: recorder, includeIP: includeIP, writer: w}
		c.Set(auditStateKey, state)

		c.Next()

		FinalizeAudit(c)
	}
}

// FinalizeAudit records the audit entry of the request. Only the first call has
// an effect.
func FinalizeAudit(c *gin.Context) {
	v, ok := c.Get(auditStateKey)
	if !ok {
		return
	}
	state, ok := v.(*auditState)
	if !ok {
		return
	}
	state.once.Do(func() {
		if !c.Writer.Written() {
			return
		}
		if entry := buildAuditEntry(c, state); entry != nil {
			state.recorder.Record(c.Request.Context(), entry)
		}
	})
}

func buildAuditEntry(c *gin.Context, state *auditState) *models.AuditLogEntry {
	user, ok := CurrentUser(c)
	if !ok {
		return nil
	}

	status := c.Writer.Status()
	result := models.ResultForStatus(status)

	action := c.GetString(string(constants.ContextKeyAuditAction))
	if action == "" {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		action = c.Request.Method + " " + route
	}

	entry := models.NewAuditLogEntry(user.TenantID, user.UserID, action, result)
	entry.ResourceType, entry.ResourceID = resourceFromPath(c.Request.URL.Path)
	entry.UserAgent = c.Request.UserAgent()
	entry.RequestID = GetRequestID(c)
	if state.includeIP {
		entry.SourceAddress = c.ClientIP()
	}

	entry.Details = map[string]interface{}{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"query":      c.Request.URL.RawQuery,
		"statusCode": status,
		"duration":   time.Since(state.start).Milliseconds(),
	}
	for k, v := range auditDetails(c) {
		entry.Details[k] = v
	}

	if result != models.AuditSuccess {
		if msg := gjson.GetBytes(state.writer.body.Bytes(), "error.message"); msg.Exists() {
			entry.ErrorMessage = msg.String()
		}
	}
	return entry
}

// resourceFromPath returns the two path segments following /v1, e.g.
// /v1/process/abc/status → ("process", "abc").
func resourceFromPath(path string) (resourceType, resourceID string) {
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	for i, s := range segments {
		if s != constants.APIVersion {
			continue
		}
		if i+1 < len(segments) {
			resourceType = segments[i+1]
		}
		if i+2 < len(segments) {
			resourceID = segments[i+2]
		}
		return resourceType, resourceID
	}
	return "", ""
}
