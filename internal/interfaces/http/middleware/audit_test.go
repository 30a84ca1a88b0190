package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

func auditRouter(rec *memoryRecorder, includeIP bool, u *models.AuthenticatedUser) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Audit(rec, includeIP))
	if u != nil {
		r.Use(withUser(u))
	}
	return r
}

func TestAudit_SuccessEntry(t *testing.T) {
	rec := &memoryRecorder{}
	r := auditRouter(rec, true, user("utrecht", models.AssuranceMidden))
	r.GET("/v1/process/:id/status", func(c *gin.Context) {
		AddAuditDetails(c, map[string]interface{}{"processInstanceId": c.Param("id")})
		ok(c)
	})

	w := perform(t, r, http.MethodGet, "/v1/process/pi-7/status?verbose=1", http.Header{
		"X-Request-Id": {"req-1"},
		"User-Agent":   {"portal/1.0"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	entries := rec.all()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "utrecht", e.TenantID)
	assert.Equal(t, "user-utrecht", e.UserID)
	assert.Equal(t, "GET /v1/process/:id/status", e.Action)
	assert.Equal(t, "process", e.ResourceType)
	assert.Equal(t, "pi-7", e.ResourceID)
	assert.Equal(t, models.AuditSuccess, e.Result)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "portal/1.0", e.UserAgent)
	assert.NotEmpty(t, e.SourceAddress)
	assert.Empty(t, e.ErrorMessage)
	assert.Equal(t, "GET", e.Details["method"])
	assert.Equal(t, "verbose=1", e.Details["query"])
	assert.Equal(t, http.StatusOK, e.Details["statusCode"])
	assert.Equal(t, "pi-7", e.Details["processInstanceId"])
	assert.Contains(t, e.Details, "duration")
}

func TestAudit_FailureCarriesErrorMessage(t *testing.T) {
	rec := &memoryRecorder{}
	r := auditRouter(rec, false, user("utrecht", models.AssuranceMidden))
	r.POST("/v1/process/:id/start", func(c *gin.Context) {
		SetAuditAction(c, "process.start."+c.Param("id"))
		dto.SendError(c, errors.ErrTenantMismatch())
	})

	perform(t, r, http.MethodPost, "/v1/process/aanvraag/start", nil)

	entries := rec.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "process.start.aanvraag", entries[0].Action)
	assert.Equal(t, models.AuditFailure, entries[0].Result)
	assert.Equal(t, "Access denied: municipality mismatch", entries[0].ErrorMessage)
	assert.Empty(t, entries[0].SourceAddress, "source address omitted when disabled")
}

func TestAudit_ServerErrorClassifiedAsError(t *testing.T) {
	rec := &memoryRecorder{}
	r := auditRouter(rec, false, user("utrecht", models.AssuranceMidden))
	r.GET("/v1/task", func(c *gin.Context) {
		dto.SendError(c, errors.ErrServiceUnavailable("Workflow engine unavailable"))
	})

	perform(t, r, http.MethodGet, "/v1/task", nil)

	entries := rec.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditError, entries[0].Result)
	assert.Equal(t, "task", entries[0].ResourceType)
	assert.Empty(t, entries[0].ResourceID)
}

func TestAudit_FinalizerIsIdempotent(t *testing.T) {
	rec := &memoryRecorder{}
	r := auditRouter(rec, false, user("utrecht", models.AssuranceMidden))
	r.GET("/v1/decision/:id", func(c *gin.Context) {
		ok(c)
		FinalizeAudit(c)
		FinalizeAudit(c)
	})

	perform(t, r, http.MethodGet, "/v1/decision/d1", nil)

	assert.Len(t, rec.all(), 1)
}

func TestAudit_PanicRecordedAsError(t *testing.T) {
	rec := &memoryRecorder{}
	r := gin.New()
	r.Use(Recovery(logger.NewNoopLogger()), RequestID(), Audit(rec, false), withUser(user("utrecht", models.AssuranceMidden)))
	r.GET("/v1/process/:id/status", func(c *gin.Context) {
		panic("boom")
	})

	w := perform(t, r, http.MethodGet, "/v1/process/pi-9/status", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	entries := rec.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditError, entries[0].Result)
	assert.Equal(t, "GET /v1/process/:id/status", entries[0].Action)
	assert.Equal(t, "pi-9", entries[0].ResourceID)
	assert.Equal(t, "An unexpected error occurred", entries[0].ErrorMessage)
}

func TestAudit_PanicAfterWriteRecordedOnce(t *testing.T) {
	rec := &memoryRecorder{}
	r := gin.New()
	r.Use(Recovery(logger.NewNoopLogger()), Audit(rec, false), withUser(user("utrecht", models.AssuranceMidden)))
	r.GET("/v1/task", func(c *gin.Context) {
		ok(c)
		panic("late")
	})

	w := perform(t, r, http.MethodGet, "/v1/task", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, rec.all(), 1)
}

func TestAudit_SkipsUnauthenticatedAndUnwritten(t *testing.T) {
	rec := &memoryRecorder{}
	anonymous := auditRouter(rec, false, nil)
	anonymous.GET("/v1/health", ok)
	perform(t, anonymous, http.MethodGet, "/v1/health", nil)
	assert.Empty(t, rec.all())

	silent := auditRouter(rec, false, user("utrecht", models.AssuranceMidden))
	silent.GET("/v1/process/x/status", func(c *gin.Context) {})
	perform(t, silent, http.MethodGet, "/v1/process/x/status", nil)
	assert.Empty(t, rec.all())
}

func TestResourceFromPath(t *testing.T) {
	tests := []struct {
		path, typ, id string
	}{
		{"/v1/process/abc/status", "process", "abc"},
		{"/v1/brp/personen", "brp", "personen"},
		{"/v1/task", "task", ""},
		{"/v1", "", ""},
		{"/metrics", "", ""},
	}
	for _, tt := range tests {
		typ, id := resourceFromPath(tt.path)
		assert.Equal(t, tt.typ, typ, tt.path)
		assert.Equal(t, tt.id, id, tt.path)
	}
}
