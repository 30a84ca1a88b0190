package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/application/service"
	"github.com/ronl/business-api/internal/domain/models"
	domainservice "github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/internal/domain/service/mocks"
	"github.com/ronl/business-api/internal/infrastructure/brp"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

const personenQuery = `{"type":"RaadpleegMetBurgerservicenummer","burgerservicenummer":["999993653"],"fields":["naam"]}`

func newBRPRouter(registry *mocks.MockPopulationRegistry) (*gin.Engine, func() *models.AuditLogEntry) {
	log := logger.NewNoopLogger()
	h := NewBRPHandler(service.NewRegistryAppService(registry, log), log)
	r, recorder := newTestRouter(func(r *gin.Engine) {
		r.POST("/v1/brp/personen", h.FetchPersons)
	})
	return r, func() *models.AuditLogEntry {
		entries, _ := recorder.Recent(context.Background(), domainservice.AuditQuery{})
		if len(entries) == 0 {
			return nil
		}
		return entries[0]
	}
}

func TestBRPHandler_FetchPersons(t *testing.T) {
	registry := new(mocks.MockPopulationRegistry)
	registry.On("FetchPersons", mock.Anything, json.RawMessage(personenQuery)).
		Return(json.RawMessage(`{"type":"RaadpleegMetBurgerservicenummer","personen":[{"naam":{"voornamen":"Suzanne"}}]}`), nil)
	r, last := newBRPRouter(registry)

	w := doRequest(r, http.MethodPost, "/v1/brp/personen", utrechtToken, personenQuery)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body map[string]interface{}
	decode(t, w, &body)
	assert.Len(t, body["personen"], 1)

	entry := last()
	require.NotNil(t, entry)
	assert.Equal(t, "brp.personen.fetch", entry.Action)
	assert.Equal(t, "999993653", entry.Details["bsn"])
}

func TestBRPHandler_UpstreamClientError(t *testing.T) {
	registry := new(mocks.MockPopulationRegistry)
	upstream := `{"title":"Minimale combinatie van parameters moet worden opgegeven.","status":400}`
	registry.On("FetchPersons", mock.Anything, mock.Anything).
		Return(nil, &brp.UpstreamError{StatusCode: http.StatusBadRequest, Body: json.RawMessage(upstream)})
	r, last := newBRPRouter(registry)

	w := doRequest(r, http.MethodPost, "/v1/brp/personen", utrechtToken, `{"type":"ZoekMetGeslachtsnaamEnGeboortedatum"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w, nil)
	assert.Equal(t, errors.CodeBRPAPIError, resp.Error.Code)
	details, err := json.Marshal(resp.Error.Details)
	require.NoError(t, err)
	assert.JSONEq(t, upstream, string(details), "upstream body is passed through")
	assert.Equal(t, models.AuditFailure, last().Result)
}

func TestBRPHandler_TransportError(t *testing.T) {
	registry := new(mocks.MockPopulationRegistry)
	registry.On("FetchPersons", mock.Anything, mock.Anything).
		Return(nil, &brp.UpstreamError{Err: stderrors.New("dial tcp: i/o timeout")})
	r, _ := newBRPRouter(registry)

	w := doRequest(r, http.MethodPost, "/v1/brp/personen", utrechtToken, personenQuery)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.CodeBRPAPIError, decode(t, w, nil).Error.Code)
}

func TestBRPHandler_InvalidBody(t *testing.T) {
	r, _ := newBRPRouter(new(mocks.MockPopulationRegistry))

	w := doRequest(r, http.MethodPost, "/v1/brp/personen", utrechtToken, `{"type":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeValidation, decode(t, w, nil).Error.Code)
}

func probe(name string, err error) *mocks.MockDependencyProbe {
	p := &mocks.MockDependencyProbe{ProbeName: name}
	p.On("Probe", mock.Anything).Return(err)
	return p
}

func newHealthRouter(probes ...domainservice.DependencyProbe) *gin.Engine {
	log := logger.NewNoopLogger()
	svc := service.NewHealthAppService(service.HealthConfig{
		Version:     "1.4.0",
		Environment: "test",
		Critical:    "operaton",
	}, probes, log)
	h := NewHealthHandler(svc, log)
	r := gin.New()
	r.GET("/v1/health", h.HealthCheck)
	r.GET("/v1/health/live", h.LivenessCheck)
	r.GET("/v1/health/ready", h.ReadinessCheck)
	return r
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		r := newHealthRouter(probe("keycloak", nil), probe("operaton", nil))

		w := doRequest(r, http.MethodGet, "/v1/health", "", "")

		require.Equal(t, http.StatusOK, w.Code)
		var report dto.HealthReport
		resp := decode(t, w, &report)
		assert.True(t, resp.Success)
		assert.Equal(t, dto.HealthHealthy, report.Status)
		assert.Equal(t, constants.DisplayName, report.Name)
		assert.Equal(t, dto.DependencyUp, report.Dependencies["keycloak"].Status)
	})

	t.Run("degraded", func(t *testing.T) {
		r := newHealthRouter(probe("keycloak", stderrors.New("HTTP 502")), probe("operaton", nil))

		w := doRequest(r, http.MethodGet, "/v1/health", "", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var report dto.HealthReport
		resp := decode(t, w, &report)
		assert.False(t, resp.Success)
		assert.Equal(t, dto.HealthDegraded, report.Status)
		assert.Equal(t, "HTTP 502", report.Dependencies["keycloak"].Error)
	})

	t.Run("live and ready", func(t *testing.T) {
		r := newHealthRouter(probe("keycloak", stderrors.New("down")), probe("operaton", nil))

		w := doRequest(r, http.MethodGet, "/v1/health/live", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"alive"`)

		w = doRequest(r, http.MethodGet, "/v1/health/ready", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"ready"`)
	})

	t.Run("not ready", func(t *testing.T) {
		r := newHealthRouter(probe("operaton", stderrors.New("connection refused")))

		w := doRequest(r, http.MethodGet, "/v1/health/ready", "", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var data map[string]interface{}
		resp := decode(t, w, &data)
		assert.False(t, resp.Success)
		assert.Equal(t, "not ready", data["status"])
		assert.Equal(t, "Operaton unavailable", data["reason"])
	})
}

func TestAuditHandler_ListEntries(t *testing.T) {
	log := logger.NewNoopLogger()
	r, recorder := newTestRouter(func(r *gin.Engine) {})
	for i, tenant := range []string{"amsterdam", "utrecht", "amsterdam"} {
		e := models.NewAuditLogEntry(tenant, "user", "process.start.aanvraag", models.AuditSuccess)
		e.RequestID = strings.Repeat("r", i+1)
		recorder.Record(context.Background(), e)
	}
	h := NewAuditHandler(recorder, log)
	r.GET("/v1/audit", h.ListEntries)

	w := doRequest(r, http.MethodGet, "/v1/audit", amsterdamToken, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page dto.AuditLogResponse
	decode(t, w, &page)
	require.Equal(t, 2, page.Count)
	for _, e := range page.Entries {
		assert.Equal(t, "amsterdam", e.TenantID)
	}

	w = doRequest(r, http.MethodGet, "/v1/audit?limit=1", amsterdamToken, "")
	decode(t, w, &page)
	assert.Equal(t, 1, page.Count)

	for _, limit := range []string{"0", "1001", "abc"} {
		w = doRequest(r, http.MethodGet, "/v1/audit?limit="+limit, amsterdamToken, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, limit)
	}
}

func TestAuditHandler_ReaderFailure(t *testing.T) {
	reader := failingReader{}
	h := NewAuditHandler(reader, logger.NewNoopLogger())
	r, _ := newTestRouter(func(r *gin.Engine) { r.GET("/v1/audit", h.ListEntries) })

	w := doRequest(r, http.MethodGet, "/v1/audit", amsterdamToken, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.CodeInternal, decode(t, w, nil).Error.Code)
}

type failingReader struct{}

func (failingReader) Recent(context.Context, domainservice.AuditQuery) ([]*models.AuditLogEntry, error) {
	return nil, stderrors.New("database is locked")
}

func TestInfoHandler(t *testing.T) {
	h := NewInfoHandler("1.4.0", "test", true, true)
	r := gin.New()
	r.GET("/", h.Root)
	r.NoRoute(h.NotFound)

	w := doRequest(r, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]interface{}
	decode(t, w, &info)
	assert.Equal(t, "running", info["status"])
	assert.Equal(t, "1.4.0", info["version"])
	assert.Equal(t, "/v1/decision", info["endpoints"].(map[string]interface{})["decision"])

	w = doRequest(r, http.MethodGet, "/v2/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decode(t, w, nil)
	assert.Equal(t, errors.CodeNotFound, resp.Error.Code)
	assert.Equal(t, "Endpoint not found", resp.Error.Message)
}
