package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"

	"github.com/ronl/business-api/internal/infrastructure/monitoring"
	"github.com/ronl/business-api/pkg/constants"
)

func TestMetrics(t *testing.T) {
	m := monitoring.NewMetrics()

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/v1/process/:id/status", ok)

	perform(t, r, http.MethodGet, "/v1/process/a/status", nil)
	perform(t, r, http.MethodGet, "/v1/process/b/status", nil)
	perform(t, r, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/v1/process/:id/status", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "not_found", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPActiveRequests))
}

func TestTracingAndRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Tracing(otel.Tracer("test")))
	r.GET("/", func(c *gin.Context) {
		id, _ := c.Request.Context().Value(constants.ContextKeyRequestID).(string)
		c.String(http.StatusOK, id)
	})

	w := perform(t, r, http.MethodGet, "/", nil)
	generated := w.Header().Get(constants.HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	w = perform(t, r, http.MethodGet, "/", http.Header{"X-Request-Id": {"abc-123"}})
	assert.Equal(t, "abc-123", w.Header().Get(constants.HeaderRequestID))
}
