package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ronl/business-api/pkg/constants"
)

// RequestMetrics is the subset of the Prometheus collectors used per request.
type RequestMetrics interface {
	ObserveRequest(method, path string, status int, duration time.Duration)
	ActiveRequestsInc()
	ActiveRequestsDec()
}

// Metrics records request totals, duration and in-flight requests. Routes are
// labeled by template for low cardinality.
func Metrics(m RequestMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.ActiveRequestsInc()
		defer m.ActiveRequestsDec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "not_found"
		}
		m.ObserveRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// Tracing starts a server span per request, continuing any W3C trace context
// sent by the caller.
func Tracing(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		spanName := c.FullPath()
		if spanName == "" {
			spanName = c.Request.URL.Path
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+spanName, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Set(string(constants.ContextKeyTraceID), sc.TraceID().String())
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
			attribute.Int("http.status_code", status),
			attribute.String("http.client_ip", c.ClientIP()),
			attribute.String("request.id", GetRequestID(c)),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	}
}
