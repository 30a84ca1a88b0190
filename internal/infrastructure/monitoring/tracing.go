package monitoring

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ronl/business-api/internal/config"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/logger"
)

// TracingManager owns the OpenTelemetry tracer provider.
type TracingManager struct {
	tracer     trace.Tracer
	provider   *sdktrace.TracerProvider
	propagator propagation.TextMapPropagator
	logger     logger.Logger
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}

// NewTracingManager exports spans to Jaeger when tracing is enabled. When it is
// disabled the global no-op provider is used, so spans cost nothing.
func NewTracingManager(cfg *config.Config, log logger.Logger) (*TracingManager, error) {
	serviceName := cfg.Tracing.ServiceName
	if serviceName == "" {
		serviceName = constants.ServiceName
	}

	otel.SetTextMapPropagator(newPropagator())

	if !cfg.Tracing.Enabled {
		log.Info(context.Background(), "Tracing is disabled")
		return &TracingManager{tracer: otel.Tracer(serviceName), propagator: newPropagator(), logger: log}, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(
		jaeger.WithEndpoint(cfg.Tracing.JaegerEndpoint),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", constants.APIVersion),
			attribute.String("deployment.environment", cfg.Env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Tracing.SamplingRate))),
	)
	otel.SetTracerProvider(provider)

	log.Info(context.Background(), "Tracing initialized successfully",
		logger.String("endpoint", cfg.Tracing.JaegerEndpoint),
		logger.Float64("sample_rate", cfg.Tracing.SamplingRate),
	)

	return NewProviderTracing(provider, serviceName, log), nil
}

// NewProviderTracing wraps an existing tracer provider, such as one feeding an
// in-memory span recorder.
func NewProviderTracing(provider *sdktrace.TracerProvider, serviceName string, log logger.Logger) *TracingManager {
	return &TracingManager{
		tracer:     provider.Tracer(serviceName),
		provider:   provider,
		propagator: newPropagator(),
		logger:     log,
	}
}

// GlobalTracing wraps the globally registered tracer provider. Gateways built
// without a TracingManager use it.
func GlobalTracing() *TracingManager {
	return &TracingManager{tracer: otel.Tracer(constants.ServiceName), propagator: newPropagator(), logger: logger.NewNoopLogger()}
}

// Tracer returns the underlying tracer.
func (tm *TracingManager) Tracer() trace.Tracer {
	return tm.tracer
}

// StartGatewaySpan starts a client span for an outbound call to gateway.
func (tm *TracingManager) StartGatewaySpan(ctx context.Context, gateway, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("gateway.name", gateway),
		attribute.String("gateway.operation", operation),
	)
	return tm.tracer.Start(ctx, gateway+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// InjectHeaders writes the W3C trace context of ctx into an outbound request.
func (tm *TracingManager) InjectHeaders(ctx context.Context, header http.Header) {
	tm.propagator.Inject(ctx, propagation.HeaderCarrier(header))
}

// FinishGatewaySpan records the upstream status and err on span and ends it.
// status is 0 when no response arrived.
func (tm *TracingManager) FinishGatewaySpan(span trace.Span, status int, err error) {
	if status > 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Shutdown flushes pending spans.
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider == nil {
		return nil
	}
	if err := tm.provider.Shutdown(ctx); err != nil {
		tm.logger.Error(ctx, "Failed to shutdown tracing provider", err)
		return err
	}
	tm.logger.Info(ctx, "Tracing provider shutdown successfully")
	return nil
}
