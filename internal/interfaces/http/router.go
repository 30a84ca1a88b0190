package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/ronl/business-api/internal/config"
	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/internal/infrastructure/monitoring"
	"github.com/ronl/business-api/internal/interfaces/http/handlers"
	"github.com/ronl/business-api/internal/interfaces/http/middleware"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/logger"
)

// Handlers groups the endpoint handlers served by the Router.
type Handlers struct {
	Health   *handlers.HealthHandler
	Process  *handlers.ProcessHandler
	Decision *handlers.DecisionHandler
	Task     *handlers.TaskHandler
	BRP      *handlers.BRPHandler
	Audit    *handlers.AuditHandler
	Info     *handlers.InfoHandler
}

// Dependencies are the collaborators of the middleware chain. Limiter, Metrics
// and Tracer are optional.
type Dependencies struct {
	Verifier  middleware.TokenVerifier
	Recorder  middleware.EntryRecorder
	Isolation *service.TenantIsolation
	Limiter   service.RateLimiter
	Metrics   *monitoring.Metrics
	Tracer    trace.Tracer
}

// Router serves the public HTTP surface.
type Router struct {
	engine   *gin.Engine
	config   *config.Config
	version  string
	logger   logger.Logger
	handlers Handlers
	deps     Dependencies
	metrics  service.Metrics
	server   *http.Server
}

// NewRouter creates the router. Call SetupRoutes (or Start) before serving.
func NewRouter(cfg *config.Config, version string, log logger.Logger, h Handlers, deps Dependencies) *Router {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if !cfg.Server.TrustProxy {
		_ = engine.SetTrustedProxies(nil)
	}

	metrics := service.NewNoopMetrics()
	if deps.Metrics != nil {
		metrics = monitoring.NewMetricsAdapter(deps.Metrics)
	}

	return &Router{
		engine:   engine,
		config:   cfg,
		version:  version,
		logger:   log.WithComponent("http"),
		handlers: h,
		deps:     deps,
		metrics:  metrics,
	}
}

// SetupRoutes installs the middleware chain and every route.
func (r *Router) SetupRoutes() {
	cfg := r.config

	r.engine.Use(middleware.Recovery(r.logger))
	r.engine.Use(middleware.RequestID())
	if r.deps.Tracer != nil {
		r.engine.Use(middleware.Tracing(r.deps.Tracer))
	}
	if r.deps.Metrics != nil {
		r.engine.Use(middleware.Metrics(r.deps.Metrics))
	}
	r.engine.Use(middleware.AccessLog(r.logger))
	if cfg.Security.HeadersEnabled {
		r.engine.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	}

	corsConfig := cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "API-Version"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	r.engine.Use(cors.New(corsConfig))
	r.engine.Use(middleware.APIVersion(r.version))
	r.engine.Use(middleware.BodyLimit(constants.MaxRequestBodyBytes))
	r.engine.Use(middleware.ExposeErrorDetails(!cfg.IsProduction()))

	r.engine.GET("/", r.handlers.Info.Root)

	if r.deps.Metrics != nil && cfg.Features.Metrics {
		r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}
	if !cfg.IsProduction() {
		pprof.Register(r.engine)
	}

	v1 := r.engine.Group("/" + constants.APIVersion)
	if cfg.Audit.Enabled {
		v1.Use(middleware.Audit(r.deps.Recorder, cfg.Audit.IncludeIP))
	}

	health := v1.Group("/health")
	{
		health.GET("", r.handlers.Health.HealthCheck)
		health.GET("/live", r.handlers.Health.LivenessCheck)
		health.GET("/ready", r.handlers.Health.ReadinessCheck)
	}

	gate := middleware.NewGate(r.metrics, r.logger)
	tenants := middleware.NewTenantGate(r.deps.Isolation, r.metrics, r.logger)

	authenticated := []gin.HandlerFunc{middleware.RequireJWT(r.deps.Verifier, r.metrics, r.logger)}
	if cfg.RateLimit.Enabled && r.deps.Limiter != nil {
		authenticated = append(authenticated, middleware.RateLimitMiddleware(
			r.deps.Limiter,
			middleware.RateLimitOptions{PerTenant: cfg.RateLimit.PerTenant},
			r.metrics,
			r.logger,
		))
	}
	scoped := func(extra ...gin.HandlerFunc) []gin.HandlerFunc {
		chain := append([]gin.HandlerFunc{}, authenticated...)
		chain = append(chain, tenants.Guard())
		return append(chain, extra...)
	}

	process := v1.Group("/process", scoped()...)
	{
		process.POST("/:id/start", gate.RequireAssurance(models.AssuranceMidden), r.handlers.Process.StartProcess)
		process.GET("/:id/status", r.handlers.Process.GetStatus)
		process.GET("/:id/variables", r.handlers.Process.GetVariables)
		process.DELETE("/:id", r.handlers.Process.CancelProcess)
	}

	decision := v1.Group("/decision", scoped()...)
	{
		decision.POST("/:id/evaluate", gate.RequireAssurance(models.AssuranceBasis), r.handlers.Decision.Evaluate)
		decision.GET("/:id", r.handlers.Decision.GetDefinition)
	}

	task := v1.Group("/task", scoped(gate.RequireAssurance(models.AssuranceMidden))...)
	{
		task.GET("", r.handlers.Task.ListTasks)
		task.GET("/:id", r.handlers.Task.GetTask)
		task.POST("/:id/claim", r.handlers.Task.ClaimTask)
		task.POST("/:id/complete", r.handlers.Task.CompleteTask)
	}

	brp := v1.Group("/brp", authenticated...)
	{
		brp.POST("/personen", r.handlers.BRP.FetchPersons)
	}

	v1.GET("/audit", scoped(gate.RequireRoles(constants.RoleAdmin), r.handlers.Audit.ListEntries)...)

	r.engine.NoRoute(r.handlers.Info.NotFound)
}

// Start registers the routes and blocks serving HTTP until Stop.
func (r *Router) Start() error {
	r.SetupRoutes()

	addr := r.config.Server.Address()
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    time.Duration(r.config.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(r.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(r.config.Server.IdleTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	r.logger.Info(context.Background(), "Starting HTTP server", logger.String("address", addr))

	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}

	r.logger.Info(ctx, "Stopping HTTP server...")
	return r.server.Shutdown(ctx)
}

// Engine exposes the gin engine, mainly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
