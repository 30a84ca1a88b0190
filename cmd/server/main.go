package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ronl/business-api/internal/application/service"
	"github.com/ronl/business-api/internal/config"
	domainservice "github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/internal/infrastructure/audit"
	"github.com/ronl/business-api/internal/infrastructure/brp"
	"github.com/ronl/business-api/internal/infrastructure/crypto"
	"github.com/ronl/business-api/internal/infrastructure/jwks"
	"github.com/ronl/business-api/internal/infrastructure/monitoring"
	"github.com/ronl/business-api/internal/infrastructure/operaton"
	"github.com/ronl/business-api/internal/infrastructure/persistence/postgres"
	"github.com/ronl/business-api/internal/infrastructure/persistence/redis"
	"github.com/ronl/business-api/internal/infrastructure/ratelimit"
	"github.com/ronl/business-api/internal/infrastructure/secrets"
	grpcserver "github.com/ronl/business-api/internal/interfaces/grpc"
	httpserver "github.com/ronl/business-api/internal/interfaces/http"
	"github.com/ronl/business-api/internal/interfaces/http/handlers"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

const (
	shutdownTimeout   = 30 * time.Second
	retentionInterval = time.Hour
	secretCacheTTL    = 5 * time.Minute
)

func main() {
	startupLogger, err := monitoring.NewZapLogger(&config.LogConfig{Level: "info"})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	loader := config.NewLoader(os.Getenv("CONFIG_FILE"), startupLogger)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer monitoring.Sync(appLogger)

	loader.Watch(func(updated *config.Config) {
		if monitoring.SetLevel(appLogger, updated.Log.Level) {
			appLogger.Info(context.Background(), "Log level changed", logger.String("level", updated.Log.Level))
		}
	})

	if err := run(cfg, appLogger); err != nil {
		appLogger.Fatal(context.Background(), "Server terminated", err)
	}
}

func run(cfg *config.Config, appLogger logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing, err := monitoring.NewTracingManager(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	metrics := monitoring.NewMetrics()
	adapter := monitoring.NewMetricsAdapter(metrics)

	if err := resolveSecrets(ctx, cfg, adapter, appLogger); err != nil {
		return err
	}

	// Audit trail
	var sinks []domainservice.AuditSink
	var reader domainservice.AuditReader
	var probes []domainservice.DependencyProbe

	if cfg.Database.URL != "" {
		db, err := postgres.NewDBConnection(ctx, &cfg.Database, appLogger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		store := audit.NewGormStore(db.DB(), cfg.Audit.RetentionDays, adapter, appLogger)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate audit store: %w", err)
		}
		store.StartRetention(ctx, retentionInterval)

		sinks = append(sinks, store)
		reader = store
		probes = append(probes, db)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sink := audit.NewKafkaSink(cfg.Kafka, cfg.Audit.SigningKey)
		defer sink.Close()
		sinks = append(sinks, sink)
	}

	recorder := audit.NewRecorder(audit.RecorderConfig{
		Capacity:      cfg.Audit.Capacity,
		PruneInterval: time.Duration(cfg.Audit.PruneInterval) * time.Second,
		QueueSize:     cfg.Audit.QueueSize,
	}, sinks, adapter, appLogger)
	recorder.Start(ctx)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := recorder.Stop(flushCtx); err != nil {
			appLogger.Error(context.Background(), "Audit flush incomplete", err)
		}
	}()
	if reader == nil {
		reader = recorder
	}

	// Rate limiting
	var limiter domainservice.RateLimiter = ratelimit.NewLocalLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window())
	if cfg.Redis.URL != "" {
		redisConn, err := redis.NewRedisConnection(ctx, &cfg.Redis, appLogger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisConn.Close()

		limiter = ratelimit.NewRedisRateLimiter(redisConn.GetClient(), ratelimit.RedisRateLimiterConfig{
			Limit:  cfg.RateLimit.MaxRequests,
			Window: cfg.RateLimit.Window(),
		}, appLogger)
		probes = append(probes, redisConn)
	}

	// Authentication
	keys := jwks.NewKeyCache(jwks.Config{
		URL:               cfg.Keycloak.JWKSURL(),
		TTL:               cfg.JWT.CacheTTLDuration(),
		RequestsPerMinute: cfg.JWT.RequestsPerMinute,
	}, nil, adapter, appLogger)
	verifier, err := crypto.NewTokenVerifier(crypto.VerifierConfig{
		Issuer:    cfg.JWT.Issuer,
		Audience:  cfg.JWT.Audience,
		Algorithm: cfg.JWT.Algorithm,
		ClockSkew: time.Duration(cfg.JWT.ClockSkew) * time.Second,
	}, keys)
	if err != nil {
		return fmt.Errorf("create token verifier: %w", err)
	}

	// Gateways
	engine := operaton.NewClient(operaton.Config{
		BaseURL:  cfg.Operaton.BaseURL,
		Timeout:  cfg.Operaton.Timeout(),
		Username: cfg.Operaton.Username,
		Password: cfg.Operaton.Password,
		Tracing:  tracing,
	}, adapter, appLogger)
	registry := brp.NewClient(cfg.BRP.BaseURL, cfg.BRP.Timeout(), tracing, adapter, appLogger)

	probes = append(probes, jwks.NewBrokerProbe(cfg.Keycloak.WellKnownURL(), nil), engine)

	// Application services
	isolation := domainservice.NewTenantIsolation(cfg.Tenant.IsolationEnabled)
	healthSvc := service.NewHealthAppService(service.HealthConfig{
		Version:     version,
		Environment: cfg.Env,
		Critical:    engine.Name(),
	}, probes, appLogger)

	h := httpserver.Handlers{
		Health:   handlers.NewHealthHandler(healthSvc, appLogger),
		Process:  handlers.NewProcessHandler(service.NewProcessAppService(engine, isolation, adapter, appLogger), appLogger),
		Decision: handlers.NewDecisionHandler(service.NewDecisionAppService(engine, isolation, appLogger), appLogger),
		Task:     handlers.NewTaskHandler(service.NewTaskAppService(engine, isolation, adapter, appLogger), appLogger),
		BRP:      handlers.NewBRPHandler(service.NewRegistryAppService(registry, appLogger), appLogger),
		Audit:    handlers.NewAuditHandler(reader, appLogger),
		Info:     handlers.NewInfoHandler(version, cfg.Env, cfg.Tenant.IsolationEnabled, cfg.Audit.Enabled),
	}

	router := httpserver.NewRouter(cfg, version, appLogger, h, httpserver.Dependencies{
		Verifier:  verifier,
		Recorder:  recorder,
		Isolation: isolation,
		Limiter:   limiter,
		Metrics:   metrics,
		Tracer:    tracing.Tracer(),
	})

	errCh := make(chan error, 2)
	go func() {
		if err := router.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcHealth *grpcserver.HealthServer
	if cfg.Server.GRPCPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("listen for gRPC: %w", err)
		}
		grpcHealth = grpcserver.NewHealthServer(healthSvc, grpcserver.NewInterceptorChain(appLogger, limiter), 0, appLogger)
		go grpcHealth.Run(ctx)
		go func() {
			if err := grpcHealth.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	appLogger.Info(ctx, constants.DisplayName+" started",
		logger.String("version", version),
		logger.String("environment", cfg.Env),
		logger.String("address", cfg.Server.Address()),
	)

	var serveErr error
	select {
	case <-ctx.Done():
		appLogger.Info(context.Background(), "Shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if grpcHealth != nil {
		grpcHealth.Stop()
	}
	if err := router.Stop(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown failed", err)
	}

	appLogger.Info(shutdownCtx, "Server stopped")
	return serveErr
}

// resolveSecrets overrides gateway credentials with the values stored in
// Vault when an address is configured.
func resolveSecrets(ctx context.Context, cfg *config.Config, metrics domainservice.Metrics, log logger.Logger) error {
	if cfg.Vault.Address == "" {
		return nil
	}

	client, err := secrets.NewVaultClient(cfg.Vault)
	if err != nil {
		return fmt.Errorf("create vault client: %w", err)
	}
	store := secrets.NewVaultStore(client, cfg.Vault.MountPath, secretCacheTTL, metrics, log)

	if cfg.Vault.OperatonPath != "" {
		username, password, err := secrets.Credentials(ctx, store, cfg.Vault.OperatonPath)
		if err != nil {
			return fmt.Errorf("read operaton credentials: %w", err)
		}
		cfg.Operaton.Username, cfg.Operaton.Password = username, password
	}

	if cfg.Vault.KeycloakPath != "" {
		data, err := store.ReadSecret(ctx, cfg.Vault.KeycloakPath)
		if err != nil {
			return fmt.Errorf("read keycloak secret: %w", err)
		}
		if secret := data["client_secret"]; secret != "" {
			cfg.Keycloak.ClientSecret = secret
		}
	}

	log.Info(ctx, "Credentials resolved from Vault")
	return nil
}
