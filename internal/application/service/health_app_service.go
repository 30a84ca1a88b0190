package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ronl/business-api/internal/application/dto"
	domainservice "github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/logger"
)

// HealthAppService probes the external dependencies.
type HealthAppService interface {
	// Check probes every dependency concurrently.
	Check(ctx context.Context) *dto.HealthReport
	// Ready probes the dependency the service cannot work without.
	Ready(ctx context.Context) error
}

// HealthConfig describes the running service for the health document.
type HealthConfig struct {
	Version     string
	Environment string
	// Critical names the probe that decides readiness.
	Critical string
	Timeout  time.Duration
}

type healthAppServiceImpl struct {
	cfg     HealthConfig
	probes  []domainservice.DependencyProbe
	started time.Time
	now     func() time.Time
	logger  logger.Logger
}

// NewHealthAppService creates a HealthAppService over probes.
func NewHealthAppService(cfg HealthConfig, probes []domainservice.DependencyProbe, log logger.Logger) HealthAppService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultHealthCheckTimeout
	}
	return &healthAppServiceImpl{
		cfg:     cfg,
		probes:  probes,
		started: time.Now(),
		now:     time.Now,
		logger:  log.WithComponent("health"),
	}
}

func (s *healthAppServiceImpl) Check(ctx context.Context) *dto.HealthReport {
	start := s.now()

	var wg sync.WaitGroup
	mu := &sync.Mutex{}
	deps := make(map[string]dto.DependencyHealth, len(s.probes))

	wg.Add(len(s.probes))
	for _, p := range s.probes {
		go func(p domainservice.DependencyProbe) {
			defer wg.Done()
			result := s.probe(ctx, p)
			mu.Lock()
			deps[p.Name()] = result
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	status := dto.HealthHealthy
	for _, d := range deps {
		if d.Status != dto.DependencyUp {
			status = dto.HealthDegraded
			break
		}
	}

	report := &dto.HealthReport{
		Name:         constants.DisplayName,
		Version:      s.cfg.Version,
		Status:       status,
		Timestamp:    s.now().UTC(),
		Uptime:       s.now().Sub(s.started).Seconds(),
		Environment:  s.cfg.Environment,
		Duration:     s.now().Sub(start).Milliseconds(),
		Dependencies: deps,
	}
	s.logger.Info(ctx, "Health check completed",
		logger.String("status", status),
		logger.Int64("duration_ms", report.Duration),
	)
	return report
}

func (s *healthAppServiceImpl) Ready(ctx context.Context) error {
	for _, p := range s.probes {
		if p.Name() != s.cfg.Critical {
			continue
		}
		if result := s.probe(ctx, p); result.Status != dto.DependencyUp {
			return fmt.Errorf("%s unavailable: %s", p.Name(), result.Error)
		}
		return nil
	}
	return fmt.Errorf("no probe named %q", s.cfg.Critical)
}

func (s *healthAppServiceImpl) probe(ctx context.Context, p domainservice.DependencyProbe) dto.DependencyHealth {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := p.Probe(ctx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		s.logger.Warn(ctx, "Dependency probe failed",
			logger.String("dependency", p.Name()),
			logger.Error(err),
		)
		return dto.DependencyHealth{Status: dto.DependencyDown, Latency: latency, Error: err.Error()}
	}
	return dto.DependencyHealth{Status: dto.DependencyUp, Latency: latency}
}
