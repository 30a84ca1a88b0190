package service

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ronl/business-api/internal/application/dto"
	domainservice "github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/internal/domain/service/mocks"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/logger"
)

func probe(name string, err error) *mocks.MockDependencyProbe {
	p := &mocks.MockDependencyProbe{ProbeName: name}
	p.On("Probe", mock.Anything).Return(err)
	return p
}

func newHealthService(probes ...domainservice.DependencyProbe) HealthAppService {
	return NewHealthAppService(HealthConfig{
		Version:     "1.4.0",
		Environment: "test",
		Critical:    "operaton",
	}, probes, logger.NewNoopLogger())
}

func TestHealthAppService_CheckHealthy(t *testing.T) {
	svc := newHealthService(probe("keycloak", nil), probe("operaton", nil))

	report := svc.Check(context.Background())

	assert.True(t, report.Healthy())
	assert.Equal(t, constants.DisplayName, report.Name)
	assert.Equal(t, "1.4.0", report.Version)
	assert.Equal(t, "test", report.Environment)
	require.Len(t, report.Dependencies, 2)
	assert.Equal(t, dto.DependencyUp, report.Dependencies["keycloak"].Status)
	assert.Equal(t, dto.DependencyUp, report.Dependencies["operaton"].Status)
}

func TestHealthAppService_CheckDegraded(t *testing.T) {
	svc := newHealthService(probe("keycloak", stderrors.New("connection refused")), probe("operaton", nil))

	report := svc.Check(context.Background())

	assert.False(t, report.Healthy())
	assert.Equal(t, dto.HealthDegraded, report.Status)
	assert.Equal(t, dto.DependencyDown, report.Dependencies["keycloak"].Status)
	assert.Equal(t, "connection refused", report.Dependencies["keycloak"].Error)
}

func TestHealthAppService_Ready(t *testing.T) {
	broker := probe("keycloak", stderrors.New("down"))
	assert.NoError(t, newHealthService(broker, probe("operaton", nil)).Ready(context.Background()),
		"only the critical dependency decides readiness")
	broker.AssertNotCalled(t, "Probe", mock.Anything)

	err := newHealthService(probe("operaton", stderrors.New("timeout"))).Ready(context.Background())
	assert.ErrorContains(t, err, "operaton unavailable")

	assert.Error(t, newHealthService().Ready(context.Background()))
}
