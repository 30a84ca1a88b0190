package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/internal/domain/service"
)

// MockPopulationRegistry is a mock implementation of service.PopulationRegistry
type MockPopulationRegistry struct {
	mock.Mock
}

func (m *MockPopulationRegistry) FetchPersons(ctx context.Context, query json.RawMessage) (json.RawMessage, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// MockAuditSink is a mock implementation of service.AuditSink
type MockAuditSink struct {
	mock.Mock
}

func (m *MockAuditSink) Name() string {
	return "mock"
}

func (m *MockAuditSink) Write(ctx context.Context, entry *models.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockRateLimiter is a mock implementation of service.RateLimiter
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string) (*service.RateLimitDecision, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RateLimitDecision), args.Error(1)
}

// MockDependencyProbe is a mock implementation of service.DependencyProbe
type MockDependencyProbe struct {
	mock.Mock
	ProbeName string
}

func (m *MockDependencyProbe) Name() string {
	return m.ProbeName
}

func (m *MockDependencyProbe) Probe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
