package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/ronl/business-api/internal/domain/models"
)

// MockWorkflowEngine is a mock implementation of service.WorkflowEngine
type MockWorkflowEngine struct {
	mock.Mock
}

func (m *MockWorkflowEngine) StartProcess(ctx context.Context, processKey string, req *models.StartProcessRequest) (*models.ProcessInstance, error) {
	args := m.Called(ctx, processKey, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProcessInstance), args.Error(1)
}

func (m *MockWorkflowEngine) GetProcessInstance(ctx context.Context, processInstanceID string) (*models.ProcessInstance, error) {
	args := m.Called(ctx, processInstanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProcessInstance), args.Error(1)
}

func (m *MockWorkflowEngine) GetProcessVariables(ctx context.Context, processInstanceID string) (models.VariableMap, error) {
	args := m.Called(ctx, processInstanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.VariableMap), args.Error(1)
}

func (m *MockWorkflowEngine) DeleteProcessInstance(ctx context.Context, processInstanceID, reason string) error {
	args := m.Called(ctx, processInstanceID, reason)
	return args.Error(0)
}

func (m *MockWorkflowEngine) EvaluateDecision(ctx context.Context, decisionKey string, variables models.VariableMap) (json.RawMessage, error) {
	args := m.Called(ctx, decisionKey, variables)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockWorkflowEngine) GetDecisionDefinition(ctx context.Context, decisionKey string) (json.RawMessage, error) {
	args := m.Called(ctx, decisionKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockWorkflowEngine) ListTasks(ctx context.Context, assignee, tenantID string) ([]models.Task, error) {
	args := m.Called(ctx, assignee, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Task), args.Error(1)
}

func (m *MockWorkflowEngine) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockWorkflowEngine) GetTaskVariables(ctx context.Context, taskID string) (models.VariableMap, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.VariableMap), args.Error(1)
}

func (m *MockWorkflowEngine) ClaimTask(ctx context.Context, taskID, userID string) error {
	args := m.Called(ctx, taskID, userID)
	return args.Error(0)
}

func (m *MockWorkflowEngine) CompleteTask(ctx context.Context, taskID string, req *models.CompleteTaskRequest) error {
	args := m.Called(ctx, taskID, req)
	return args.Error(0)
}

func (m *MockWorkflowEngine) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
