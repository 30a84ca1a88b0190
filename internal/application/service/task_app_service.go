package service

import (
	"context"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/domain/models"
	domainservice "github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// TaskAppService exposes the caller's user tasks.
type TaskAppService interface {
	ListMine(ctx context.Context, user *models.AuthenticatedUser) ([]models.Task, error)
	Get(ctx context.Context, user *models.AuthenticatedUser, taskID string) (*dto.TaskDetails, error)
	Claim(ctx context.Context, user *models.AuthenticatedUser, taskID string) error
	Complete(ctx context.Context, user *models.AuthenticatedUser, taskID string, req *dto.CompleteTaskRequest) error
}

type taskAppServiceImpl struct {
	engine domainservice.WorkflowEngine
	guard  tenantGuard
	logger logger.Logger
}

// NewTaskAppService creates a TaskAppService.
func NewTaskAppService(
	engine domainservice.WorkflowEngine,
	isolation *domainservice.TenantIsolation,
	metrics domainservice.Metrics,
	log logger.Logger,
) TaskAppService {
	if metrics == nil {
		metrics = domainservice.NewNoopMetrics()
	}
	log = log.WithComponent("task-service")
	return &taskAppServiceImpl{
		engine: engine,
		guard:  tenantGuard{isolation: isolation, metrics: metrics, logger: log},
		logger: log,
	}
}

func (s *taskAppServiceImpl) ListMine(ctx context.Context, user *models.AuthenticatedUser) ([]models.Task, error) {
	tasks, err := s.engine.ListTasks(ctx, user.UserID, s.guard.isolation.TaskTenant(user.TenantID))
	if err != nil {
		s.logger.Error(ctx, "Failed to get user tasks", err,
			logger.String("user_id", user.UserID),
			logger.String("tenant_id", user.TenantID),
		)
		return nil, errors.ErrTaskOperationFailed("Failed to list tasks").WithCause(err).WithDetails(upstreamDetail(err))
	}
	return tasks, nil
}

func (s *taskAppServiceImpl) Get(ctx context.Context, user *models.AuthenticatedUser, taskID string) (*dto.TaskDetails, error) {
	task, err := s.engine.GetTask(ctx, taskID)
	if err != nil {
		return nil, s.readError(ctx, err, taskID)
	}
	vars, err := s.ownedVariables(ctx, user, taskID)
	if err != nil {
		return nil, err
	}
	return &dto.TaskDetails{Task: task, Variables: vars.Plain()}, nil
}

func (s *taskAppServiceImpl) Claim(ctx context.Context, user *models.AuthenticatedUser, taskID string) error {
	if _, err := s.ownedVariables(ctx, user, taskID); err != nil {
		return err
	}
	if err := s.engine.ClaimTask(ctx, taskID, user.UserID); err != nil {
		return s.writeError(ctx, err, taskID, "Failed to claim task")
	}
	return nil
}

func (s *taskAppServiceImpl) Complete(ctx context.Context, user *models.AuthenticatedUser, taskID string, req *dto.CompleteTaskRequest) error {
	vars, err := normalizeVariables(req.Variables)
	if err != nil {
		return err
	}
	if _, err := s.ownedVariables(ctx, user, taskID); err != nil {
		return err
	}
	if err := s.engine.CompleteTask(ctx, taskID, &models.CompleteTaskRequest{Variables: vars}); err != nil {
		return s.writeError(ctx, err, taskID, "Failed to complete task")
	}
	return nil
}

// ownedVariables fetches the task's variables and checks the tenant tag.
func (s *taskAppServiceImpl) ownedVariables(ctx context.Context, user *models.AuthenticatedUser, taskID string) (models.VariableMap, error) {
	vars, err := s.engine.GetTaskVariables(ctx, taskID)
	if err != nil {
		return nil, s.readError(ctx, err, taskID)
	}
	if err := s.guard.check(ctx, user, vars, "task", taskID); err != nil {
		return nil, err
	}
	return vars, nil
}

func (s *taskAppServiceImpl) readError(ctx context.Context, err error, taskID string) error {
	if upstreamNotFound(err) {
		return errors.ErrTaskNotFound().WithCause(err)
	}
	s.logger.Error(ctx, "Failed to read task", err, logger.String("task_id", taskID))
	return engineUnavailable(err)
}

func (s *taskAppServiceImpl) writeError(ctx context.Context, err error, taskID, message string) error {
	if upstreamNotFound(err) {
		return errors.ErrTaskNotFound().WithCause(err)
	}
	s.logger.Error(ctx, message, err, logger.String("task_id", taskID))
	return errors.ErrTaskOperationFailed(message).WithCause(err).WithDetails(upstreamDetail(err))
}
