package service

import (
	"context"
	"time"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/domain/models"
	domainservice "github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// ProcessAppService runs the process use cases for an authenticated caller.
// Every call that reads engine state re-validates the caller's tenant.
type ProcessAppService interface {
	// StartProcess tags the variables with the caller's tenant and starts the process.
	StartProcess(ctx context.Context, user *models.AuthenticatedUser, processKey string, req *dto.StartProcessRequest) (*models.StartedProcess, error)

	// GetStatus returns the status of an instance owned by the caller's tenant.
	GetStatus(ctx context.Context, user *models.AuthenticatedUser, processInstanceID string) (*models.ProcessStatusView, error)

	// GetVariables returns the plain variable values of an instance.
	GetVariables(ctx context.Context, user *models.AuthenticatedUser, processInstanceID string) (map[string]interface{}, error)

	// Cancel deletes an instance after checking ownership.
	Cancel(ctx context.Context, user *models.AuthenticatedUser, processInstanceID, reason string) (*dto.CancelledProcess, error)
}

type processAppServiceImpl struct {
	engine domainservice.WorkflowEngine
	guard  tenantGuard
	logger logger.Logger
	now    func() time.Time
}

// NewProcessAppService creates a ProcessAppService.
func NewProcessAppService(
	engine domainservice.WorkflowEngine,
	isolation *domainservice.TenantIsolation,
	metrics domainservice.Metrics,
	log logger.Logger,
) ProcessAppService {
	if metrics == nil {
		metrics = domainservice.NewNoopMetrics()
	}
	log = log.WithComponent("process-service")
	return &processAppServiceImpl{
		engine: engine,
		guard:  tenantGuard{isolation: isolation, metrics: metrics, logger: log},
		logger: log,
		now:    time.Now,
	}
}

func (s *processAppServiceImpl) StartProcess(ctx context.Context, user *models.AuthenticatedUser, processKey string, req *dto.StartProcessRequest) (*models.StartedProcess, error) {
	vars, err := normalizeVariables(req.Variables)
	if err != nil {
		return nil, err
	}
	businessKey, tagged := s.guard.isolation.TagProcessStart(user, vars)

	s.logger.Info(ctx, "Starting process",
		logger.String("process_key", processKey),
		logger.String("tenant_id", user.TenantID),
		logger.String("user_id", user.UserID),
	)

	instance, err := s.engine.StartProcess(ctx, processKey, &models.StartProcessRequest{
		BusinessKey: businessKey,
		Variables:   tagged,
	})
	if err != nil {
		s.logger.Error(ctx, "Failed to start process", err,
			logger.String("process_key", processKey),
			logger.String("tenant_id", user.TenantID),
		)
		return nil, errors.ErrProcessStartFailed().WithCause(err).WithDetails(upstreamDetail(err))
	}

	key := instance.BusinessKey
	if key == "" {
		key = businessKey
	}
	return &models.StartedProcess{
		ProcessInstanceID: instance.ID,
		BusinessKey:       key,
		Status:            instance.Status(),
		StartTime:         s.now().UTC(),
	}, nil
}

func (s *processAppServiceImpl) GetStatus(ctx context.Context, user *models.AuthenticatedUser, processInstanceID string) (*models.ProcessStatusView, error) {
	instance, err := s.engine.GetProcessInstance(ctx, processInstanceID)
	if err != nil {
		return nil, s.readError(ctx, err, processInstanceID)
	}
	vars, err := s.engine.GetProcessVariables(ctx, processInstanceID)
	if err != nil {
		return nil, s.readError(ctx, err, processInstanceID)
	}
	if err := s.guard.check(ctx, user, vars, "process", processInstanceID); err != nil {
		return nil, err
	}
	return models.NewProcessStatusView(instance), nil
}

func (s *processAppServiceImpl) GetVariables(ctx context.Context, user *models.AuthenticatedUser, processInstanceID string) (map[string]interface{}, error) {
	vars, err := s.engine.GetProcessVariables(ctx, processInstanceID)
	if err != nil {
		return nil, s.readError(ctx, err, processInstanceID)
	}
	if err := s.guard.check(ctx, user, vars, "process variable", processInstanceID); err != nil {
		return nil, err
	}
	return vars.Plain(), nil
}

func (s *processAppServiceImpl) Cancel(ctx context.Context, user *models.AuthenticatedUser, processInstanceID, reason string) (*dto.CancelledProcess, error) {
	vars, err := s.engine.GetProcessVariables(ctx, processInstanceID)
	if err != nil {
		if upstreamNotFound(err) {
			return nil, errors.ErrProcessNotFound().WithCause(err)
		}
		s.logger.Error(ctx, "Failed to delete process", err, logger.String("process_instance_id", processInstanceID))
		return nil, errors.ErrProcessDeleteFailed().WithCause(err).WithDetails(upstreamDetail(err))
	}
	if err := s.guard.check(ctx, user, vars, "process deletion", processInstanceID); err != nil {
		return nil, err
	}

	if err := s.engine.DeleteProcessInstance(ctx, processInstanceID, reason); err != nil {
		s.logger.Error(ctx, "Failed to delete process", err, logger.String("process_instance_id", processInstanceID))
		return nil, errors.ErrProcessDeleteFailed().WithCause(err).WithDetails(upstreamDetail(err))
	}
	return &dto.CancelledProcess{
		Message:           "Process instance cancelled",
		ProcessInstanceID: processInstanceID,
	}, nil
}

func (s *processAppServiceImpl) readError(ctx context.Context, err error, processInstanceID string) error {
	if upstreamNotFound(err) {
		return errors.ErrProcessNotFound().WithCause(err)
	}
	s.logger.Error(ctx, "Failed to read process", err, logger.String("process_instance_id", processInstanceID))
	return engineUnavailable(err)
}
