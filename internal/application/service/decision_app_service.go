package service

import (
	"context"
	"encoding/json"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/domain/models"
	domainservice "github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// DecisionAppService evaluates DMN decisions on behalf of a caller.
type DecisionAppService interface {
	// Evaluate tags the input with the caller's tenant and returns the engine's result unchanged.
	Evaluate(ctx context.Context, user *models.AuthenticatedUser, decisionKey string, req *dto.EvaluateDecisionRequest) (json.RawMessage, int, error)

	// GetDefinition returns the decision definition document.
	GetDefinition(ctx context.Context, decisionKey string) (json.RawMessage, error)
}

type decisionAppServiceImpl struct {
	engine    domainservice.WorkflowEngine
	isolation *domainservice.TenantIsolation
	logger    logger.Logger
}

// NewDecisionAppService creates a DecisionAppService.
func NewDecisionAppService(engine domainservice.WorkflowEngine, isolation *domainservice.TenantIsolation, log logger.Logger) DecisionAppService {
	return &decisionAppServiceImpl{
		engine:    engine,
		isolation: isolation,
		logger:    log.WithComponent("decision-service"),
	}
}

// Evaluate also returns the number of forwarded variables for the audit trail.
func (s *decisionAppServiceImpl) Evaluate(ctx context.Context, user *models.AuthenticatedUser, decisionKey string, req *dto.EvaluateDecisionRequest) (json.RawMessage, int, error) {
	vars, err := normalizeVariables(req.Variables)
	if err != nil {
		return nil, 0, err
	}
	tagged := s.isolation.TagDecision(user.TenantID, vars)

	s.logger.Info(ctx, "Evaluating decision",
		logger.String("decision_key", decisionKey),
		logger.String("tenant_id", user.TenantID),
		logger.String("user_id", user.UserID),
		logger.Int("variable_count", len(tagged)),
	)

	result, err := s.engine.EvaluateDecision(ctx, decisionKey, tagged)
	if err != nil {
		s.logger.Error(ctx, "Failed to evaluate decision", err,
			logger.String("decision_key", decisionKey),
			logger.String("tenant_id", user.TenantID),
		)
		if upstreamNotFound(err) {
			return nil, len(tagged), errors.ErrDecisionNotFound().WithCause(err)
		}
		return nil, len(tagged), errors.ErrDecisionEvaluationFailed().WithCause(err).WithDetails(upstreamDetail(err))
	}
	return result, len(tagged), nil
}

func (s *decisionAppServiceImpl) GetDefinition(ctx context.Context, decisionKey string) (json.RawMessage, error) {
	definition, err := s.engine.GetDecisionDefinition(ctx, decisionKey)
	if err != nil {
		if upstreamNotFound(err) {
			return nil, errors.ErrDecisionNotFound().WithCause(err)
		}
		s.logger.Error(ctx, "Failed to get decision definition", err, logger.String("decision_key", decisionKey))
		return nil, engineUnavailable(err)
	}
	return definition, nil
}
