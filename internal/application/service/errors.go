package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/ronl/business-api/internal/domain/models"
	domainservice "github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// upstreamNotFound reports whether the gateway answered 404.
func upstreamNotFound(err error) bool {
	return domainservice.UpstreamStatus(err) == http.StatusNotFound
}

// upstreamDetail extracts the upstream message for error details.
func upstreamDetail(err error) string {
	var failure domainservice.UpstreamFailure
	if stderrors.As(err, &failure) {
		return failure.UpstreamMessage()
	}
	return err.Error()
}

// engineUnavailable wraps a failed read against the workflow engine.
func engineUnavailable(err error) errors.AppError {
	return errors.ErrServiceUnavailable("Workflow engine unavailable").
		WithCause(err).
		WithDetails(upstreamDetail(err))
}

// normalizeVariables converts client variables, mapping bad input to VALIDATION_ERROR.
func normalizeVariables(raw map[string]json.RawMessage) (models.VariableMap, error) {
	vars, err := models.NormalizeVariables(raw)
	if err != nil {
		return nil, errors.ErrValidation("Invalid variables").
			WithCause(err).
			WithDetails(map[string]string{"variables": err.Error()})
	}
	return vars, nil
}

// tenantGuard re-validates tenant ownership of data returned by a gateway.
type tenantGuard struct {
	isolation *domainservice.TenantIsolation
	metrics   domainservice.Metrics
	logger    logger.Logger
}

func (g tenantGuard) check(ctx context.Context, user *models.AuthenticatedUser, vars models.VariableMap, resource, id string) error {
	err := g.isolation.CheckVariables(user.TenantID, vars)
	if err == nil {
		return nil
	}
	g.metrics.RecordTenantViolation(user.TenantID)
	g.logger.Warn(ctx, "Tenant mismatch on "+resource+" access",
		logger.String("resource_id", id),
		logger.String("user_tenant", user.TenantID),
		logger.Any("resource_tenant", vars[constants.VariableMunicipality].Value),
	)
	return err
}
