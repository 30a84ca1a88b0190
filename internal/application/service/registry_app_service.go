package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/ronl/business-api/internal/domain/models"
	domainservice "github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
	"github.com/tidwall/gjson"
)

// RegistryAppService proxies BRP personen queries.
type RegistryAppService interface {
	FetchPersons(ctx context.Context, user *models.AuthenticatedUser, query json.RawMessage) (json.RawMessage, error)
}

type registryAppServiceImpl struct {
	registry domainservice.PopulationRegistry
	logger   logger.Logger
}

// NewRegistryAppService creates a RegistryAppService.
func NewRegistryAppService(registry domainservice.PopulationRegistry, log logger.Logger) RegistryAppService {
	return &registryAppServiceImpl{registry: registry, logger: log.WithComponent("brp-service")}
}

// FetchPersons forwards query unchanged. Upstream 4xx answers keep their status
// and body; everything else becomes a BRP_API_ERROR with the upstream status or 500.
func (s *registryAppServiceImpl) FetchPersons(ctx context.Context, user *models.AuthenticatedUser, query json.RawMessage) (json.RawMessage, error) {
	if !json.Valid(query) {
		return nil, errors.ErrValidation("Request body must be a JSON object")
	}
	s.logger.Info(ctx, "BRP personen request",
		logger.String("user_id", user.UserID),
		logger.String("tenant_id", user.TenantID),
		logger.String("query_type", gjson.GetBytes(query, "type").String()),
	)

	body, err := s.registry.FetchPersons(ctx, query)
	if err == nil {
		return body, nil
	}

	var failure domainservice.UpstreamFailure
	if !stderrors.As(err, &failure) {
		return nil, errors.ErrBRPAPI(http.StatusInternalServerError, "BRP API request failed").WithCause(err)
	}
	status := failure.UpstreamStatus()
	appErr := errors.ErrBRPAPI(status, failure.UpstreamMessage()).WithCause(err)
	if upstream := failure.UpstreamBody(); len(upstream) > 0 {
		appErr = appErr.WithDetails(upstream)
	}
	return nil, appErr
}

// BSN returns the first burgerservicenummer of a personen query, for the audit trail.
func BSN(query json.RawMessage) string {
	return gjson.GetBytes(query, "burgerservicenummer.0").String()
}
