package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/application/service"
	"github.com/ronl/business-api/internal/interfaces/http/middleware"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// BRPHandler proxies personen queries to the population registry.
type BRPHandler struct {
	registryService service.RegistryAppService
	logger          logger.Logger
}

// NewBRPHandler creates a BRPHandler.
func NewBRPHandler(registryService service.RegistryAppService, log logger.Logger) *BRPHandler {
	return &BRPHandler{
		registryService: registryService,
		logger:          log.WithComponent("brp-handler"),
	}
}

// FetchPersons forwards the request body and returns the registry's answer.
// POST /v1/brp/personen
func (h *BRPHandler) FetchPersons(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	middleware.SetAuditAction(c, "brp.personen.fetch")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			dto.SendError(c, errors.ErrPayloadTooLarge())
			return
		}
		dto.SendError(c, errors.ErrValidation("Unable to read request body").WithCause(err))
		return
	}
	query := json.RawMessage(body)
	middleware.AddAuditDetails(c, map[string]interface{}{"bsn": service.BSN(query)})

	result, err := h.registryService.FetchPersons(c.Request.Context(), user, query)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, result)
}
