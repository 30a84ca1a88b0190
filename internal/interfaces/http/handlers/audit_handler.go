package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/application/dto"
	domainservice "github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// AuditHandler serves the audit trail of the caller's municipality.
type AuditHandler struct {
	reader domainservice.AuditReader
	logger logger.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(reader domainservice.AuditReader, log logger.Logger) *AuditHandler {
	return &AuditHandler{reader: reader, logger: log.WithComponent("audit-handler")}
}

// ListEntries returns the newest audit entries of the caller's tenant.
// GET /v1/audit?limit=N
func (h *AuditHandler) ListEntries(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	limit := constants.DefaultAuditQueryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > constants.MaxAuditQueryLimit {
			dto.SendError(c, errors.ErrValidation("Invalid limit").
				WithDetails(map[string]string{"limit": "must be between 1 and " + strconv.Itoa(constants.MaxAuditQueryLimit)}))
			return
		}
		limit = n
	}

	entries, err := h.reader.Recent(c.Request.Context(), domainservice.AuditQuery{
		TenantID: user.TenantID,
		UserID:   c.Query("userId"),
		Limit:    limit,
	})
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to read audit log", err, logger.String("tenant_id", user.TenantID))
		dto.SendError(c, errors.ErrInternal().WithCause(err))
		return
	}
	dto.SendSuccess(c, http.StatusOK, &dto.AuditLogResponse{Entries: entries, Count: len(entries)})
}
