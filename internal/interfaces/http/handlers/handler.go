// Package handlers implements the HTTP endpoints of the business API. Handlers
// bind and validate input, call the application services and write the
// response envelope; gates and auditing live in the middleware package.
package handlers

import (
	stderrors "errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/internal/interfaces/http/middleware"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/utils"
)

// requireUser returns the authenticated caller or answers 401.
func requireUser(c *gin.Context) (*models.AuthenticatedUser, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		dto.SendError(c, errors.ErrUnauthorized())
		return nil, false
	}
	return user, true
}

// resourceParam reads a path parameter that is forwarded to the engine as a
// path segment and answers 400 when it is not a plain key.
func resourceParam(c *gin.Context, name string) (string, bool) {
	v := c.Param(name)
	if !utils.ValidResourceKey(v) {
		dto.SendError(c, errors.ErrValidation("Invalid "+name).
			WithDetails(map[string]string{name: "must be 1-255 characters of letters, digits, '_', '.', ':' or '-'"}))
		return "", false
	}
	return v, true
}

// bindJSON decodes an optional JSON body into out. An empty body leaves out
// untouched.
func bindJSON(c *gin.Context, out interface{}) bool {
	err := c.ShouldBindJSON(out)
	switch {
	case err == nil, stderrors.Is(err, io.EOF):
		return true
	case middleware.IsBodyTooLarge(err):
		dto.SendError(c, errors.ErrPayloadTooLarge())
	default:
		dto.SendError(c, errors.ErrValidation("Invalid JSON body").WithCause(err))
	}
	return false
}
