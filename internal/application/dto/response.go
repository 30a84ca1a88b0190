// Package dto holds the JSON envelope shared by every API response.
package dto

import (
	"github.com/gin-gonic/gin"

	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
)

// APIResponse is the response envelope: {success, data?, error?}.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorDTO   `json:"error,omitempty"`
}

// ErrorDTO is the error member of a failed response.
type ErrorDTO struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps data in a success envelope.
func SuccessResponse(data interface{}) *APIResponse {
	return &APIResponse{Success: true, Data: data}
}

// ErrorResponse converts err into a failure envelope and its HTTP status.
// Errors without a code become INTERNAL_ERROR. Details are dropped unless
// exposeDetails is set or they describe the client's own request.
func ErrorResponse(err error, exposeDetails bool) (int, *APIResponse) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.ErrInternal()
		if exposeDetails && err != nil {
			appErr = appErr.WithDetails(err.Error())
		}
	}

	dto := &ErrorDTO{Code: appErr.Code(), Message: appErr.Message()}
	if exposeDetails || clientFacingDetails[appErr.Code()] {
		dto.Details = appErr.Details()
	}
	return appErr.HTTPStatus(), &APIResponse{Success: false, Error: dto}
}

// SendSuccess writes a success envelope.
func SendSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse(data))
}

// SendError writes a failure envelope and aborts the handler chain. The error
// is attached to the context for the access log.
func SendError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := ErrorResponse(err, ExposeDetails(c))
	c.AbortWithStatusJSON(status, body)
}

// ExposeDetails reports whether error details may be sent on this request.
func ExposeDetails(c *gin.Context) bool {
	return c.GetBool(string(constants.ContextKeyExposeErrorDetails))
}

// Codes whose details describe the client's own input.
var clientFacingDetails = map[string]bool{
	errors.CodeValidation:  true,
	errors.CodeBRPAPIError: true,
}
