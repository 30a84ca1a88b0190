package dto

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
)

func TestErrorResponse(t *testing.T) {
	t.Run("app error keeps code and status", func(t *testing.T) {
		status, body := ErrorResponse(errors.ErrTenantMismatch(), false)
		assert.Equal(t, http.StatusForbidden, status)
		assert.False(t, body.Success)
		assert.Equal(t, errors.CodeTenantMismatch, body.Error.Code)
		assert.Equal(t, "Access denied: municipality mismatch", body.Error.Message)
	})

	t.Run("unknown error is sanitized", func(t *testing.T) {
		status, body := ErrorResponse(stderrors.New("dial tcp 10.0.0.5:8080: connection refused"), false)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, errors.CodeInternal, body.Error.Code)
		assert.Nil(t, body.Error.Details)
	})

	t.Run("details outside production", func(t *testing.T) {
		_, body := ErrorResponse(stderrors.New("connection refused"), true)
		assert.Equal(t, "connection refused", body.Error.Details)

		_, body = ErrorResponse(errors.ErrDecisionEvaluationFailed().WithDetails("engine said no"), false)
		assert.Nil(t, body.Error.Details)
	})

	t.Run("client facing details are always sent", func(t *testing.T) {
		_, body := ErrorResponse(errors.ErrValidation("bad").WithDetails(map[string]string{"key": "invalid"}), false)
		assert.Equal(t, map[string]string{"key": "invalid"}, body.Error.Details)
	})
}

func TestSendHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	SendSuccess(c, http.StatusCreated, gin.H{"id": "pi-1"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"id":"pi-1"}}`, w.Body.String())

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Set(string(constants.ContextKeyExposeErrorDetails), true)
	SendError(c, errors.ErrProcessStartFailed().WithDetails("HTTP 500"))
	assert.True(t, c.IsAborted())
	assert.Len(t, c.Errors, 1)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.CodeProcessStartFailed, resp.Error.Code)
	assert.Equal(t, "HTTP 500", resp.Error.Details)
}
