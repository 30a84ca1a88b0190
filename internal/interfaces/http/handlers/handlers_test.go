package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/domain/models"
	domainservice "github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/internal/infrastructure/audit"
	"github.com/ronl/business-api/internal/interfaces/http/middleware"
	"github.com/ronl/business-api/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	utrechtToken   = "token-utrecht"
	amsterdamToken = "token-amsterdam"
)

type stubVerifier map[string]*models.AuthenticatedUser

func (s stubVerifier) Verify(_ context.Context, raw string) (*models.AuthenticatedUser, error) {
	if u, ok := s[raw]; ok {
		return u, nil
	}
	return nil, stderrors.New("unknown token")
}

var verifier = stubVerifier{
	utrechtToken:   models.NewAuthenticatedUser("citizen-1", "utrecht", []string{"citizen"}, models.AssuranceMidden, nil, "Jan Jansen", ""),
	amsterdamToken: models.NewAuthenticatedUser("admin-2", "amsterdam", []string{"admin"}, models.AssuranceHoog, nil, "Els de Vries", ""),
}

// newTestRouter wires request correlation, optional authentication and the
// audit finalizer in front of the routes registered by register.
func newTestRouter(register func(r *gin.Engine)) (*gin.Engine, *audit.Recorder) {
	log := logger.NewNoopLogger()
	recorder := audit.NewRecorder(audit.RecorderConfig{}, nil, nil, log)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Audit(recorder, false), middleware.OptionalJWT(verifier, log))
	register(r)
	return r, recorder
}

func doRequest(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decode unmarshals the envelope, decoding data into out when given.
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) *dto.APIResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *dto.ErrorDTO   `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw), w.Body.String())
	if out != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return &dto.APIResponse{Success: raw.Success, Data: raw.Data, Error: raw.Error}
}

func lastEntry(t *testing.T, recorder *audit.Recorder) *models.AuditLogEntry {
	t.Helper()
	entries, err := recorder.Recent(context.Background(), domainservice.AuditQuery{})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries[0]
}
