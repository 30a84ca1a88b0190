package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ronl/business-api/internal/application/dto"
	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/internal/infrastructure/crypto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubVerifier maps raw tokens to users; anything else is rejected.
type stubVerifier map[string]*models.AuthenticatedUser

func (s stubVerifier) Verify(_ context.Context, raw string) (*models.AuthenticatedUser, error) {
	if user, ok := s[raw]; ok {
		return user, nil
	}
	return nil, &crypto.VerificationError{Kind: crypto.KindUnknownSigningKey, Err: fmt.Errorf("no key for %q", raw)}
}

// memoryRecorder collects audit entries.
type memoryRecorder struct {
	mu      sync.Mutex
	entries []*models.AuditLogEntry
}

func (r *memoryRecorder) Record(_ context.Context, entry *models.AuditLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *memoryRecorder) all() []*models.AuditLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AuditLogEntry(nil), r.entries...)
}

func user(tenant string, level models.AssuranceLevel, roles ...string) *models.AuthenticatedUser {
	return models.NewAuthenticatedUser("user-"+tenant, tenant, roles, level, nil, "Test User", "")
}

// withUser attaches u the way RequireJWT does.
func withUser(u *models.AuthenticatedUser) gin.HandlerFunc {
	return func(c *gin.Context) {
		setUser(c, u)
		c.Next()
	}
}

func ok(c *gin.Context) {
	dto.SendSuccess(c, http.StatusOK, gin.H{"ok": true})
}

func perform(t *testing.T, r http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorDTO {
	t.Helper()
	var body dto.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.NotNil(t, body.Error)
	return body.Error
}
