package middleware

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

func TestGate_RequireAssurance(t *testing.T) {
	gate := NewGate(nil, logger.NewNoopLogger())
	levels := models.AssuranceLevels()

	for _, have := range levels {
		for _, want := range levels {
			t.Run(fmt.Sprintf("%s_vs_%s", have, want), func(t *testing.T) {
				r := gin.New()
				r.GET("/", withUser(user("utrecht", have)), gate.RequireAssurance(want), ok)

				w := perform(t, r, http.MethodGet, "/", nil)

				if have.Rank() >= want.Rank() {
					assert.Equal(t, http.StatusOK, w.Code)
					return
				}
				assert.Equal(t, http.StatusForbidden, w.Code)
				errDTO := decodeError(t, w)
				assert.Equal(t, errors.CodeInsufficientAssurance, errDTO.Code)
				assert.Equal(t, fmt.Sprintf("Assurance level '%s' or higher required", want), errDTO.Message)
			})
		}
	}
}

func TestGate_RequireAssurance_Unauthenticated(t *testing.T) {
	gate := NewGate(nil, logger.NewNoopLogger())
	r := gin.New()
	r.GET("/", gate.RequireAssurance(models.AssuranceBasis), ok)

	w := perform(t, r, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errors.CodeUnauthorized, decodeError(t, w).Code)
}

func TestGate_RequireRoles(t *testing.T) {
	gate := NewGate(nil, logger.NewNoopLogger())

	tests := []struct {
		name   string
		roles  []string
		status int
	}{
		{"holds required role", []string{"citizen", "admin"}, http.StatusOK},
		{"holds one of several", []string{"caseworker"}, http.StatusOK},
		{"no overlap", []string{"citizen"}, http.StatusForbidden},
		{"no roles", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", withUser(user("utrecht", models.AssuranceHoog, tt.roles...)), gate.RequireRoles("admin", "caseworker"), ok)

			w := perform(t, r, http.MethodGet, "/", nil)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusForbidden {
				errDTO := decodeError(t, w)
				assert.Equal(t, errors.CodeForbidden, errDTO.Code)
				assert.Equal(t, "Insufficient permissions", errDTO.Message)
			}
		})
	}

	t.Run("unauthenticated", func(t *testing.T) {
		r := gin.New()
		r.GET("/", gate.RequireRoles("admin"), ok)
		w := perform(t, r, http.MethodGet, "/", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
