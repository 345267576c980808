package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	up := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checks     map[string]Pinger
		path       string
		wantStatus int
		assertBody func(t *testing.T, body map[string]any)
	}{
		{
			name:       "ready without dependencies",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			assertBody: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "healthy", body["status"])
			},
		},
		{
			name:       "ready reports each check",
			checks:     map[string]Pinger{"database": up, "redis": down},
			path:       "/readyz",
			wantStatus: http.StatusServiceUnavailable,
			assertBody: func(t *testing.T, body map[string]any) {
				checks, ok := body["checks"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "healthy", checks["database"].(map[string]any)["status"])
				assert.Equal(t, "connection refused", checks["redis"].(map[string]any)["error"])
			},
		},
		{
			name:       "health lists unavailable dependencies",
			checks:     map[string]Pinger{"database": down, "redis": up},
			path:       "/health",
			wantStatus: http.StatusServiceUnavailable,
			assertBody: func(t *testing.T, body map[string]any) {
				assert.Equal(t, []any{"database"}, body["unavailable"])
			},
		},
		{
			name:       "health ok",
			checks:     map[string]Pinger{"database": up},
			path:       "/health",
			wantStatus: http.StatusOK,
			assertBody: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "v1", body["version"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks, "v1")
			r := gin.New()
			r.GET("/readyz", h.Readiness)
			r.GET("/health", h.Health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			tt.assertBody(t, body)
		})
	}
}
