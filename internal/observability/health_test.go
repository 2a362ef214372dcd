package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthHandlerServesFixedPath(t *testing.T) {
	hc := NewHealthChecker("kafka-consumer", "/health", zap.NewNop())
	handler := hc.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Status)
	assert.Equal(t, "kafka-consumer", resp.Service)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestHealthHandlerRejectsOtherPaths(t *testing.T) {
	hc := NewHealthChecker("kafka-consumer", "/health", zap.NewNop())
	handler := hc.Handler()

	for _, path := range []string{"/", "/healthz", "/metrics", "/health/extra"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
	}
}
