package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsekit/pulsekit-go/pkg/ingest"
	"github.com/pulsekit/pulsekit-go/pkg/storage/memory"
)

func newTestRouter(t *testing.T, keys ...string) http.Handler {
	t.Helper()
	c := InitializeComponents(Config{Storage: StorageMemory, APIKeys: keys}, memory.New())
	return NewRouter(c, "4000")
}

func do(router http.Handler, method, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if key != "" {
		req.Header.Set("X-PulseKit-Key", key)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouter_IngestAndQuery(t *testing.T) {
	router := newTestRouter(t, "secret")

	rr := do(router, http.MethodPost, "/api/v1/events", "secret", `{"type":"error","level":"error","message":"boom"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(router, http.MethodPost, "/api/v1/events/batch", "secret", `{"events":[{"type":"a"},{"type":"b"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(router, http.MethodPost, "/api/v1/events", "wrong", `{"type":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(router, http.MethodGet, "/api/v1/events?type=error", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ingest.QueryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "boom", resp.Events[0].Event.Message)

	rr = do(router, http.MethodGet, "/api/v1/stats", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total_events":3`)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/api/v1/events/batch"},
		{http.MethodGet, "/api/v1/events/batch"},
		{http.MethodDelete, "/api/v1/events"},
		{http.MethodPost, "/api/v1/stats"},
		{http.MethodGet, "/api/v1/import"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := do(router, tt.method, tt.path, "", "")
			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
		})
	}

	rr := do(router, http.MethodGet, "/api/v1/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t)

	rr := do(router, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, Version, resp.Version)
	assert.Equal(t, "retention", resp.Retention.Name)
}

func TestRouter_StorageUsageMemory(t *testing.T) {
	router := newTestRouter(t)

	rr := do(router, http.MethodGet, "/api/v1/storage", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"used_bytes":0,"max_bytes":0}`, rr.Body.String())
}

func TestCORSMiddleware(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:4000", true},
		{"http://127.0.0.1:3000", true},
		{"http://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			if tt.allowed {
				assert.Equal(t, tt.origin, rr.Header().Get("Access-Control-Allow-Origin"))
				assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-PulseKit-Key")
			} else {
				assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestRouter_ExportImport(t *testing.T) {
	router := newTestRouter(t)

	rr := do(router, http.MethodPost, "/api/v1/events", "k", `{"type":"error","message":"boom"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(router, http.MethodGet, "/api/v1/export", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	backup := rr.Body.String()
	assert.Contains(t, backup, `"event_count": 1`)

	other := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", bytes.NewBufferString(backup))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	other.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"events_imported":1`)
}
