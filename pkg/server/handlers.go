package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/pulsekit/pulsekit-go/pkg/httpx"
	"github.com/pulsekit/pulsekit-go/pkg/sdk/transport"
	"github.com/pulsekit/pulsekit-go/pkg/server/monitor"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

var startTime = time.Now()

// StorageUsage represents current storage usage stats.
type StorageUsage struct {
	UsedBytes int64 `json:"used_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string             `json:"status"`
	Version   string             `json:"version"`
	Uptime    string             `json:"uptime"`
	Retention monitor.TaskStatus `json:"retention"`
}

// handleHealth returns service health status. A retention task that has
// not run yet does not degrade health.
func handleHealth(retention *monitor.TaskMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := retention.Status()
		overall := "healthy"
		code := http.StatusOK

		if status.LastAttempt != "" && !status.Healthy {
			overall = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.RespondJSON(w, code, HealthResponse{
			Status:    overall,
			Version:   Version,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			Retention: status,
		})
	}
}

// handleStorageUsage returns current storage usage. Memory storage reports zeros.
func handleStorageUsage(sm *monitor.StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sm == nil {
			httpx.RespondJSON(w, http.StatusOK, StorageUsage{})
			return
		}

		used, err := sm.GetUsage()
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		httpx.RespondJSON(w, http.StatusOK, StorageUsage{
			UsedBytes: used,
			MaxBytes:  sm.GetLimit(),
		})
	}
}

const apiPrefix = "/api/v1"

// NewRouter creates a router serving every sink endpoint.
func NewRouter(c Components, port string) *mux.Router {
	router := mux.NewRouter()
	SetupRoutes(router, c, port)
	return router
}

// SetupRoutes configures all HTTP routes for the sink.
func SetupRoutes(router *mux.Router, c Components, port string) {
	router.Use(corsMiddleware(port))

	// All /api/v1 routes share one subrouter; a sibling top-level route
	// would have its 405 overwritten by the subrouter's 404.
	api := router.PathPrefix(apiPrefix).Subrouter()

	// Ingestion paths match what the SDK transport posts to
	api.HandleFunc(strings.TrimPrefix(transport.SingleEventPath, apiPrefix), c.Ingest.HandleEvent).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc(strings.TrimPrefix(transport.BatchEventPath, apiPrefix), c.Ingest.HandleBatch).Methods(http.MethodPost, http.MethodOptions)

	api.HandleFunc("/events", c.Ingest.HandleQuery).Methods(http.MethodGet)
	api.HandleFunc("/stats", c.Ingest.HandleStats).Methods(http.MethodGet)
	api.HandleFunc("/storage", handleStorageUsage(c.StorageMonitor)).Methods(http.MethodGet)
	api.HandleFunc("/ws", c.Hub.HandleWebSocket).Methods(http.MethodGet)

	// Backup & restore
	api.HandleFunc("/export", c.Export.HandleExport).Methods(http.MethodGet)
	api.HandleFunc("/import", c.Export.HandleImport).Methods(http.MethodPost)

	router.HandleFunc("/health", handleHealth(c.RetentionMonitor)).Methods(http.MethodGet)
}

// corsMiddleware restricts browser access to localhost origins.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:" + port: true,
		"http://127.0.0.1:" + port: true,
		"http://localhost:3000":    true,
		"http://127.0.0.1:3000":    true,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+transport.APIKeyHeader)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
