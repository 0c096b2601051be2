package main

import (
	"errors"
	"log"
	"math/rand"
	"net/http"
	"time"
)

// errorRate is the share of /api/users requests that fail with a 500
var errorRate float32 = 0.1

// setupHandlers configures the demo app's endpoints. Failures and panics are
// reported by the PulseKit middleware wrapping mux.
func setupHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/users", handleUsers)
	mux.HandleFunc("/api/orders/{id}", handleOrder)
	mux.HandleFunc("/api/panic", handlePanic)
	mux.HandleFunc("/health", handleHealth)
}

// handleUsers randomly fails to show 5xx capture
func handleUsers(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)

	if rand.Float32() < errorRate {
		log.Printf("ERROR: /api/users request failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"users": [{"id": 1, "name": "Alice"}, {"id": 2, "name": "Bob"}]}`))
}

// handleOrder returns a mock order, 503 for order 0
func handleOrder(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") == "0" {
		http.Error(w, "order service unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"id": "` + r.PathValue("id") + `", "total": 99.99}`))
}

// handlePanic panics to show panic capture
func handlePanic(w http.ResponseWriter, r *http.Request) {
	panic(errors.New("demo panic: nil order"))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status": "healthy"}`))
}
