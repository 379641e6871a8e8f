// Package server wires the relay's HTTP surface.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const ServiceName = "translation-relay"

// Health is the liveness payload.
type Health struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// NewHealth reports the service as healthy at now.
func NewHealth(now time.Time) Health {
	return Health{
		Status:    "healthy",
		Service:   ServiceName,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// NewRouter mounts the WebSocket endpoint at /ws and liveness at /health,
// behind CORS that allows any origin.
func NewRouter(ws http.Handler) http.Handler {
	r := mux.NewRouter()
	r.Handle("/ws", ws)
	r.HandleFunc("/health", healthHandler(time.Now)).Methods(http.MethodGet)

	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r)
}

func healthHandler(now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(NewHealth(now()))
	}
}
