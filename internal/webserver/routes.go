package webserver

import (
	"encoding/json"
	"net/http"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/webapi"
)

// registerRoutes sets up the API routes on the given mux.
func registerRoutes(mux *http.ServeMux, cfg Config) {
	webapi.RegisterRoutes(mux, cfg.Deps)
	mux.HandleFunc("/api/", handleAPINotFound)
	mux.HandleFunc("GET /{$}", handleIndex)
}

// handleAPINotFound returns a JSON 404 for unknown API endpoints.
func handleAPINotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(webapi.ErrorResponse{Error: "not found"}) //nolint:errcheck
}

// handleIndex lists the API entry points.
func handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"service": "opsdecide",
		"version": webapi.Version,
		"endpoints": []string{
			"POST /api/analyze",
			"GET /api/insights",
			"GET /api/categories",
			"POST /api/quick-recommend",
			"GET /api/health",
			"POST /api/outcomes",
			"POST /api/train",
			"GET /api/train",
		},
	})
}
