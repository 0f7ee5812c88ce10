package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/backend"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/catalog"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/quick"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/validation"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0-dev"

const (
	maxScenarioBytes = 1 << 20
	maxTrainingBytes = 64 << 20
)

// Analyzer turns a scenario into an analysis. It never fails;
// analysis.Dispatcher implements it.
type Analyzer interface {
	Analyze(ctx context.Context, scenario *models.DecisionScenario) *models.DecisionAnalysis
}

// InsightsStore serves aggregates and accepts outcome reports.
// insights.Aggregator implements it.
type InsightsStore interface {
	Snapshot() models.Insights
	RecordOutcome(ctx context.Context, o models.OutcomeReport) error
}

// BackendProbe reports on the external analysis backend.
type BackendProbe interface {
	Available() bool
	LastCheck() time.Time
}

// Trainer runs backend training in the background.
type Trainer interface {
	Start(ctx context.Context, payload []byte) error
	Status() backend.TrainingStatus
}

// Deps are the services behind the handlers. Backend and Trainer are nil
// when no backend is configured.
type Deps struct {
	Analyzer Analyzer
	Insights InsightsStore
	Backend  BackendProbe
	Trainer  Trainer
}

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// HandleAnalyze scores a scenario. Only a malformed request is an error;
// backend trouble shows up in the method field.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxScenarioBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}

	scenario, err := validation.ParseScenario(body)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}

	a := h.deps.Analyzer.Analyze(r.Context(), scenario)
	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Success:  true,
		Analysis: a,
		Method:   a.AnalysisMethod,
	})
}

// HandleInsights returns the current aggregate snapshot.
func (h *Handlers) HandleInsights(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, InsightsResponse{
		Success:  true,
		Insights: h.deps.Insights.Snapshot(),
	})
}

// HandleCategories returns the static scenario catalogue.
func (h *Handlers) HandleCategories(w http.ResponseWriter, _ *http.Request) {
	cats, err := catalog.Categories()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{Success: true, Categories: cats})
}

// HandleQuickRecommend returns a canned plan for a type and urgency.
func (h *Handlers) HandleQuickRecommend(w http.ResponseWriter, r *http.Request) {
	var req QuickRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, QuickResponse{
		Success:        true,
		Recommendation: quick.Lookup(req.ScenarioType, req.Urgency, req.Context),
	})
}

// HandleHealth reports capabilities and when the backend was last probed.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: Version,
		Capabilities: Capabilities{
			RuleBasedFallback: true,
			Training:          h.deps.Trainer != nil,
		},
		SupportedScenarioTypes: models.AllScenarioTypes(),
	}
	if h.deps.Backend != nil {
		resp.Capabilities.MLAnalysis = h.deps.Backend.Available()
		if ts := h.deps.Backend.LastCheck(); !ts.IsZero() {
			resp.LastCheck = &ts
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleOutcome records operator feedback on a past analysis.
func (h *Handlers) HandleOutcome(w http.ResponseWriter, r *http.Request) {
	var report models.OutcomeReport
	if err := decodeBody(w, r, &report); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.deps.Insights.RecordOutcome(r.Context(), report); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// HandleTrainStart launches a training run with the request body as input.
func (h *Handlers) HandleTrainStart(w http.ResponseWriter, r *http.Request) {
	if h.deps.Trainer == nil {
		writeError(w, http.StatusServiceUnavailable, "no analysis backend configured")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTrainingBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}

	if err := h.deps.Trainer.Start(r.Context(), payload); err != nil {
		switch {
		case errors.Is(err, backend.ErrTrainingInProgress):
			writeJSON(w, http.StatusConflict, TrainingResponse{Success: false, Status: h.deps.Trainer.Status()})
		case errors.Is(err, backend.ErrTrainerStopped):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, TrainingResponse{Success: true, Status: h.deps.Trainer.Status()})
}

// HandleTrainStatus reports the trainer state.
func (h *Handlers) HandleTrainStatus(w http.ResponseWriter, _ *http.Request) {
	if h.deps.Trainer == nil {
		writeError(w, http.StatusServiceUnavailable, "no analysis backend configured")
		return
	}
	writeJSON(w, http.StatusOK, TrainingResponse{Success: true, Status: h.deps.Trainer.Status()})
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, deps Deps) {
	h := NewHandlers(deps)
	mux.HandleFunc("POST /api/analyze", h.HandleAnalyze)
	mux.HandleFunc("GET /api/insights", h.HandleInsights)
	mux.HandleFunc("GET /api/categories", h.HandleCategories)
	mux.HandleFunc("POST /api/quick-recommend", h.HandleQuickRecommend)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("POST /api/outcomes", h.HandleOutcome)
	mux.HandleFunc("POST /api/train", h.HandleTrainStart)
	mux.HandleFunc("GET /api/train", h.HandleTrainStatus)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && (allowed[origin] || allowed["*"]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScenarioBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Success: false, Error: msg})
}

// writeErrorFrom maps malformed-input errors to 400 with their details and
// everything else to 500.
func writeErrorFrom(w http.ResponseWriter, err error) {
	var malformed *models.MalformedScenarioError
	if errors.As(err, &malformed) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "malformed scenario",
			Details: malformed.Problems,
		})
		return
	}
	slog.Error("Request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}
