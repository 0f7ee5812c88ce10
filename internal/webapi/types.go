package webapi

import (
	"time"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/backend"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/catalog"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
)

// AnalyzeResponse is returned by POST /api/analyze.
type AnalyzeResponse struct {
	Success  bool                     `json:"success"`
	Analysis *models.DecisionAnalysis `json:"analysis"`
	Method   models.AnalysisMethod    `json:"method"`
}

// InsightsResponse is returned by GET /api/insights.
type InsightsResponse struct {
	Success  bool            `json:"success"`
	Insights models.Insights `json:"insights"`
}

// CategoriesResponse is returned by GET /api/categories.
type CategoriesResponse struct {
	Success    bool               `json:"success"`
	Categories []catalog.Category `json:"categories"`
}

// QuickRequest is the body of POST /api/quick-recommend.
type QuickRequest struct {
	ScenarioType string         `json:"scenarioType"`
	Urgency      string         `json:"urgency"`
	Context      map[string]any `json:"context,omitempty"`
}

// QuickResponse is returned by POST /api/quick-recommend.
type QuickResponse struct {
	Success        bool              `json:"success"`
	Recommendation models.CannedPlan `json:"recommendation"`
}

// Capabilities reports which analysis paths are usable right now.
type Capabilities struct {
	MLAnalysis        bool `json:"mlAnalysis"`
	RuleBasedFallback bool `json:"ruleBasedFallback"`
	Training          bool `json:"training"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status                 string                `json:"status"`
	Version                string                `json:"version"`
	Capabilities           Capabilities          `json:"capabilities"`
	SupportedScenarioTypes []models.ScenarioType `json:"supportedScenarioTypes"`
	LastCheck              *time.Time            `json:"lastCheck,omitempty"`
}

// TrainingResponse is returned by the training endpoints.
type TrainingResponse struct {
	Success bool                   `json:"success"`
	Status  backend.TrainingStatus `json:"status"`
}

// SuccessResponse acknowledges a write with no payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}
