package analysis

import (
	"context"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/scoring"
)

//go:generate go tool mockgen -source analyzer.go -destination mock_analyzer_test.go -package analysis

// Analyzer produces scored options for a scenario. Implementations return
// an analysis without recommendations; the Dispatcher builds those.
type Analyzer interface {
	// Name identifies the analyzer in logs.
	Name() string

	// Analyze scores and ranks every option in the scenario.
	Analyze(ctx context.Context, scenario *models.DecisionScenario) (*models.DecisionAnalysis, error)
}

// RuleBasedAnalyzer adapts a deterministic scoring.Scorer to the Analyzer
// interface. It is the fallback of last resort and does not fail.
type RuleBasedAnalyzer struct {
	scorer scoring.Scorer
}

// NewRuleBasedAnalyzer wraps scorer. A nil scorer uses the default rules.
func NewRuleBasedAnalyzer(scorer scoring.Scorer) *RuleBasedAnalyzer {
	if scorer == nil {
		scorer = scoring.NewRuleScorer()
	}
	return &RuleBasedAnalyzer{scorer: scorer}
}

func (r *RuleBasedAnalyzer) Name() string { return "rule-based" }

func (r *RuleBasedAnalyzer) Analyze(_ context.Context, scenario *models.DecisionScenario) (*models.DecisionAnalysis, error) {
	scored := r.scorer.Score(scenario)
	return &models.DecisionAnalysis{
		ScenarioType:    scenario.Type,
		AnalysisMethod:  models.MethodRuleBasedFallback,
		OptionsAnalyzed: len(scored),
		OptionsAnalysis: scored,
		Recommendations: []models.Recommendation{},
	}, nil
}
