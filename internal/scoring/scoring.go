package scoring

import (
	"math"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
)

// Factor names reported in ScoredOption.FactorScores.
const (
	FactorCost    = "cost"
	FactorDelay   = "delay"
	FactorWeather = "weather"
)

var factorOrder = []string{FactorCost, FactorDelay, FactorWeather}

// Weights controls how much each factor may move an option away from the
// base score. Each factor contributes at most its weight.
type Weights struct {
	Cost    float64 `json:"cost"`
	Delay   float64 `json:"delay"`
	Weather float64 `json:"weather"`

	// DelayCeilingMinutes is the delay treated as maximally bad.
	DelayCeilingMinutes float64 `json:"delay_ceiling_minutes"`
	// VisibilityCeilingKm is the visibility treated as perfect.
	VisibilityCeilingKm float64 `json:"visibility_ceiling_km"`
	// VisibilityShare scales the visibility ratio before the weather weight.
	VisibilityShare float64 `json:"visibility_share"`
}

// Thresholds maps a final score onto a risk tier.
type Thresholds struct {
	LowAbove  float64 `json:"low_above"`
	HighBelow float64 `json:"high_below"`
	// CriticalBelow enables the CRITICAL tier for scores strictly below it.
	// Zero disables it: CRITICAL is then only ever supplied by the backend.
	CriticalBelow float64 `json:"critical_below"`
}

const (
	DefaultBaseScore  = 0.5
	DefaultConfidence = 0.7
)

// DefaultWeights returns the standard rule-based weighting.
func DefaultWeights() Weights {
	return Weights{
		Cost:                0.3,
		Delay:               0.3,
		Weather:             0.2,
		DelayCeilingMinutes: 240,
		VisibilityCeilingKm: 10,
		VisibilityShare:     0.4,
	}
}

// DefaultThresholds returns the standard risk thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{LowAbove: 0.8, HighBelow: 0.4}
}

// Classify maps a score onto a risk tier.
func (t Thresholds) Classify(score float64) models.RiskLevel {
	switch {
	case t.CriticalBelow > 0 && score < t.CriticalBelow:
		return models.RiskCritical
	case score > t.LowAbove:
		return models.RiskLow
	case score < t.HighBelow:
		return models.RiskHigh
	default:
		return models.RiskMedium
	}
}

// Scorer computes rule-based scores for every option in a scenario.
type Scorer interface {
	Score(*models.DecisionScenario) []models.ScoredOption
}

// RuleScorer is the deterministic weighted-sum scorer. It is pure: the same
// scenario always yields the same ranked options.
type RuleScorer struct {
	Weights    Weights
	Thresholds Thresholds
	BaseScore  float64
	Confidence float64
}

// NewRuleScorer creates a RuleScorer with default weights and thresholds.
func NewRuleScorer() *RuleScorer {
	return &RuleScorer{
		Weights:    DefaultWeights(),
		Thresholds: DefaultThresholds(),
		BaseScore:  DefaultBaseScore,
		Confidence: DefaultConfidence,
	}
}

// Score returns one ScoredOption per scenario option, sorted by score
// descending with dense ranks. It never fails.
func (s *RuleScorer) Score(scenario *models.DecisionScenario) []models.ScoredOption {
	if scenario == nil || len(scenario.Options) == 0 {
		return []models.ScoredOption{}
	}

	scored := make([]models.ScoredOption, len(scenario.Options))
	for i, opt := range scenario.Options {
		factors := s.factors(opt, scenario.Context)

		// Fixed summation order keeps results bit-identical across calls.
		total := s.BaseScore
		for _, name := range factorOrder {
			total += factors[name]
		}
		total = models.Clamp01(total)

		scored[i] = models.ScoredOption{
			OptionID:     opt.ID,
			TotalScore:   total,
			RiskLevel:    s.Thresholds.Classify(total),
			Confidence:   models.Clamp01(s.Confidence),
			FactorScores: factors,
		}
	}

	models.RankByScore(scored)
	return scored
}

// factors returns the weighted contribution of every factor that carries a
// signal for this option. Absent or non-finite inputs contribute nothing.
func (s *RuleScorer) factors(opt models.DecisionOption, ctx models.ScenarioContext) map[string]float64 {
	w := s.Weights
	out := make(map[string]float64, 3)

	if cost, ok := finite(opt.EstimatedCostUSD); ok {
		if budget, ok := finite(ctx.MaxCostBudget); ok && budget > 0 {
			out[FactorCost] = (1 - ratio(cost, budget)) * w.Cost
		}
	}

	if delay, ok := finite(opt.EstimatedDelayMinutes); ok && w.DelayCeilingMinutes > 0 {
		out[FactorDelay] = (1 - ratio(delay, w.DelayCeilingMinutes)) * w.Delay
	}

	if opt.Weather != nil && w.VisibilityCeilingKm > 0 {
		if vis, ok := finite(opt.Weather.VisibilityKm); ok {
			out[FactorWeather] = ratio(vis, w.VisibilityCeilingKm) * w.VisibilityShare * w.Weather
		}
	}

	return out
}

// ratio returns value/limit bounded to [0, 1].
func ratio(value, limit float64) float64 {
	return models.Clamp01(value / limit)
}

func finite(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}
