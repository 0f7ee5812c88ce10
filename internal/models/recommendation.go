package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// RiskLevel is the coarse risk classification of a scored option.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// AllRiskLevels returns the risk tiers from least to most severe.
func AllRiskLevels() []RiskLevel {
	return []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}
}

// IsValid reports whether r is a known risk tier.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// NeedsMitigation reports whether the tier requires a mitigation plan.
func (r RiskLevel) NeedsMitigation() bool {
	return r == RiskHigh || r == RiskCritical
}

// AnalysisMethod records which path produced an analysis.
type AnalysisMethod string

const (
	MethodMLEnhanced        AnalysisMethod = "ML_ENHANCED"
	MethodRuleBasedFallback AnalysisMethod = "RULE_BASED_FALLBACK"
	MethodEmergencyFallback AnalysisMethod = "EMERGENCY_FALLBACK"
)

// ScoredOption holds the score, risk tier and rank for a single option.
type ScoredOption struct {
	OptionID           string             `json:"optionId"`
	TotalScore         float64            `json:"totalScore"`
	RiskLevel          RiskLevel          `json:"riskLevel"`
	Confidence         float64            `json:"confidence"`
	RecommendationRank int                `json:"recommendationRank"`
	FactorScores       map[string]float64 `json:"factorScores,omitempty"`
}

// DominantFactor returns the factor with the largest contribution, or ""
// when no factor contributed. Ties resolve alphabetically.
func (s ScoredOption) DominantFactor() string {
	best := ""
	bestValue := 0.0
	for name, v := range s.FactorScores {
		if v > bestValue || (v == bestValue && v > 0 && name < best) {
			best, bestValue = name, v
		}
	}
	return best
}

// RecommendationType distinguishes the role of a recommendation.
type RecommendationType string

const (
	RecommendationPrimary        RecommendationType = "PRIMARY"
	RecommendationAlternative    RecommendationType = "ALTERNATIVE"
	RecommendationRiskMitigation RecommendationType = "RISK_MITIGATION"
)

// Recommendation is an explainable, templated instruction tied to an option.
type Recommendation struct {
	Type            RecommendationType `json:"type"`
	OptionID        string             `json:"optionId"`
	Confidence      float64            `json:"confidence"`
	Rationale       string             `json:"rationale"`
	Action          string             `json:"action"`
	ExpectedOutcome string             `json:"expectedOutcome"`
}

// DecisionAnalysis is the canonical response shared by every analysis path.
type DecisionAnalysis struct {
	ScenarioID      string           `json:"scenarioId"`
	Timestamp       time.Time        `json:"timestamp"`
	ScenarioType    ScenarioType     `json:"scenarioType"`
	AnalysisMethod  AnalysisMethod   `json:"analysisMethod"`
	OptionsAnalyzed int              `json:"optionsAnalyzed"`
	Recommendations []Recommendation `json:"recommendations"`
	OptionsAnalysis []ScoredOption   `json:"optionsAnalysis"`
}

// Primary returns the rank-1 option, if any.
func (a *DecisionAnalysis) Primary() (ScoredOption, bool) {
	for _, o := range a.OptionsAnalysis {
		if o.RecommendationRank == 1 {
			return o, true
		}
	}
	return ScoredOption{}, false
}

// PrimaryRecommendation returns the PRIMARY recommendation, if any.
func (a *DecisionAnalysis) PrimaryRecommendation() (Recommendation, bool) {
	for _, r := range a.Recommendations {
		if r.Type == RecommendationPrimary {
			return r, true
		}
	}
	return Recommendation{}, false
}

// Clamp01 bounds v to [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RankByScore sorts options by TotalScore descending and assigns dense
// 1-based ranks. The sort is stable, so ties keep input order.
func RankByScore(options []ScoredOption) {
	sort.SliceStable(options, func(a, b int) bool {
		return options[a].TotalScore > options[b].TotalScore
	})
	for i := range options {
		options[i].RecommendationRank = i + 1
	}
}

// CheckAnalysis verifies the structural invariants of an analysis against
// the scenario that produced it.
func CheckAnalysis(scenario *DecisionScenario, a *DecisionAnalysis) error {
	if a.OptionsAnalyzed != len(a.OptionsAnalysis) {
		return fmt.Errorf("optionsAnalyzed=%d but %d options analysed", a.OptionsAnalyzed, len(a.OptionsAnalysis))
	}

	seenRank := make(map[int]bool, len(a.OptionsAnalysis))
	for _, o := range a.OptionsAnalysis {
		if _, ok := scenario.OptionByID(o.OptionID); !ok {
			return fmt.Errorf("option %q is not part of the scenario", o.OptionID)
		}
		if o.RecommendationRank < 1 || o.RecommendationRank > a.OptionsAnalyzed || seenRank[o.RecommendationRank] {
			return fmt.Errorf("option %q has invalid rank %d", o.OptionID, o.RecommendationRank)
		}
		seenRank[o.RecommendationRank] = true
		if o.TotalScore < 0 || o.TotalScore > 1 || o.Confidence < 0 || o.Confidence > 1 {
			return fmt.Errorf("option %q has out-of-range score %v / confidence %v", o.OptionID, o.TotalScore, o.Confidence)
		}
	}

	for _, r := range a.Recommendations {
		if _, ok := scenario.OptionByID(r.OptionID); !ok {
			return fmt.Errorf("recommendation references unknown option %q", r.OptionID)
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			return fmt.Errorf("recommendation for %q has out-of-range confidence %v", r.OptionID, r.Confidence)
		}
	}
	return nil
}
