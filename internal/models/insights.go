package models

import (
	"fmt"
	"strings"
	"time"
)

// Insights is a read-only snapshot of the running aggregates over every
// analysis the engine has produced.
type Insights struct {
	TotalDecisions    int                    `json:"totalDecisions"`
	ByScenarioType    map[ScenarioType]int   `json:"byScenarioType"`
	ByMethod          map[AnalysisMethod]int `json:"byMethod"`
	AverageConfidence float64                `json:"averageConfidence"`
	RiskDistribution  map[RiskLevel]int      `json:"riskDistribution"`
	Performance       PerformanceMetrics     `json:"performance"`
	LastDecisionAt    *time.Time             `json:"lastDecisionAt,omitempty"`
}

// PerformanceMetrics are derived from outcome reports sent back by operators.
type PerformanceMetrics struct {
	OutcomesReported          int     `json:"outcomesReported"`
	Accuracy                  float64 `json:"accuracy"`
	ImplementationSuccessRate float64 `json:"implementationSuccessRate"`
	CostSavingsUSD            float64 `json:"costSavingsUsd"`
	TimeSavingsMinutes        float64 `json:"timeSavingsMinutes"`
}

// OutcomeReport is operator feedback on how a recommendation played out.
type OutcomeReport struct {
	ScenarioID         string    `json:"scenarioId"`
	FollowedPrimary    bool      `json:"followedPrimary"`
	Implemented        bool      `json:"implemented"`
	Successful         bool      `json:"successful"`
	CostSavingsUSD     float64   `json:"costSavingsUsd"`
	TimeSavingsMinutes float64   `json:"timeSavingsMinutes"`
	ReportedAt         time.Time `json:"reportedAt"`
}

// Urgency is the caller-supplied time-pressure tier.
type Urgency string

const (
	UrgencyLow      Urgency = "LOW"
	UrgencyMedium   Urgency = "MEDIUM"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyCritical Urgency = "CRITICAL"
)

// ParseUrgency converts a caller-supplied string into an Urgency.
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(strings.ToUpper(strings.TrimSpace(s)))
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return u, nil
	default:
		return "", fmt.Errorf("invalid urgency %q: must be low, medium, high, or critical", s)
	}
}

// CannedPlan is a policy-defined action plan returned without scoring.
type CannedPlan struct {
	ScenarioType   ScenarioType `json:"scenarioType"`
	Urgency        Urgency      `json:"urgency"`
	Action         string       `json:"action"`
	Rationale      string       `json:"rationale"`
	ImmediateSteps []string     `json:"immediateSteps"`
	Confidence     float64      `json:"confidence"`
	TimeToDecision string       `json:"timeToDecision"`
}
