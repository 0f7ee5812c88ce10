package recommend

import (
	"testing"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var f = utils.Ptr[float64]

func makeScenario(ids ...string) *models.DecisionScenario {
	s := &models.DecisionScenario{Type: models.ScenarioDiversion}
	for _, id := range ids {
		s.Options = append(s.Options, models.DecisionOption{ID: id, Title: "Airport " + id})
	}
	return s
}

func scoredFor(scores map[string]float64, order ...string) []models.ScoredOption {
	out := make([]models.ScoredOption, 0, len(order))
	for _, id := range order {
		out = append(out, models.ScoredOption{
			OptionID:   id,
			TotalScore: scores[id],
			RiskLevel:  models.RiskMedium,
			Confidence: 0.7,
		})
	}
	models.RankByScore(out)
	return out
}

func TestBuild_PrimaryAndAlternatives(t *testing.T) {
	scenario := makeScenario("a", "b", "c", "d")
	scored := scoredFor(map[string]float64{"a": 0.6, "b": 0.9, "c": 0.7, "d": 0.5}, "a", "b", "c", "d")
	scored[0].RiskLevel = models.RiskLow
	scored[0].FactorScores = map[string]float64{"delay": 0.2, "cost": 0.1}

	recs := NewBuilder().Build(scenario, scored)
	require.Len(t, recs, 3)

	assert.Equal(t, models.RecommendationPrimary, recs[0].Type)
	assert.Equal(t, "b", recs[0].OptionID)
	assert.Equal(t, "Highest score (0.900) with LOW risk; strongest factor: delay", recs[0].Rationale)
	assert.Equal(t, "Divert to Airport b", recs[0].Action)
	assert.Equal(t, 0.7, recs[0].Confidence)

	assert.Equal(t, models.RecommendationAlternative, recs[1].Type)
	assert.Equal(t, "c", recs[1].OptionID)
	assert.Contains(t, recs[1].Rationale, "Ranked #2 (score 0.700)")
	assert.Equal(t, models.RecommendationAlternative, recs[2].Type)
	assert.Equal(t, "a", recs[2].OptionID)
}

func TestBuild_RiskMitigationForHighRiskPrimary(t *testing.T) {
	for _, risk := range []models.RiskLevel{models.RiskHigh, models.RiskCritical} {
		t.Run(string(risk), func(t *testing.T) {
			scenario := makeScenario("only")
			scored := scoredFor(map[string]float64{"only": 0.3}, "only")
			scored[0].RiskLevel = risk

			recs := NewBuilder().Build(scenario, scored)
			require.Len(t, recs, 2)
			assert.Equal(t, models.RecommendationPrimary, recs[0].Type)
			assert.Equal(t, models.RecommendationRiskMitigation, recs[1].Type)
			assert.Equal(t, "only", recs[1].OptionID)
			assert.Contains(t, recs[1].Rationale, string(risk))
		})
	}
}

func TestBuild_NoMitigationForMediumRisk(t *testing.T) {
	recs := NewBuilder().Build(makeScenario("x"), scoredFor(map[string]float64{"x": 0.5}, "x"))
	require.Len(t, recs, 1)
	assert.Equal(t, models.RecommendationPrimary, recs[0].Type)
}

func TestBuild_AlternativeCutoffIsConfigurable(t *testing.T) {
	scenario := makeScenario("a", "b", "c", "d", "e")
	scored := scoredFor(map[string]float64{"a": 0.9, "b": 0.8, "c": 0.7, "d": 0.6, "e": 0.5}, "a", "b", "c", "d", "e")

	tests := []struct {
		alternatives int
		wantRecs     int
	}{
		{0, 1},
		{1, 2},
		{2, 3},
		{4, 5},
		{10, 5},
		{-3, 1},
	}
	for _, tt := range tests {
		recs := NewBuilderWithAlternatives(tt.alternatives).Build(scenario, scored)
		assert.Len(t, recs, tt.wantRecs, "alternatives=%d", tt.alternatives)
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	b := NewBuilder()
	recs := b.Build(makeScenario(), nil)
	require.NotNil(t, recs)
	assert.Empty(t, recs)

	assert.Empty(t, b.Build(nil, scoredFor(map[string]float64{"a": 1}, "a")))
}

func TestBuild_UnknownPrimaryIsSkipped(t *testing.T) {
	recs := NewBuilder().Build(makeScenario("a"), scoredFor(map[string]float64{"ghost": 1}, "ghost"))
	assert.Empty(t, recs)
}

func TestBuild_TiedPrimaryMentionsSubmissionOrder(t *testing.T) {
	scenario := makeScenario("first", "second")
	scored := scoredFor(map[string]float64{"first": 0.5, "second": 0.5}, "first", "second")

	recs := NewBuilder().Build(scenario, scored)
	require.NotEmpty(t, recs)
	assert.Equal(t, "first", recs[0].OptionID)
	assert.Contains(t, recs[0].Rationale, "tied with second")
}

func TestExpectedOutcome_TemplatesFactors(t *testing.T) {
	maint := true
	fire := 9
	missed := 12
	opt := models.DecisionOption{
		ID:                    "EGKK",
		EstimatedCostUSD:      f(85000),
		EstimatedDelayMinutes: f(90),
		MissedConnections:     &missed,
		Weather:               &models.Weather{VisibilityKm: f(8)},
		RunwayLengthFt:        f(10879),
		FireCategory:          &fire,
		MaintenanceAvailable:  &maint,
	}

	got := NewBuilder().expectedOutcome(opt)
	assert.Equal(t,
		"Expected delay of 90 min, cost of $85,000, 12 missed connections, visibility 8 km, runway 10,879 ft, fire category 9, maintenance available",
		got)

	assert.Contains(t, NewBuilder().expectedOutcome(models.DecisionOption{ID: "bare"}), "No quantified factors")
}

func TestActionFor(t *testing.T) {
	opt := models.DecisionOption{ID: "R2", Title: "Northern track", Description: "via NAT track A"}
	assert.Equal(t, "File and fly Northern track (via NAT track A)", actionFor(models.ScenarioRouteOptimization, opt))
	assert.Equal(t, "Proceed with R2", actionFor("unknown", models.DecisionOption{ID: "R2"}))
}
