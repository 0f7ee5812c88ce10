package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenarioType(t *testing.T) {
	tests := []struct {
		input   string
		want    ScenarioType
		wantErr bool
	}{
		{"diversion", ScenarioDiversion, false},
		{"  Delay_Management ", ScenarioDelayManagement, false},
		{"route-optimization", ScenarioRouteOptimization, false},
		{"resource_allocation", ScenarioResourceAllocation, false},
		{"maintenance", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseScenarioType(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecisionScenario_Validate(t *testing.T) {
	t.Run("valid scenario", func(t *testing.T) {
		s := &DecisionScenario{
			Type:    ScenarioDiversion,
			Options: []DecisionOption{{ID: "EGLL"}, {ID: "EGKK"}},
		}
		require.NoError(t, s.Validate())
	})

	t.Run("empty options are allowed", func(t *testing.T) {
		s := &DecisionScenario{Type: ScenarioDelayManagement}
		require.NoError(t, s.Validate())
	})

	t.Run("missing type", func(t *testing.T) {
		s := &DecisionScenario{Options: []DecisionOption{{ID: "a"}}}
		err := s.Validate()

		var malformed *MalformedScenarioError
		require.True(t, errors.As(err, &malformed))
		assert.Contains(t, malformed.Problems, "type is required")
	})

	t.Run("unknown type", func(t *testing.T) {
		s := &DecisionScenario{Type: "catering"}
		err := s.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `type "catering" is not supported`)
	})

	t.Run("duplicate and empty ids", func(t *testing.T) {
		s := &DecisionScenario{
			Type:    ScenarioDiversion,
			Options: []DecisionOption{{ID: "a"}, {ID: ""}, {ID: "a"}},
		}
		var malformed *MalformedScenarioError
		require.True(t, errors.As(s.Validate(), &malformed))
		assert.Len(t, malformed.Problems, 2)
	})

	t.Run("nil scenario", func(t *testing.T) {
		var s *DecisionScenario
		require.Error(t, s.Validate())
	})
}

func TestDecisionOption_AbsentFactorsDecodeAsNil(t *testing.T) {
	var s DecisionScenario
	err := json.Unmarshal([]byte(`{
		"type": "diversion",
		"context": {"maxCostBudget": 150000},
		"options": [
			{"id": "a", "title": "Alpha", "estimatedCostUsd": 0, "weather": {"visibilityKm": 8}},
			{"id": "b"}
		]
	}`), &s)
	require.NoError(t, err)

	require.NotNil(t, s.Options[0].EstimatedCostUSD)
	assert.Equal(t, 0.0, *s.Options[0].EstimatedCostUSD)
	assert.Nil(t, s.Options[0].EstimatedDelayMinutes)
	assert.Equal(t, 8.0, *s.Options[0].Weather.VisibilityKm)
	assert.Nil(t, s.Options[1].Weather)
	assert.Equal(t, "b", s.Options[1].DisplayName())
	assert.Equal(t, 150000.0, *s.Context.MaxCostBudget)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.2))
	assert.Equal(t, 1.0, Clamp01(1.7))
	assert.Equal(t, 0.42, Clamp01(0.42))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 1.0, Clamp01(math.Inf(1)))
}

func TestRankByScore_StableTies(t *testing.T) {
	opts := []ScoredOption{
		{OptionID: "a", TotalScore: 0.5},
		{OptionID: "b", TotalScore: 0.9},
		{OptionID: "c", TotalScore: 0.5},
		{OptionID: "d", TotalScore: 0.7},
	}
	RankByScore(opts)

	ids := make([]string, len(opts))
	for i, o := range opts {
		ids[i] = o.OptionID
		assert.Equal(t, i+1, o.RecommendationRank)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
}

func TestCheckAnalysis(t *testing.T) {
	scenario := &DecisionScenario{
		Type:    ScenarioDiversion,
		Options: []DecisionOption{{ID: "a"}, {ID: "b"}},
	}
	valid := &DecisionAnalysis{
		OptionsAnalyzed: 2,
		OptionsAnalysis: []ScoredOption{
			{OptionID: "b", TotalScore: 0.8, Confidence: 0.7, RecommendationRank: 1},
			{OptionID: "a", TotalScore: 0.6, Confidence: 0.7, RecommendationRank: 2},
		},
		Recommendations: []Recommendation{{Type: RecommendationPrimary, OptionID: "b", Confidence: 0.7}},
	}
	require.NoError(t, CheckAnalysis(scenario, valid))

	unknown := *valid
	unknown.Recommendations = []Recommendation{{OptionID: "zzz"}}
	require.Error(t, CheckAnalysis(scenario, &unknown))

	gap := *valid
	gap.OptionsAnalysis = []ScoredOption{
		{OptionID: "b", RecommendationRank: 1},
		{OptionID: "a", RecommendationRank: 3},
	}
	require.Error(t, CheckAnalysis(scenario, &gap))

	count := *valid
	count.OptionsAnalyzed = 3
	require.Error(t, CheckAnalysis(scenario, &count))
}

func TestScoredOption_DominantFactor(t *testing.T) {
	assert.Equal(t, "", ScoredOption{}.DominantFactor())
	assert.Equal(t, "delay", ScoredOption{FactorScores: map[string]float64{
		"cost": 0.13, "delay": 0.1875, "weather": 0.064,
	}}.DominantFactor())
	assert.Equal(t, "cost", ScoredOption{FactorScores: map[string]float64{
		"delay": 0.3, "cost": 0.3,
	}}.DominantFactor())
}

func TestParseUrgency(t *testing.T) {
	u, err := ParseUrgency("critical")
	require.NoError(t, err)
	assert.Equal(t, UrgencyCritical, u)

	_, err = ParseUrgency("panic")
	require.Error(t, err)
}
