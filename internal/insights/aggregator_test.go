package insights

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/history"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func analysis(t models.ScenarioType, method models.AnalysisMethod, risk models.RiskLevel, confidence float64) *models.DecisionAnalysis {
	return &models.DecisionAnalysis{
		ScenarioID:      "scn",
		Timestamp:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ScenarioType:    t,
		AnalysisMethod:  method,
		OptionsAnalyzed: 1,
		OptionsAnalysis: []models.ScoredOption{
			{OptionID: "a", RiskLevel: risk, Confidence: confidence, RecommendationRank: 1},
		},
	}
}

func TestAggregator_RecordAndSnapshot(t *testing.T) {
	a := New(nil)

	a.Record(analysis(models.ScenarioDiversion, models.MethodRuleBasedFallback, models.RiskLow, 0.7))
	a.Record(analysis(models.ScenarioDiversion, models.MethodMLEnhanced, models.RiskHigh, 0.9))
	a.Record(analysis(models.ScenarioDelayManagement, models.MethodRuleBasedFallback, models.RiskMedium, 0.8))
	a.Record(&models.DecisionAnalysis{
		ScenarioType:    models.ScenarioRouteOptimization,
		AnalysisMethod:  models.MethodEmergencyFallback,
		OptionsAnalysis: []models.ScoredOption{},
	})
	a.Record(nil)

	snap := a.Snapshot()
	assert.Equal(t, 4, snap.TotalDecisions)
	assert.Equal(t, 2, snap.ByScenarioType[models.ScenarioDiversion])
	assert.Equal(t, 1, snap.ByScenarioType[models.ScenarioRouteOptimization])
	assert.Equal(t, 2, snap.ByMethod[models.MethodRuleBasedFallback])
	assert.Equal(t, 1, snap.ByMethod[models.MethodEmergencyFallback])
	assert.Equal(t, map[models.RiskLevel]int{
		models.RiskLow:    1,
		models.RiskMedium: 1,
		models.RiskHigh:   1,
	}, snap.RiskDistribution)
	// Emergency analyses have no primary and do not move the mean.
	assert.InDelta(t, 0.8, snap.AverageConfidence, 1e-9)
	require.NotNil(t, snap.LastDecisionAt)
}

func TestAggregator_SnapshotIsACopy(t *testing.T) {
	a := New(nil)
	a.Record(analysis(models.ScenarioDiversion, models.MethodRuleBasedFallback, models.RiskLow, 0.7))

	snap := a.Snapshot()
	snap.ByScenarioType[models.ScenarioDiversion] = 99

	assert.Equal(t, 1, a.Snapshot().ByScenarioType[models.ScenarioDiversion])
}

func TestAggregator_ConcurrentRecordLosesNothing(t *testing.T) {
	a := New(nil)

	const workers = 16
	const perWorker = 250

	var eg errgroup.Group
	for range workers {
		eg.Go(func() error {
			for range perWorker {
				a.Record(analysis(models.ScenarioResourceAllocation, models.MethodRuleBasedFallback, models.RiskMedium, 0.7))
				_ = a.Snapshot()
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	snap := a.Snapshot()
	assert.Equal(t, workers*perWorker, snap.TotalDecisions)
	assert.Equal(t, workers*perWorker, snap.ByScenarioType[models.ScenarioResourceAllocation])
	assert.Equal(t, workers*perWorker, snap.RiskDistribution[models.RiskMedium])
	assert.InDelta(t, 0.7, snap.AverageConfidence, 1e-9)
}

func TestAggregator_RecordOutcome(t *testing.T) {
	ctx := context.Background()
	a := New(nil)
	a.now = func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }

	reports := []models.OutcomeReport{
		{ScenarioID: "1", FollowedPrimary: true, Implemented: true, Successful: true, CostSavingsUSD: 5000, TimeSavingsMinutes: 30},
		{ScenarioID: "2", FollowedPrimary: true, Implemented: true, Successful: false},
		{ScenarioID: "3", FollowedPrimary: false, Implemented: true, Successful: true, CostSavingsUSD: 1500},
		{ScenarioID: "4"},
	}
	for _, r := range reports {
		require.NoError(t, a.RecordOutcome(ctx, r))
	}

	perf := a.Snapshot().Performance
	assert.Equal(t, 4, perf.OutcomesReported)
	assert.InDelta(t, 0.5, perf.Accuracy, 1e-9)
	assert.InDelta(t, 2.0/3.0, perf.ImplementationSuccessRate, 1e-9)
	assert.Equal(t, 6500.0, perf.CostSavingsUSD)
	assert.Equal(t, 30.0, perf.TimeSavingsMinutes)

	err := a.RecordOutcome(ctx, models.OutcomeReport{})
	var malformed *models.MalformedScenarioError
	require.True(t, errors.As(err, &malformed))
}

func TestAggregator_NoOutcomesMeansZeroRates(t *testing.T) {
	perf := New(nil).Snapshot().Performance
	assert.Zero(t, perf.Accuracy)
	assert.Zero(t, perf.ImplementationSuccessRate)
}

type failingSink struct{}

func (failingSink) AppendAnalysis(context.Context, *models.DecisionAnalysis) error {
	return errors.New("disk full")
}

func (failingSink) AppendOutcome(context.Context, models.OutcomeReport) error {
	return errors.New("disk full")
}

func TestAggregator_SinkFailures(t *testing.T) {
	a := New(failingSink{})

	a.Record(analysis(models.ScenarioDiversion, models.MethodRuleBasedFallback, models.RiskLow, 0.7))
	assert.Equal(t, 1, a.Snapshot().TotalDecisions)

	before := a.Snapshot().Performance
	err := a.RecordOutcome(context.Background(), models.OutcomeReport{
		ScenarioID:      "x",
		FollowedPrimary: true,
		Successful:      true,
		CostSavingsUSD:  1000,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, before, a.Snapshot().Performance, "rejected outcome must not be counted")
}

func TestRestore_FromHistoryStore(t *testing.T) {
	ctx := context.Background()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	live := New(store)
	live.Record(analysis(models.ScenarioDiversion, models.MethodMLEnhanced, models.RiskLow, 0.9))
	live.Record(analysis(models.ScenarioDelayManagement, models.MethodRuleBasedFallback, models.RiskHigh, 0.7))
	require.NoError(t, live.RecordOutcome(ctx, models.OutcomeReport{ScenarioID: "scn", FollowedPrimary: true, Successful: true}))

	restored := New(store)
	require.NoError(t, Restore(ctx, restored, store))

	want := live.Snapshot()
	got := restored.Snapshot()
	assert.Equal(t, want.TotalDecisions, got.TotalDecisions)
	assert.Equal(t, want.ByScenarioType, got.ByScenarioType)
	assert.Equal(t, want.ByMethod, got.ByMethod)
	assert.Equal(t, want.RiskDistribution, got.RiskDistribution)
	assert.InDelta(t, want.AverageConfidence, got.AverageConfidence, 1e-9)
	assert.Equal(t, want.Performance, got.Performance)

	// Replay does not write back to the log.
	analyses, outcomes, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, analyses)
	assert.Equal(t, 1, outcomes)
}
