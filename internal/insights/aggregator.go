package insights

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
)

// Sink persists what the aggregator records. history.Store implements it.
type Sink interface {
	AppendAnalysis(ctx context.Context, a *models.DecisionAnalysis) error
	AppendOutcome(ctx context.Context, o models.OutcomeReport) error
}

// Source replays a persisted log. history.Store implements it.
type Source interface {
	ReplayAnalyses(ctx context.Context, fn func(*models.DecisionAnalysis) error) error
	ReplayOutcomes(ctx context.Context, fn func(models.OutcomeReport) error) error
}

// Aggregator keeps running counters over every analysis. Updates and
// snapshots share one mutex; a snapshot never walks the log.
type Aggregator struct {
	mu sync.Mutex

	total            int
	byType           map[models.ScenarioType]int
	byMethod         map[models.AnalysisMethod]int
	riskDistribution map[models.RiskLevel]int
	confidenceMean   float64
	confidenceN      int
	lastDecisionAt   *time.Time

	outcomes           int
	followedPrimary    int
	followedSuccessful int
	implemented        int
	implementedSuccess int
	costSavingsUSD     float64
	timeSavingsMinutes float64

	sink Sink
	now  func() time.Time
}

// New creates an empty aggregator. sink may be nil.
func New(sink Sink) *Aggregator {
	return &Aggregator{
		byType:           map[models.ScenarioType]int{},
		byMethod:         map[models.AnalysisMethod]int{},
		riskDistribution: map[models.RiskLevel]int{},
		sink:             sink,
		now:              time.Now,
	}
}

// Record folds an analysis into the aggregates and appends it to the sink.
// Persistence failures are logged; they never fail the caller.
func (a *Aggregator) Record(analysis *models.DecisionAnalysis) {
	if analysis == nil {
		return
	}
	a.apply(analysis)

	if a.sink != nil {
		if err := a.sink.AppendAnalysis(context.Background(), analysis); err != nil {
			slog.Warn("Failed to persist analysis", "scenario_id", analysis.ScenarioID, "error", err)
		}
	}
}

func (a *Aggregator) apply(analysis *models.DecisionAnalysis) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.byType[analysis.ScenarioType]++
	a.byMethod[analysis.AnalysisMethod]++

	if p, ok := analysis.Primary(); ok {
		a.riskDistribution[p.RiskLevel]++
		a.confidenceN++
		a.confidenceMean += (p.Confidence - a.confidenceMean) / float64(a.confidenceN)
	}

	if !analysis.Timestamp.IsZero() {
		ts := analysis.Timestamp
		if a.lastDecisionAt == nil || ts.After(*a.lastDecisionAt) {
			a.lastDecisionAt = &ts
		}
	}
}

// RecordOutcome persists operator feedback and then folds it into the
// performance metrics. A report the sink rejects is not counted.
func (a *Aggregator) RecordOutcome(ctx context.Context, o models.OutcomeReport) error {
	if strings.TrimSpace(o.ScenarioID) == "" {
		return &models.MalformedScenarioError{Problems: []string{"scenarioId is required"}}
	}
	if o.ReportedAt.IsZero() {
		o.ReportedAt = a.now().UTC()
	}

	if a.sink != nil {
		if err := a.sink.AppendOutcome(ctx, o); err != nil {
			return fmt.Errorf("persisting outcome: %w", err)
		}
	}

	a.applyOutcome(o)
	return nil
}

func (a *Aggregator) applyOutcome(o models.OutcomeReport) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.outcomes++
	if o.FollowedPrimary {
		a.followedPrimary++
		if o.Successful {
			a.followedSuccessful++
		}
	}
	if o.Implemented {
		a.implemented++
		if o.Successful {
			a.implementedSuccess++
		}
	}
	a.costSavingsUSD += o.CostSavingsUSD
	a.timeSavingsMinutes += o.TimeSavingsMinutes
}

// Snapshot returns a copy of the current aggregates.
func (a *Aggregator) Snapshot() models.Insights {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := models.Insights{
		TotalDecisions:    a.total,
		ByScenarioType:    make(map[models.ScenarioType]int, len(a.byType)),
		ByMethod:          make(map[models.AnalysisMethod]int, len(a.byMethod)),
		AverageConfidence: a.confidenceMean,
		RiskDistribution:  make(map[models.RiskLevel]int, len(a.riskDistribution)),
		Performance: models.PerformanceMetrics{
			OutcomesReported:          a.outcomes,
			Accuracy:                  rate(a.followedSuccessful, a.followedPrimary),
			ImplementationSuccessRate: rate(a.implementedSuccess, a.implemented),
			CostSavingsUSD:            a.costSavingsUSD,
			TimeSavingsMinutes:        a.timeSavingsMinutes,
		},
	}
	for k, v := range a.byType {
		snap.ByScenarioType[k] = v
	}
	for k, v := range a.byMethod {
		snap.ByMethod[k] = v
	}
	for k, v := range a.riskDistribution {
		snap.RiskDistribution[k] = v
	}
	if a.lastDecisionAt != nil {
		ts := *a.lastDecisionAt
		snap.LastDecisionAt = &ts
	}
	return snap
}

func rate(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Restore rebuilds the aggregates from a persisted log. It is meant to run
// once at start-up, before the aggregator serves traffic; replayed entries
// are not written back to the sink.
func Restore(ctx context.Context, a *Aggregator, src Source) error {
	analyses := 0
	if err := src.ReplayAnalyses(ctx, func(analysis *models.DecisionAnalysis) error {
		a.apply(analysis)
		analyses++
		return nil
	}); err != nil {
		return fmt.Errorf("replaying analyses: %w", err)
	}

	outcomes := 0
	if err := src.ReplayOutcomes(ctx, func(o models.OutcomeReport) error {
		a.applyOutcome(o)
		outcomes++
		return nil
	}); err != nil {
		return fmt.Errorf("replaying outcomes: %w", err)
	}

	slog.Info("Insights restored from history", "analyses", analyses, "outcomes", outcomes)
	return nil
}
