package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/backend"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/recommend"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/utils"
)

// Recorder receives every completed analysis.
type Recorder interface {
	Record(analysis *models.DecisionAnalysis)
}

// Dispatcher selects the analysis path for a scenario. It tries the
// external backend once, falls back to the rule-based analyzer on any
// failure, and degrades to an empty emergency analysis if the fallback
// itself fails. Analyze never returns an error.
type Dispatcher struct {
	backend  Analyzer
	fallback Analyzer
	builder  *recommend.Builder
	recorder Recorder

	now   func() time.Time
	newID func() string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithBackend sets the primary analyzer. Without one every request takes
// the rule-based path.
func WithBackend(a Analyzer) DispatcherOption {
	return func(d *Dispatcher) {
		d.backend = a
	}
}

// WithRecorder registers the sink for completed analyses.
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// WithBuilder overrides the recommendation builder.
func WithBuilder(b *recommend.Builder) DispatcherOption {
	return func(d *Dispatcher) {
		d.builder = b
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithIDGenerator overrides how scenario ids are minted.
func WithIDGenerator(newID func() string) DispatcherOption {
	return func(d *Dispatcher) {
		d.newID = newID
	}
}

// NewDispatcher creates a dispatcher around the given fallback analyzer.
func NewDispatcher(fallback Analyzer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		fallback: fallback,
		builder:  recommend.NewBuilder(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// HasBackend reports whether an external backend is configured.
func (d *Dispatcher) HasBackend() bool {
	return d.backend != nil
}

// Analyze runs the scenario through the backend or the fallback and returns
// a fully stamped analysis with recommendations.
func (d *Dispatcher) Analyze(ctx context.Context, scenario *models.DecisionScenario) *models.DecisionAnalysis {
	if scenario == nil {
		scenario = &models.DecisionScenario{}
	}
	start := time.Now()
	path := []string{"START"}

	analysis := d.tryBackend(ctx, scenario, &path)
	if analysis == nil {
		path = append(path, "FALLBACK")
		analysis = d.runFallback(ctx, scenario)
	}

	if analysis.AnalysisMethod == models.MethodEmergencyFallback {
		path = append(path, "EMERGENCY")
	} else {
		path = append(path, "BUILD_RECOMMENDATIONS")
		if err := d.buildRecommendations(scenario, analysis); err != nil {
			slog.Error("Building recommendations failed", "error", err)
			path = append(path, "EMERGENCY")
			analysis = emergencyAnalysis(scenario)
		}
	}
	path = append(path, "DONE")

	analysis.ScenarioID = d.newID()
	analysis.Timestamp = d.now().UTC()
	analysis.ScenarioType = scenario.Type

	if d.recorder != nil {
		d.recorder.Record(analysis)
	}

	attrs := append(utils.AnalysisAttrs(analysis),
		"path", strings.Join(path, ">"),
		"duration", time.Since(start))
	slog.Info("Scenario analysed", attrs...)

	return analysis
}

// tryBackend makes exactly one backend attempt. It returns nil when the
// caller must fall back.
func (d *Dispatcher) tryBackend(ctx context.Context, scenario *models.DecisionScenario, path *[]string) *models.DecisionAnalysis {
	if d.backend == nil {
		return nil
	}
	*path = append(*path, "TRY_BACKEND")

	analysis, err := d.safeAnalyze(ctx, d.backend, scenario)
	if err == nil {
		err = models.CheckAnalysis(scenario, analysis)
	}
	if err != nil {
		*path = append(*path, "FAILURE")
		attrs := []any{"backend", d.backend.Name(), "error", err}
		if kind := backend.KindOf(err); kind != nil {
			attrs = append(attrs, "kind", kind.Error())
		}
		var be *backend.Error
		if errors.As(err, &be) && be.Stderr != "" {
			attrs = append(attrs, "stderr", be.Stderr)
		}
		slog.Warn("Analysis backend failed, using rule-based fallback", attrs...)
		return nil
	}

	*path = append(*path, "SUCCESS")
	analysis.AnalysisMethod = models.MethodMLEnhanced
	return analysis
}

func (d *Dispatcher) runFallback(ctx context.Context, scenario *models.DecisionScenario) *models.DecisionAnalysis {
	analysis, err := d.safeAnalyze(ctx, d.fallback, scenario)
	if err == nil {
		err = models.CheckAnalysis(scenario, analysis)
	}
	if err != nil {
		slog.Error("Rule-based fallback failed, returning emergency analysis", "error", err)
		return emergencyAnalysis(scenario)
	}
	analysis.AnalysisMethod = models.MethodRuleBasedFallback
	return analysis
}

// safeAnalyze converts a panicking analyzer into an error.
func (d *Dispatcher) safeAnalyze(ctx context.Context, a Analyzer, scenario *models.DecisionScenario) (analysis *models.DecisionAnalysis, err error) {
	if a == nil {
		return nil, fmt.Errorf("no analyzer configured")
	}
	defer func() {
		if r := recover(); r != nil {
			analysis = nil
			err = fmt.Errorf("analyzer %s panicked: %v", a.Name(), r)
		}
	}()

	analysis, err = a.Analyze(ctx, scenario)
	if err == nil && analysis == nil {
		err = fmt.Errorf("analyzer %s returned no analysis", a.Name())
	}
	return analysis, err
}

func (d *Dispatcher) buildRecommendations(scenario *models.DecisionScenario, analysis *models.DecisionAnalysis) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recommendation builder panicked: %v", r)
		}
	}()

	analysis.Recommendations = d.builder.Build(scenario, analysis.OptionsAnalysis)
	return nil
}

// emergencyAnalysis is the well-formed empty result used when no analyzer
// could produce options.
func emergencyAnalysis(scenario *models.DecisionScenario) *models.DecisionAnalysis {
	return &models.DecisionAnalysis{
		ScenarioType:    scenario.Type,
		AnalysisMethod:  models.MethodEmergencyFallback,
		OptionsAnalyzed: 0,
		OptionsAnalysis: []models.ScoredOption{},
		Recommendations: []models.Recommendation{},
	}
}
