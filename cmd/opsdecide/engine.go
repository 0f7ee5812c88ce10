package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/analysis"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/backend"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/history"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/insights"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/projectconfig"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/recommend"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/webapi"
)

// engine bundles the services one process needs: the decision log, the
// aggregates rebuilt from it, the optional backend and the dispatcher.
type engine struct {
	cfg        *projectconfig.ProjectConfig
	store      *history.Store
	insights   *insights.Aggregator
	adapter    *backend.Adapter
	trainer    *backend.Trainer
	dispatcher *analysis.Dispatcher
}

// newEngine wires the engine from configuration. The history log is opened
// and replayed when enabled; the backend is attached when a command is set.
func newEngine(ctx context.Context, cfg *projectconfig.ProjectConfig) (*engine, error) {
	e := &engine{cfg: cfg}

	var sink insights.Sink
	if cfg.HistoryEnabled() {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			return nil, err
		}
		e.store = store
		sink = store
	}

	e.insights = insights.New(sink)
	if e.store != nil {
		if err := insights.Restore(ctx, e.insights, e.store); err != nil {
			e.Close() //nolint:errcheck
			return nil, err
		}
	}

	opts := []analysis.DispatcherOption{
		analysis.WithRecorder(e.insights),
		analysis.WithBuilder(recommend.NewBuilderWithAlternatives(cfg.Recommend.Alternatives)),
	}

	bcfg, err := cfg.BackendConfig()
	if err != nil {
		e.Close() //nolint:errcheck
		return nil, err
	}
	adapter, err := backend.NewAdapter(bcfg)
	switch {
	case errors.Is(err, backend.ErrNotConfigured):
		slog.Debug("No analysis backend configured; using rule-based scoring")
	case err != nil:
		e.Close() //nolint:errcheck
		return nil, fmt.Errorf("configuring backend: %w", err)
	default:
		e.adapter = adapter
		e.trainer = backend.NewTrainer(adapter, cfg.TrainingTimeout())
		opts = append(opts, analysis.WithBackend(adapter))
		slog.Info("Analysis backend configured", "backend", adapter.Name(), "timeout", adapter.Timeout())
	}

	e.dispatcher = analysis.NewDispatcher(analysis.NewRuleBasedAnalyzer(cfg.RuleScorer()), opts...)
	return e, nil
}

// deps exposes the engine to the HTTP layer. Interface fields stay nil when
// there is no backend.
func (e *engine) deps() webapi.Deps {
	d := webapi.Deps{
		Analyzer: e.dispatcher,
		Insights: e.insights,
	}
	if e.adapter != nil {
		d.Backend = e.adapter
	}
	if e.trainer != nil {
		d.Trainer = e.trainer
	}
	return d
}

// Close stops any training run and closes the decision log.
func (e *engine) Close() error {
	if e.trainer != nil {
		if e.trainer.Status().State == backend.TrainingRunning {
			slog.Warn("Stopping the training run")
		}
		e.trainer.Stop()
		e.trainer.Wait()
	}
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}
