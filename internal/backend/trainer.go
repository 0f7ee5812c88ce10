package backend

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTrainingTimeout bounds a single training run.
const DefaultTrainingTimeout = 30 * time.Minute

// TrainingState is the lifecycle state of the trainer.
type TrainingState string

const (
	TrainingIdle    TrainingState = "idle"
	TrainingRunning TrainingState = "running"
)

// TrainingStatus is a snapshot of the trainer.
type TrainingStatus struct {
	State      TrainingState `json:"state"`
	Runs       int           `json:"runs"`
	StartedAt  *time.Time    `json:"startedAt,omitempty"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
	LastError  string        `json:"lastError,omitempty"`
}

// Trainer runs the backend in training mode in the background. At most one
// run is active; a second Start while running is rejected, not queued.
type Trainer struct {
	adapter *Adapter
	timeout time.Duration

	mu      sync.Mutex
	status  TrainingStatus
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup

	now func() time.Time
}

// NewTrainer creates a Trainer that reuses the adapter's command and
// environment. A zero timeout means DefaultTrainingTimeout.
func NewTrainer(adapter *Adapter, timeout time.Duration) *Trainer {
	if timeout <= 0 {
		timeout = DefaultTrainingTimeout
	}
	return &Trainer{
		adapter: adapter,
		timeout: timeout,
		status:  TrainingStatus{State: TrainingIdle},
		now:     time.Now,
	}
}

// Start launches a training run with payload on stdin. The run is detached
// from ctx cancellation but keeps its values; only Stop or the training
// timeout end it early.
func (t *Trainer) Start(ctx context.Context, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrTrainerStopped
	}
	if t.status.State == TrainingRunning {
		return ErrTrainingInProgress
	}

	started := t.now()
	t.status.State = TrainingRunning
	t.status.Runs++
	t.status.StartedAt = &started
	t.status.FinishedAt = nil
	t.status.LastError = ""

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	t.cancel = cancel
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		t.finish(t.run(runCtx, payload))
	}()

	slog.Info("Training started", "command", t.adapter.cfg.Command, "timeout", t.timeout, "payload_bytes", len(payload))
	return nil
}

func (t *Trainer) run(ctx context.Context, payload []byte) error {
	return t.adapter.runToExit(ctx, modeTrain, payload)
}

func (t *Trainer) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	finished := t.now()
	t.cancel = nil
	t.status.State = TrainingIdle
	t.status.FinishedAt = &finished
	if err != nil {
		t.status.LastError = err.Error()
		slog.Warn("Training failed", "error", err)
		return
	}
	slog.Info("Training finished", "duration", finished.Sub(*t.status.StartedAt))
}

// Status returns a copy of the current trainer state.
func (t *Trainer) Status() TrainingStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Stop kills any in-flight run and rejects further starts.
func (t *Trainer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	if t.cancel != nil {
		t.cancel()
	}
}

// Wait blocks until any in-flight run has finished.
func (t *Trainer) Wait() {
	t.wg.Wait()
}
