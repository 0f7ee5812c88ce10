package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/scoring"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/validation"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultTimeout bounds a single analysis call, including process start.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxConcurrent caps the number of backend processes alive at once.
	DefaultMaxConcurrent = 4

	// ModeEnv tells the backend process which operation it is serving.
	ModeEnv = "OPSDECIDE_MODE"

	modeAnalyze = "analyze"
	modeTrain   = "train"

	// waitDelay bounds how long Wait lingers on open pipes once the
	// process has exited or been killed.
	waitDelay = 100 * time.Millisecond

	maxOutputBytes = 4 << 20
	maxStderrBytes = 64 << 10

	availabilityTTL = 30 * time.Second
)

// Config describes how to reach the external analysis backend.
type Config struct {
	// Command is the executable to spawn. It is resolved through PATH.
	Command string
	Args    []string
	// Dir is the working directory for the process. Empty means inherit.
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env []string

	Timeout       time.Duration
	MaxConcurrent int

	// Thresholds classify options the backend returned without a risk level.
	Thresholds scoring.Thresholds
}

// Adapter invokes the external analysis backend as a subprocess: the
// scenario goes to stdin as JSON and the first stdout line is the result.
// It never falls back on its own; every failure is returned as an *Error.
type Adapter struct {
	cfg Config
	sem *semaphore.Weighted

	mu        sync.Mutex
	available bool
	lastCheck time.Time

	now      func() time.Time
	lookPath func(string) (string, error)
}

// NewAdapter creates an Adapter. Zero timeout and concurrency values are
// replaced with the defaults.
func NewAdapter(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Thresholds == (scoring.Thresholds{}) {
		cfg.Thresholds = scoring.DefaultThresholds()
	}

	return &Adapter{
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		now:      time.Now,
		lookPath: exec.LookPath,
	}, nil
}

// Name identifies the backend in logs.
func (a *Adapter) Name() string {
	return "backend:" + filepath.Base(a.cfg.Command)
}

// Timeout returns the effective per-call deadline.
func (a *Adapter) Timeout() time.Duration { return a.cfg.Timeout }

// Available reports whether the backend command can be resolved. The result
// is cached briefly so health probes do not hit the filesystem every time.
func (a *Adapter) Available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if !a.lastCheck.IsZero() && now.Sub(a.lastCheck) < availabilityTTL {
		return a.available
	}
	_, err := a.lookPath(a.cfg.Command)
	a.available = err == nil
	a.lastCheck = now
	return a.available
}

// LastCheck returns when availability was last probed.
func (a *Adapter) LastCheck() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastCheck
}

// Analyze runs one backend call under the configured deadline. The returned
// analysis is labelled ML_ENHANCED and carries clamped, densely ranked
// options but no recommendations.
func (a *Adapter) Analyze(ctx context.Context, scenario *models.DecisionScenario) (*models.DecisionAnalysis, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, newError(ErrBackendUnavailable, "no free backend slot within %s: %w", a.cfg.Timeout, err)
	}
	defer a.sem.Release(1)

	payload, err := json.Marshal(scenario)
	if err != nil {
		return nil, newError(ErrBackendError, "encoding scenario: %w", err)
	}

	line, err := a.runForLine(ctx, payload)
	if err != nil {
		return nil, err
	}

	return a.parse(scenario, line)
}

// command builds the backend process for mode. The process runs in its own
// group so cancellation reaches any children it spawned.
func (a *Adapter) command(ctx context.Context, mode string, stdin []byte) (*exec.Cmd, *cappedBuffer) {
	cmd := exec.CommandContext(ctx, a.cfg.Command, a.cfg.Args...)
	cmd.Dir = a.cfg.Dir
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = append(cmd.Environ(), a.cfg.Env...)
	cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", ModeEnv, mode))
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	stderr := &cappedBuffer{max: maxStderrBytes}
	cmd.Stderr = stderr
	return cmd, stderr
}

func (a *Adapter) start(ctx context.Context, cmd *exec.Cmd) error {
	err := cmd.Start()
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return newError(ErrBackendUnavailable, "starting %s: %w", a.cfg.Command, err)
	}
	if ctx.Err() != nil {
		return newError(ErrTimeout, "starting %s: %w", a.cfg.Command, ctx.Err())
	}
	return newError(ErrBackendUnavailable, "starting %s: %w", a.cfg.Command, err)
}

type lineResult struct {
	line []byte
	err  error
}

// runForLine starts the backend in analyze mode and returns its first
// complete stdout line as soon as it arrives. The process group is killed
// once the line is read, and on the deadline.
func (a *Adapter) runForLine(ctx context.Context, payload []byte) ([]byte, error) {
	cmd, stderr := a.command(ctx, modeAnalyze, payload)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, newError(ErrBackendError, "opening stdout: %w", err)
	}

	start := time.Now()
	if err := a.start(ctx, cmd); err != nil {
		return nil, err
	}

	lines := make(chan lineResult, 1)
	go func() {
		line, err := readResultLine(stdout)
		lines <- lineResult{line: line, err: err}
	}()

	var res lineResult
	select {
	case res = <-lines:
	case <-ctx.Done():
		// Cancel kills the group; Wait then closes the pipe under the reader.
		_ = cmd.Wait()
		return nil, &Error{Kind: ErrTimeout, Err: ctx.Err(), Stderr: stderr.String()}
	}

	var waitErr error
	switch {
	case errors.Is(res.err, errNoOutput), errors.Is(res.err, errUnterminated):
		// stdout is closed; the exit status decides the error kind.
		waitErr = cmd.Wait()
	default:
		_ = killProcessGroup(cmd)
		_ = cmd.Wait()
	}

	slog.Debug("Backend process finished",
		"command", a.cfg.Command,
		"mode", modeAnalyze,
		"duration", time.Since(start),
		"result_bytes", len(res.line),
		"stderr_bytes", stderr.Len())

	if res.err == nil {
		return res.line, nil
	}
	if err := a.exitError(ctx, waitErr, stderr.String()); err != nil {
		return nil, err
	}
	return nil, &Error{Kind: ErrParseFailure, Err: res.err, Stderr: stderr.String()}
}

// runToExit runs the backend in mode until it exits. Its stdout is discarded.
func (a *Adapter) runToExit(ctx context.Context, mode string, stdin []byte) error {
	cmd, stderr := a.command(ctx, mode, stdin)

	start := time.Now()
	if err := a.start(ctx, cmd); err != nil {
		return err
	}
	err := cmd.Wait()
	slog.Debug("Backend process finished",
		"command", a.cfg.Command,
		"mode", mode,
		"duration", time.Since(start),
		"stderr_bytes", stderr.Len())

	return a.exitError(ctx, err, stderr.String())
}

// exitError classifies the result of cmd.Wait.
func (a *Adapter) exitError(ctx context.Context, err error, stderr string) error {
	errOutput := strings.TrimSpace(stderr)
	if ctx.Err() != nil {
		return &Error{Kind: ErrTimeout, Err: ctx.Err(), Stderr: errOutput}
	}
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &Error{
			Kind:   ErrBackendError,
			Err:    fmt.Errorf("%s exited with code %d", a.cfg.Command, exitErr.ExitCode()),
			Stderr: errOutput,
		}
	}
	return &Error{Kind: ErrBackendError, Err: err, Stderr: errOutput}
}

var (
	errNoOutput       = errors.New("backend produced no output")
	errUnterminated   = errors.New("backend output ended without a newline")
	errOutputTooLarge = fmt.Errorf("backend output exceeds %d bytes without a result line", maxOutputBytes)
)

// readResultLine returns the first non-blank newline-terminated line of r.
// At most maxOutputBytes are read.
func readResultLine(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(io.LimitReader(r, maxOutputBytes+1))
	read := 0
	for {
		line, err := br.ReadBytes('\n')
		read += len(line)
		if read > maxOutputBytes {
			return nil, errOutputTooLarge
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			if len(bytes.TrimSpace(line)) > 0 {
				return nil, errUnterminated
			}
			return nil, errNoOutput
		}
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			return trimmed, nil
		}
	}
}

// cappedBuffer keeps the first max bytes written to it and drops the rest.
type cappedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		b.buf.Write(p[:min(len(p), room)])
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}

func (b *cappedBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

type backendOutput struct {
	OptionsAnalysis []models.ScoredOption `json:"optionsAnalysis"`
}

// parse validates the backend's result line against the scenario it was
// given and normalises scores and ranks.
func (a *Adapter) parse(scenario *models.DecisionScenario, line []byte) (*models.DecisionAnalysis, error) {
	if len(line) == 0 {
		return nil, newError(ErrParseFailure, "%w", errNoOutput)
	}
	if errs := validation.ValidateBackendOutputBytes(line); len(errs) > 0 {
		return nil, newError(ErrParseFailure, "%s", strings.Join(errs, "; "))
	}

	var out backendOutput
	if err := json.Unmarshal(line, &out); err != nil {
		return nil, newError(ErrParseFailure, "decoding output: %w", err)
	}

	seen := make(map[string]bool, len(out.OptionsAnalysis))
	options := make([]models.ScoredOption, 0, len(out.OptionsAnalysis))
	for _, o := range out.OptionsAnalysis {
		if _, ok := scenario.OptionByID(o.OptionID); !ok {
			return nil, newError(ErrParseFailure, "unknown option id %q", o.OptionID)
		}
		if seen[o.OptionID] {
			return nil, newError(ErrParseFailure, "option id %q returned more than once", o.OptionID)
		}
		seen[o.OptionID] = true

		o.TotalScore = models.Clamp01(o.TotalScore)
		o.Confidence = models.Clamp01(o.Confidence)
		if !o.RiskLevel.IsValid() {
			o.RiskLevel = a.cfg.Thresholds.Classify(o.TotalScore)
		}
		options = append(options, o)
	}
	if len(options) != len(scenario.Options) {
		return nil, newError(ErrParseFailure, "backend analysed %d of %d options", len(options), len(scenario.Options))
	}

	models.RankByScore(options)

	return &models.DecisionAnalysis{
		ScenarioType:    scenario.Type,
		AnalysisMethod:  models.MethodMLEnhanced,
		OptionsAnalyzed: len(options),
		OptionsAnalysis: options,
		Recommendations: []models.Recommendation{},
	}, nil
}
