package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/utils"
	"github.com/stretchr/testify/require"
)

var f = utils.Ptr[float64]

func twoOptionScenario() *models.DecisionScenario {
	return &models.DecisionScenario{
		Type:    models.ScenarioDiversion,
		Context: models.ScenarioContext{MaxCostBudget: f(150000)},
		Options: []models.DecisionOption{
			{ID: "a", EstimatedCostUSD: f(85000)},
			{ID: "b", EstimatedDelayMinutes: f(30)},
		},
	}
}

// writeScript creates an executable shell script acting as a fake backend.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backend.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping subprocess backend tests on Windows")
	}
}

func TestNewAdapter(t *testing.T) {
	t.Run("requires command", func(t *testing.T) {
		_, err := NewAdapter(Config{})
		require.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("defaults", func(t *testing.T) {
		a, err := NewAdapter(Config{Command: "/usr/local/bin/analyzer"})
		require.NoError(t, err)
		require.Equal(t, DefaultTimeout, a.Timeout())
		require.Equal(t, DefaultMaxConcurrent, a.cfg.MaxConcurrent)
		require.Equal(t, "backend:analyzer", a.Name())
	})
}

func TestAdapter_Analyze(t *testing.T) {
	skipOnWindows(t)

	t.Run("valid output is clamped and ranked", func(t *testing.T) {
		script := writeScript(t, `cat > /dev/null
echo '{"optionsAnalysis":[{"optionId":"b","totalScore":0.3,"riskLevel":"HIGH","confidence":0.9},{"optionId":"a","totalScore":1.4,"confidence":1.2,"factorScores":{"cost":0.4}}]}'
echo 'trailing lines are ignored'`)
		a, err := NewAdapter(Config{Command: script})
		require.NoError(t, err)

		analysis, err := a.Analyze(context.Background(), twoOptionScenario())
		require.NoError(t, err)
		require.Equal(t, models.MethodMLEnhanced, analysis.AnalysisMethod)
		require.Equal(t, 2, analysis.OptionsAnalyzed)
		require.Equal(t, models.ScenarioDiversion, analysis.ScenarioType)

		top := analysis.OptionsAnalysis[0]
		require.Equal(t, "a", top.OptionID)
		require.Equal(t, 1.0, top.TotalScore)
		require.Equal(t, 1.0, top.Confidence)
		require.Equal(t, models.RiskLow, top.RiskLevel)
		require.Equal(t, 1, top.RecommendationRank)
		require.Equal(t, 2, analysis.OptionsAnalysis[1].RecommendationRank)
		require.Equal(t, models.RiskHigh, analysis.OptionsAnalysis[1].RiskLevel)
	})

	t.Run("receives scenario and mode", func(t *testing.T) {
		script := writeScript(t, `[ "$OPSDECIDE_MODE" = "analyze" ] || exit 3
grep -q '"type":"diversion"' || exit 4
echo '{"optionsAnalysis":[{"optionId":"a","totalScore":0.6,"confidence":0.8},{"optionId":"b","totalScore":0.5,"confidence":0.8}]}'`)
		a, err := NewAdapter(Config{Command: script})
		require.NoError(t, err)

		_, err = a.Analyze(context.Background(), twoOptionScenario())
		require.NoError(t, err)
	})

	t.Run("non-zero exit is a backend error", func(t *testing.T) {
		script := writeScript(t, `echo "model weights missing" >&2; exit 1`)
		a, err := NewAdapter(Config{Command: script})
		require.NoError(t, err)

		_, err = a.Analyze(context.Background(), twoOptionScenario())
		require.ErrorIs(t, err, ErrBackendError)

		var backendErr *Error
		require.True(t, errors.As(err, &backendErr))
		require.Equal(t, "model weights missing", backendErr.Stderr)
		require.Contains(t, err.Error(), "exited with code 1")
	})

	t.Run("timeout returns at the deadline", func(t *testing.T) {
		// sleep runs as a child of the shell and inherits its stdout.
		script := writeScript(t, `cat > /dev/null
sleep 7
echo '{"optionsAnalysis":[]}'`)
		a, err := NewAdapter(Config{Command: script, Timeout: 200 * time.Millisecond})
		require.NoError(t, err)

		start := time.Now()
		_, err = a.Analyze(context.Background(), twoOptionScenario())
		require.ErrorIs(t, err, ErrTimeout)
		require.Less(t, time.Since(start), time.Second)
	})

	t.Run("result line is used before the process exits", func(t *testing.T) {
		script := writeScript(t, `cat > /dev/null
echo '{"optionsAnalysis":[{"optionId":"a","totalScore":0.9,"confidence":0.8},{"optionId":"b","totalScore":0.2,"confidence":0.8}]}'
exec sleep 3`)
		a, err := NewAdapter(Config{Command: script, Timeout: 2 * time.Second})
		require.NoError(t, err)

		start := time.Now()
		analysis, err := a.Analyze(context.Background(), twoOptionScenario())
		require.NoError(t, err)
		require.Equal(t, "a", analysis.OptionsAnalysis[0].OptionID)
		require.Less(t, time.Since(start), time.Second)
	})

	t.Run("unterminated output is a parse failure", func(t *testing.T) {
		script := writeScript(t, `cat > /dev/null
printf '{"optionsAnalysis":'`)
		a, err := NewAdapter(Config{Command: script})
		require.NoError(t, err)

		_, err = a.Analyze(context.Background(), twoOptionScenario())
		require.ErrorIs(t, err, ErrParseFailure)
		require.Contains(t, err.Error(), "without a newline")
	})

	t.Run("flooding output is capped", func(t *testing.T) {
		script := writeScript(t, `cat > /dev/null
yes x | tr -d '\n'`)
		a, err := NewAdapter(Config{Command: script, Timeout: 5 * time.Second})
		require.NoError(t, err)

		_, err = a.Analyze(context.Background(), twoOptionScenario())
		require.ErrorIs(t, err, ErrParseFailure)
		require.Contains(t, err.Error(), "exceeds")
	})

	t.Run("missing command is unavailable", func(t *testing.T) {
		a, err := NewAdapter(Config{Command: filepath.Join(t.TempDir(), "does-not-exist")})
		require.NoError(t, err)

		_, err = a.Analyze(context.Background(), twoOptionScenario())
		require.ErrorIs(t, err, ErrBackendUnavailable)
	})

	t.Run("exhausted slots are unavailable", func(t *testing.T) {
		script := writeScript(t, `echo '{}'`)
		a, err := NewAdapter(Config{Command: script, MaxConcurrent: 1, Timeout: 100 * time.Millisecond})
		require.NoError(t, err)

		require.NoError(t, a.sem.Acquire(context.Background(), 1))
		defer a.sem.Release(1)

		_, err = a.Analyze(context.Background(), twoOptionScenario())
		require.ErrorIs(t, err, ErrBackendUnavailable)
	})
}

func TestAdapter_ParseFailures(t *testing.T) {
	a, err := NewAdapter(Config{Command: "analyzer"})
	require.NoError(t, err)
	scenario := twoOptionScenario()

	tests := []struct {
		name string
		line string
		want string
	}{
		{"empty", ``, "no output"},
		{"not json", `model loaded`, "JSON parse error"},
		{"schema violation", `{"optionsAnalysis":[{"optionId":"a","confidence":0.5}]}`, "totalScore"},
		{"missing confidence", `{"optionsAnalysis":[{"optionId":"a","totalScore":0.5},{"optionId":"b","totalScore":0.4}]}`, "confidence"},
		{"unknown option", `{"optionsAnalysis":[{"optionId":"a","totalScore":0.5,"confidence":0.8},{"optionId":"zzz","totalScore":0.5,"confidence":0.8}]}`, `unknown option id "zzz"`},
		{"duplicate option", `{"optionsAnalysis":[{"optionId":"a","totalScore":0.5,"confidence":0.8},{"optionId":"a","totalScore":0.4,"confidence":0.8}]}`, "more than once"},
		{"missing option", `{"optionsAnalysis":[{"optionId":"a","totalScore":0.5,"confidence":0.8}]}`, "1 of 2 options"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.parse(scenario, []byte(tt.line))
			require.ErrorIs(t, err, ErrParseFailure)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAdapter_Available(t *testing.T) {
	a, err := NewAdapter(Config{Command: "analyzer"})
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lookups := 0
	a.now = func() time.Time { return now }
	a.lookPath = func(string) (string, error) {
		lookups++
		return "/usr/bin/analyzer", nil
	}

	require.True(t, a.Available())
	require.True(t, a.Available())
	require.Equal(t, 1, lookups, "result should be cached")
	require.Equal(t, now, a.LastCheck())

	now = now.Add(time.Minute)
	a.lookPath = func(string) (string, error) { return "", os.ErrNotExist }
	require.False(t, a.Available())
}

func TestKindOf(t *testing.T) {
	require.Equal(t, ErrTimeout, KindOf(&Error{Kind: ErrTimeout}))
	require.Equal(t, ErrParseFailure, KindOf(newError(ErrParseFailure, "bad line")))
	require.Nil(t, KindOf(errors.New("other")))
}
