package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger creates a dual-output logger: text to stderr, JSON to file.
// An empty logFile, or one that cannot be opened, yields a stderr-only
// logger. The returned cleanup closes the file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	if logFile == "" {
		return slog.New(stderrHandler), func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return slog.New(stderrHandler), func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler)), file.Close
}

// SetupLoggerWithWriters creates the same fan-out logger over arbitrary
// writers.
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}

// ParseLevel maps a config string onto a slog level. Unknown values mean
// info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AnalysisAttrs returns the structured attributes logged for an analysis.
func AnalysisAttrs(a *models.DecisionAnalysis) []any {
	attrs := []any{
		"scenario_id", a.ScenarioID,
		"scenario_type", a.ScenarioType,
		"method", a.AnalysisMethod,
		"options", a.OptionsAnalyzed,
	}

	var primaryID *string
	var risk *models.RiskLevel
	if p, ok := a.Primary(); ok {
		primaryID = &p.OptionID
		risk = &p.RiskLevel
	}
	attrs = addIf(attrs, "primary", primaryID)
	attrs = addIf(attrs, "risk", risk)

	return attrs
}

func addIf[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name)
		attrs = append(attrs, *v)
	}

	return attrs
}
