// Package projectconfig loads .opsdecide.yaml project configuration files.
package projectconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/backend"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/scoring"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/utils"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up from the working directory.
const FileName = ".opsdecide.yaml"

// Environment variables that override the file.
const (
	EnvLogLevel = "OPSDECIDE_LOG_LEVEL"
	EnvPort     = "OPSDECIDE_PORT"
)

// Default values for configuration fields.
const (
	DefaultPort            = 8080
	DefaultHost            = "0.0.0.0"
	DefaultBackendTimeout  = "10s"
	DefaultTrainingTimeout = "30m"
	DefaultMaxConcurrent   = 4
	DefaultAlternatives    = 2
	DefaultHistoryPath     = ".opsdecide/history.db"
	DefaultLogLevel        = "info"

	maxWalkUp = 10
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port,omitempty"`
	Host        string   `yaml:"host,omitempty"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// BackendConfig describes the external analysis process. An empty command
// leaves the engine on rule-based scoring.
type BackendConfig struct {
	Command         string   `yaml:"command,omitempty"`
	Args            []string `yaml:"args,omitempty"`
	Timeout         string   `yaml:"timeout,omitempty"`
	TrainingTimeout string   `yaml:"training_timeout,omitempty"`
	MaxConcurrent   int      `yaml:"max_concurrent,omitempty"`
}

// ScoringConfig tunes the rule-based scorer. Zero values keep the scorer's
// defaults.
type ScoringConfig struct {
	CostWeight          float64 `yaml:"cost_weight,omitempty"`
	DelayWeight         float64 `yaml:"delay_weight,omitempty"`
	WeatherWeight       float64 `yaml:"weather_weight,omitempty"`
	DelayCeilingMinutes float64 `yaml:"delay_ceiling_minutes,omitempty"`
	VisibilityCeilingKm float64 `yaml:"visibility_ceiling_km,omitempty"`
	VisibilityShare     float64 `yaml:"visibility_share,omitempty"`
	BaseScore           float64 `yaml:"base_score,omitempty"`
	Confidence          float64 `yaml:"confidence,omitempty"`
	LowRiskAbove        float64 `yaml:"low_risk_above,omitempty"`
	HighRiskBelow       float64 `yaml:"high_risk_below,omitempty"`
	CriticalRiskBelow   float64 `yaml:"critical_risk_below,omitempty"`
}

// RecommendConfig controls the recommendation builder.
type RecommendConfig struct {
	Alternatives int `yaml:"alternatives,omitempty"`
}

// HistoryConfig controls the persisted decision log.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// LoggingConfig controls log level and the optional JSON log file.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
	File  string `yaml:"file,omitempty"`
}

// ProjectConfig is the top-level structure of .opsdecide.yaml.
type ProjectConfig struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	Backend   BackendConfig   `yaml:"backend,omitempty"`
	Scoring   ScoringConfig   `yaml:"scoring,omitempty"`
	Recommend RecommendConfig `yaml:"recommend,omitempty"`
	History   HistoryConfig   `yaml:"history,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`

	// Dir is the directory containing the loaded file. Relative paths in
	// the file resolve against it. Empty when no file was found.
	Dir string `yaml:"-"`
}

// New returns a ProjectConfig populated with default values.
func New() *ProjectConfig {
	return &ProjectConfig{
		Server: ServerConfig{
			Port: DefaultPort,
			Host: DefaultHost,
		},
		Backend: BackendConfig{
			Timeout:         DefaultBackendTimeout,
			TrainingTimeout: DefaultTrainingTimeout,
			MaxConcurrent:   DefaultMaxConcurrent,
		},
		Recommend: RecommendConfig{
			Alternatives: DefaultAlternatives,
		},
		History: HistoryConfig{
			Enabled: utils.Ptr(true),
			Path:    DefaultHistoryPath,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Load searches for .opsdecide.yaml starting from startDir and walking up.
// If no file is found, it returns defaults. Environment overrides are
// applied in both cases.
func Load(startDir string) (*ProjectConfig, error) {
	path := findConfigFile(startDir)
	if path == "" {
		cfg := New()
		if err := cfg.applyEnv(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads a specific configuration file and overlays it on the
// defaults.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg := New()
	mergeConfig(cfg, &fileCfg)
	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		cfg.Dir = abs
	} else {
		cfg.Dir = filepath.Dir(path)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// findConfigFile walks up from dir looking for .opsdecide.yaml.
func findConfigFile(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for range maxWalkUp {
		candidate := filepath.Join(abs, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			break
		}
		abs = parent
	}
	return ""
}

func (c *ProjectConfig) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks values that would otherwise fail late at start-up.
func (c *ProjectConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if _, err := parseDuration(c.Backend.Timeout); err != nil {
		return fmt.Errorf("backend.timeout: %w", err)
	}
	if _, err := parseDuration(c.Backend.TrainingTimeout); err != nil {
		return fmt.Errorf("backend.training_timeout: %w", err)
	}
	if c.Recommend.Alternatives < 0 {
		return fmt.Errorf("recommend.alternatives must not be negative")
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c *ProjectConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// HistoryEnabled reports whether the decision log should be opened.
func (c *ProjectConfig) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

// HistoryPath returns the history database path resolved against Dir.
func (c *ProjectConfig) HistoryPath() string {
	return utils.ResolvePath(c.History.Path, c.Dir)
}

// LogFile returns the log file path resolved against Dir, or "".
func (c *ProjectConfig) LogFile() string {
	if c.Logging.File == "" {
		return ""
	}
	return utils.ResolvePath(c.Logging.File, c.Dir)
}

// RuleScorer builds the rule-based scorer with the configured overrides.
func (c *ProjectConfig) RuleScorer() *scoring.RuleScorer {
	s := scoring.NewRuleScorer()
	sc := c.Scoring

	setIf(&s.Weights.Cost, sc.CostWeight)
	setIf(&s.Weights.Delay, sc.DelayWeight)
	setIf(&s.Weights.Weather, sc.WeatherWeight)
	setIf(&s.Weights.DelayCeilingMinutes, sc.DelayCeilingMinutes)
	setIf(&s.Weights.VisibilityCeilingKm, sc.VisibilityCeilingKm)
	setIf(&s.Weights.VisibilityShare, sc.VisibilityShare)
	setIf(&s.BaseScore, sc.BaseScore)
	setIf(&s.Confidence, sc.Confidence)
	s.Thresholds = c.Thresholds()
	return s
}

// Thresholds returns the risk thresholds with the configured overrides.
func (c *ProjectConfig) Thresholds() scoring.Thresholds {
	t := scoring.DefaultThresholds()
	setIf(&t.LowAbove, c.Scoring.LowRiskAbove)
	setIf(&t.HighBelow, c.Scoring.HighRiskBelow)
	setIf(&t.CriticalBelow, c.Scoring.CriticalRiskBelow)
	return t
}

// BackendConfig converts the backend section into an adapter config. The
// caller checks Command before building an adapter.
func (c *ProjectConfig) BackendConfig() (backend.Config, error) {
	timeout, err := parseDuration(c.Backend.Timeout)
	if err != nil {
		return backend.Config{}, fmt.Errorf("backend.timeout: %w", err)
	}
	return backend.Config{
		Command:       c.Backend.Command,
		Args:          append([]string(nil), c.Backend.Args...),
		Dir:           c.Dir,
		Timeout:       timeout,
		MaxConcurrent: c.Backend.MaxConcurrent,
		Thresholds:    c.Thresholds(),
	}, nil
}

// TrainingTimeout returns the parsed training deadline.
func (c *ProjectConfig) TrainingTimeout() time.Duration {
	d, err := parseDuration(c.Backend.TrainingTimeout)
	if err != nil {
		return 0
	}
	return d
}

// parseDuration accepts Go duration strings and bare numbers of seconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.Host != "" {
		dst.Server.Host = src.Server.Host
	}
	if len(src.Server.CORSOrigins) > 0 {
		dst.Server.CORSOrigins = src.Server.CORSOrigins
	}

	// Backend
	if src.Backend.Command != "" {
		dst.Backend.Command = src.Backend.Command
	}
	if len(src.Backend.Args) > 0 {
		dst.Backend.Args = src.Backend.Args
	}
	if src.Backend.Timeout != "" {
		dst.Backend.Timeout = src.Backend.Timeout
	}
	if src.Backend.TrainingTimeout != "" {
		dst.Backend.TrainingTimeout = src.Backend.TrainingTimeout
	}
	if src.Backend.MaxConcurrent != 0 {
		dst.Backend.MaxConcurrent = src.Backend.MaxConcurrent
	}

	// Scoring overrides stay zero unless set; RuleScorer fills defaults.
	dst.Scoring = src.Scoring

	// Recommend
	if src.Recommend.Alternatives != 0 {
		dst.Recommend.Alternatives = src.Recommend.Alternatives
	}

	// History
	if src.History.Enabled != nil {
		dst.History.Enabled = src.History.Enabled
	}
	if src.History.Path != "" {
		dst.History.Path = src.History.Path
	}

	// Logging
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Logging.File != "" {
		dst.Logging.File = src.Logging.File
	}
}

func setIf(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}
