package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// DefaultPath is where the decision log lives when no path is configured.
const DefaultPath = ".opsdecide/history.db"

// Store is the append-only decision log. Rows are never updated or deleted;
// aggregates are rebuilt from it once at start-up.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the SQLite log at path, creating parent directories
// as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve history db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history db dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// A single connection keeps the pragmas below in effect for every query
	// and serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, path: absPath}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS analyses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scenario_id TEXT NOT NULL,
			ts TEXT NOT NULL,
			scenario_type TEXT NOT NULL,
			method TEXT NOT NULL,
			payload_json TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scenario_id TEXT NOT NULL,
			ts TEXT NOT NULL,
			payload_json TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_analyses_scenario ON analyses(scenario_id);
	`)
	if err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Path returns the absolute path of the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendAnalysis writes one analysis to the log.
func (s *Store) AppendAnalysis(ctx context.Context, a *models.DecisionAnalysis) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO analyses (scenario_id, ts, scenario_type, method, payload_json) VALUES (?, ?, ?, ?, ?)",
		a.ScenarioID,
		a.Timestamp.UTC().Format(time.RFC3339Nano),
		string(a.ScenarioType),
		string(a.AnalysisMethod),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// AppendOutcome writes one outcome report to the log.
func (s *Store) AppendOutcome(ctx context.Context, o models.OutcomeReport) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO outcomes (scenario_id, ts, payload_json) VALUES (?, ?, ?)",
		o.ScenarioID,
		o.ReportedAt.UTC().Format(time.RFC3339Nano),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// ReplayAnalyses calls fn for every logged analysis in insertion order.
func (s *Store) ReplayAnalyses(ctx context.Context, fn func(*models.DecisionAnalysis) error) error {
	return s.replay(ctx, "SELECT payload_json FROM analyses ORDER BY id", func(payload []byte) error {
		var a models.DecisionAnalysis
		if err := json.Unmarshal(payload, &a); err != nil {
			return fmt.Errorf("decode analysis: %w", err)
		}
		return fn(&a)
	})
}

// ReplayOutcomes calls fn for every logged outcome in insertion order.
func (s *Store) ReplayOutcomes(ctx context.Context, fn func(models.OutcomeReport) error) error {
	return s.replay(ctx, "SELECT payload_json FROM outcomes ORDER BY id", func(payload []byte) error {
		var o models.OutcomeReport
		if err := json.Unmarshal(payload, &o); err != nil {
			return fmt.Errorf("decode outcome: %w", err)
		}
		return fn(o)
	})
}

func (s *Store) replay(ctx context.Context, query string, fn func([]byte) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}
	// Rows are buffered so fn may write to the store without deadlocking on
	// the single connection.
	var payloads [][]byte
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan history row: %w", err)
		}
		payloads = append(payloads, []byte(payload))
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate history: %w", err)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close history rows: %w", err)
	}

	for _, p := range payloads {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// Counts returns the number of logged analyses and outcomes.
func (s *Store) Counts(ctx context.Context) (analyses, outcomes int, err error) {
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analyses").Scan(&analyses); err != nil {
		return 0, 0, fmt.Errorf("count analyses: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outcomes").Scan(&outcomes); err != nil {
		return 0, 0, fmt.Errorf("count outcomes: %w", err)
	}
	return analyses, outcomes, nil
}
