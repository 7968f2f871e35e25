package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// ErrRunNotFound is returned when a requested run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// ErrStoreLocked is returned when another process holds the store's lock.
var ErrStoreLocked = errors.New("run store is locked by another process")

// RunStore persists exploration runs in a single SQLite file, one row per
// run plus flattened issue and verification tables for querying across runs.
type RunStore struct {
	db     *sql.DB
	dbPath string
	lock   *flock.Flock
}

// Options configures RunStore behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent reads.
	EnableWAL bool
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunStore at dbDir/ui-explorer.db, taking an
// exclusive lock file next to it. A second process opening the same store
// gets ErrStoreLocked immediately rather than waiting.
func Open(dbDir string, opts Options) (*RunStore, error) {
	dbPath := filepath.Join(dbDir, "ui-explorer.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("run store not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("check store path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	lock := flock.New(dbPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, ErrStoreLocked
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open run store: %w", err)
	}

	// SQLite supports one writer; more connections only add lock churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &RunStore{db: db, dbPath: dbPath, lock: lock}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	if err := store.createTables(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return store, nil
}

// Close releases the database connection and the lock file.
func (s *RunStore) Close() error {
	err := s.db.Close()
	if s.lock != nil {
		if uerr := s.lock.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}
	return err
}

// Path returns the store's database file path.
func (s *RunStore) Path() string {
	return s.dbPath
}

// createTables creates the schema if it doesn't exist.
func (s *RunStore) createTables() error {
	schema := `
	-- One row per exploration run; result_json holds the full RunResult.
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		states INTEGER NOT NULL DEFAULT 0,
		transitions INTEGER NOT NULL DEFAULT 0,
		actions INTEGER NOT NULL DEFAULT 0,
		issues INTEGER NOT NULL DEFAULT 0,
		verify_failed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		result_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Issues flattened out of the result for cross-run queries.
	CREATE TABLE IF NOT EXISTS issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		rule TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		url TEXT,
		viewport TEXT,
		state_fingerprint TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_issues_run ON issues(run_id);
	CREATE INDEX IF NOT EXISTS idx_issues_rule ON issues(rule);

	-- Verification outcomes for regression detection between runs.
	CREATE TABLE IF NOT EXISTS verifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		schema TEXT NOT NULL,
		expectation TEXT NOT NULL,
		passed INTEGER NOT NULL,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_verifications_run ON verifications(run_id);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a complete run: the summary row, the full JSON, and the
// flattened issues and verifications, atomically.
func (s *RunStore) SaveRun(ctx context.Context, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("serialize run: %w", err)
	}
	summary := result.Summarize()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, target, started_at, finished_at, states, transitions, actions, issues, verify_failed, error, result_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		finished_at = excluded.finished_at,
		states = excluded.states,
		transitions = excluded.transitions,
		actions = excluded.actions,
		issues = excluded.issues,
		verify_failed = excluded.verify_failed,
		error = excluded.error,
		result_json = excluded.result_json`,
		result.RunID,
		result.Target,
		result.StartedAt.UTC().Format(time.RFC3339Nano),
		result.FinishedAt.UTC().Format(time.RFC3339Nano),
		summary.States,
		summary.Transitions,
		summary.Actions,
		summary.Issues,
		summary.VerifyFailed,
		result.Error,
		string(resultJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	// Re-save replaces the flattened rows wholesale.
	if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE run_id = ?`, result.RunID); err != nil {
		return fmt.Errorf("clear issues: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM verifications WHERE run_id = ?`, result.RunID); err != nil {
		return fmt.Errorf("clear verifications: %w", err)
	}

	for _, issue := range result.Issues {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO issues (run_id, rule, severity, message, url, viewport, state_fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
			result.RunID, issue.Rule, issue.Severity.String(), issue.Message,
			issue.URL, issue.Viewport, issue.StateFingerprint,
		); err != nil {
			return fmt.Errorf("insert issue: %w", err)
		}
	}
	for _, v := range result.Verifications {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO verifications (run_id, schema, expectation, passed, message)
		VALUES (?, ?, ?, ?, ?)`,
			result.RunID, v.Schema, v.Expectation, boolToInt(v.Passed), v.Message,
		); err != nil {
			return fmt.Errorf("insert verification: %w", err)
		}
	}

	return tx.Commit()
}

// RunSummary is one row of run history.
type RunSummary struct {
	RunID        string
	Target       string
	StartedAt    time.Time
	FinishedAt   time.Time
	States       int
	Transitions  int
	Actions      int
	Issues       int
	VerifyFailed int
	Error        string
}

// ListRuns returns run summaries newest first. An empty target lists every
// run; a non-empty target filters to it.
func (s *RunStore) ListRuns(ctx context.Context, target string) ([]RunSummary, error) {
	query := `
	SELECT run_id, target, started_at, finished_at, states, transitions, actions, issues, verify_failed, COALESCE(error, '')
	FROM runs`
	args := []any{}
	if target != "" {
		query += ` WHERE target = ?`
		args = append(args, target)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished string
		if err := rows.Scan(&r.RunID, &r.Target, &started, &finished,
			&r.States, &r.Transitions, &r.Actions, &r.Issues, &r.VerifyFailed, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = parseTimestamp(started)
		r.FinishedAt = parseTimestamp(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Targets returns every distinct target that has stored runs.
func (s *RunStore) Targets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT target FROM runs ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetRun loads one run's full result by id.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*model.RunResult, error) {
	var resultJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT result_json FROM runs WHERE run_id = ?`, runID).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	var result model.RunResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &result, nil
}

// LatestTwo returns the most recent run for a target and the one before it.
// previous is nil when only one run exists; both nil plus ErrRunNotFound
// when none do.
func (s *RunStore) LatestTwo(ctx context.Context, target string) (latest, previous *model.RunResult, err error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT result_json FROM runs WHERE target = ?
	ORDER BY started_at DESC LIMIT 2`, target)
	if err != nil {
		return nil, nil, fmt.Errorf("latest runs: %w", err)
	}
	defer rows.Close()

	var results []*model.RunResult
	for rows.Next() {
		var resultJSON string
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, nil, fmt.Errorf("scan run: %w", err)
		}
		var r model.RunResult
		if err := json.Unmarshal([]byte(resultJSON), &r); err != nil {
			return nil, nil, fmt.Errorf("decode run: %w", err)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	switch len(results) {
	case 0:
		return nil, nil, fmt.Errorf("%w: no runs for %s", ErrRunNotFound, target)
	case 1:
		return results[0], nil, nil
	default:
		return results[0], results[1], nil
	}
}

// parseTimestamp handles the formats SQLite may hand back.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
