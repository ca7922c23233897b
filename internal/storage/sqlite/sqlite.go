// Package sqlite provides a SQLite-backed implementation of the
// storage.Tracker interface using Go's standard database/sql package.
//
// WHY SQLite?
// ───────────
// The tracking store is addressed by a URI such as sqlite:///mlflow.db,
// the same form MLflow uses for its local backend. SQLite keeps every run
// in a single file next to the project: no server process, nothing to
// install beyond the driver.
//
// The blank import below registers the sqlite3 driver with database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aanand-mishra/churn-api/internal/storage"
	"github.com/aanand-mishra/churn-api/internal/types"
	"github.com/google/uuid"

	// Blank import: side-effect only (registers the "sqlite3" driver).
	_ "github.com/mattn/go-sqlite3"
)

const uriScheme = "sqlite:///"

// SQLite is the concrete implementation of storage.Tracker.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db           *sql.DB
	experimentID int64
	experiment   string
}

var _ storage.Tracker = (*SQLite)(nil)

// PathFromURI extracts the database file path from a tracking URI.
//
//	sqlite:///mlflow.db       → mlflow.db
//	sqlite:////var/mlflow.db  → /var/mlflow.db
//	runs.db                   → runs.db (bare paths are accepted as-is)
func PathFromURI(uri string) (string, error) {
	switch {
	case strings.HasPrefix(uri, uriScheme):
		path := strings.TrimPrefix(uri, uriScheme)
		if path == "" {
			return "", fmt.Errorf("sqlite: tracking uri %q has no path", uri)
		}
		return path, nil
	case strings.Contains(uri, "://"):
		return "", fmt.Errorf("sqlite: unsupported tracking uri %q", uri)
	case uri == "":
		return "", errors.New("sqlite: empty tracking uri")
	default:
		return uri, nil
	}
}

// New opens the tracking database named by uri, creates the schema if it
// does not already exist and makes sure the experiment row exists.
func New(uri, experiment string) (*SQLite, error) {
	path, err := PathFromURI(uri)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}
	// SQLite allows one writer at a time; a single connection avoids
	// "database is locked" between our own statements.
	db.SetMaxOpenConns(1)

	// CREATE TABLE IF NOT EXISTS is idempotent and runs on every
	// startup. Times are unix milliseconds, as MLflow stores them.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS experiments (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT    NOT NULL UNIQUE,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS runs (
			id            TEXT    PRIMARY KEY,
			experiment_id INTEGER NOT NULL REFERENCES experiments(id),
			name          TEXT    NOT NULL,
			status        TEXT    NOT NULL,
			start_time    INTEGER NOT NULL,
			end_time      INTEGER
		);
		CREATE TABLE IF NOT EXISTS tags (
			run_id TEXT NOT NULL REFERENCES runs(id),
			key    TEXT NOT NULL,
			value  TEXT NOT NULL,
			PRIMARY KEY (run_id, key)
		);
		CREATE TABLE IF NOT EXISTS params (
			run_id TEXT NOT NULL REFERENCES runs(id),
			key    TEXT NOT NULL,
			value  TEXT NOT NULL,
			PRIMARY KEY (run_id, key)
		);
		CREATE TABLE IF NOT EXISTS metrics (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT    NOT NULL REFERENCES runs(id),
			key       TEXT    NOT NULL,
			value     REAL    NOT NULL,
			timestamp INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS artifacts (
			run_id     TEXT    NOT NULL REFERENCES runs(id),
			name       TEXT    NOT NULL,
			data       BLOB    NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (run_id, name)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create tables: %w", err)
	}

	s := &SQLite{Db: db, experiment: experiment}
	if err := s.ensureExperiment(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) ensureExperiment() error {
	_, err := s.Db.Exec(
		"INSERT OR IGNORE INTO experiments (name, created_at) VALUES (?, ?)",
		s.experiment, nowMillis(),
	)
	if err != nil {
		return fmt.Errorf("ensureExperiment: insert: %w", err)
	}
	err = s.Db.QueryRow("SELECT id FROM experiments WHERE name = ?", s.experiment).Scan(&s.experimentID)
	if err != nil {
		return fmt.Errorf("ensureExperiment: scan: %w", err)
	}
	return nil
}

// StartRun inserts a RUNNING run with its tags and returns the new run ID.
func (s *SQLite) StartRun(ctx context.Context, name string, tags map[string]string) (string, error) {
	id := uuid.NewString()

	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("StartRun: begin: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, experiment_id, name, status, start_time) VALUES (?, ?, ?, ?, ?)",
		id, s.experimentID, name, "RUNNING", nowMillis(),
	)
	if err != nil {
		return "", fmt.Errorf("StartRun: insert run: %w", err)
	}
	for k, v := range tags {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tags (run_id, key, value) VALUES (?, ?, ?)", id, k, v,
		); err != nil {
			return "", fmt.Errorf("StartRun: insert tag %q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("StartRun: commit: %w", err)
	}
	return id, nil
}

// LogParam records a parameter. Re-logging a key overwrites it.
func (s *SQLite) LogParam(ctx context.Context, runID, key, value string) error {
	_, err := s.Db.ExecContext(ctx,
		"INSERT OR REPLACE INTO params (run_id, key, value) VALUES (?, ?, ?)",
		runID, key, value,
	)
	if err != nil {
		return fmt.Errorf("LogParam: exec: %w", err)
	}
	return nil
}

// LogMetric appends a metric value; GetRun reports the latest per key.
func (s *SQLite) LogMetric(ctx context.Context, runID, key string, value float64) error {
	_, err := s.Db.ExecContext(ctx,
		"INSERT INTO metrics (run_id, key, value, timestamp) VALUES (?, ?, ?, ?)",
		runID, key, value, nowMillis(),
	)
	if err != nil {
		return fmt.Errorf("LogMetric: exec: %w", err)
	}
	return nil
}

// LogArtifact stores data under name, replacing an earlier blob of the
// same name in the same run.
func (s *SQLite) LogArtifact(ctx context.Context, runID, name string, data []byte) error {
	_, err := s.Db.ExecContext(ctx,
		"INSERT OR REPLACE INTO artifacts (run_id, name, data, created_at) VALUES (?, ?, ?, ?)",
		runID, name, data, nowMillis(),
	)
	if err != nil {
		return fmt.Errorf("LogArtifact: exec: %w", err)
	}
	return nil
}

// EndRun sets the final status and end time.
func (s *SQLite) EndRun(ctx context.Context, runID, status string) error {
	res, err := s.Db.ExecContext(ctx,
		"UPDATE runs SET status = ?, end_time = ? WHERE id = ?",
		status, nowMillis(), runID,
	)
	if err != nil {
		return fmt.Errorf("EndRun: exec: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no run found with id: %s", runID)
	}
	return nil
}

// GetRun loads a run with its tags, params, latest metrics and artifact
// names.
func (s *SQLite) GetRun(ctx context.Context, runID string) (types.Run, error) {
	run := types.Run{
		Tags:    map[string]string{},
		Params:  map[string]string{},
		Metrics: map[string]float64{},
	}

	var start int64
	var end sql.NullInt64
	err := s.Db.QueryRowContext(ctx, `
		SELECT r.id, e.name, r.name, r.status, r.start_time, r.end_time
		FROM runs r JOIN experiments e ON e.id = r.experiment_id
		WHERE r.id = ? LIMIT 1`, runID,
	).Scan(&run.ID, &run.Experiment, &run.Name, &run.Status, &start, &end)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Run{}, fmt.Errorf("no run found with id: %s", runID)
		}
		return types.Run{}, fmt.Errorf("GetRun: scan run: %w", err)
	}
	run.StartedAt = time.UnixMilli(start).UTC()
	if end.Valid {
		t := time.UnixMilli(end.Int64).UTC()
		run.EndedAt = &t
	}

	if err := s.scanPairs(ctx, "SELECT key, value FROM tags WHERE run_id = ?", runID, run.Tags); err != nil {
		return types.Run{}, fmt.Errorf("GetRun: tags: %w", err)
	}
	if err := s.scanPairs(ctx, "SELECT key, value FROM params WHERE run_id = ?", runID, run.Params); err != nil {
		return types.Run{}, fmt.Errorf("GetRun: params: %w", err)
	}

	rows, err := s.Db.QueryContext(ctx,
		"SELECT key, value FROM metrics WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return types.Run{}, fmt.Errorf("GetRun: metrics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return types.Run{}, fmt.Errorf("GetRun: scan metric: %w", err)
		}
		run.Metrics[key] = value // later rows win
	}
	if err := rows.Err(); err != nil {
		return types.Run{}, fmt.Errorf("GetRun: metrics iteration: %w", err)
	}

	arts, err := s.Db.QueryContext(ctx,
		"SELECT name FROM artifacts WHERE run_id = ? ORDER BY name", runID)
	if err != nil {
		return types.Run{}, fmt.Errorf("GetRun: artifacts: %w", err)
	}
	defer arts.Close()
	for arts.Next() {
		var name string
		if err := arts.Scan(&name); err != nil {
			return types.Run{}, fmt.Errorf("GetRun: scan artifact: %w", err)
		}
		run.Artifacts = append(run.Artifacts, name)
	}
	if err := arts.Err(); err != nil {
		return types.Run{}, fmt.Errorf("GetRun: artifacts iteration: %w", err)
	}

	return run, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

func (s *SQLite) scanPairs(ctx context.Context, query, runID string, into map[string]string) error {
	rows, err := s.Db.QueryContext(ctx, query, runID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		into[k] = v
	}
	return rows.Err()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
