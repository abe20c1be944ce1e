package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Item status values recorded per processed reference.
const (
	StatusDone    = "done"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Run summarizes one orchestrator pass.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Processed  int
	Skipped    int
	Failed     int
}

// ItemRecord captures the outcome of one item within a run.
type ItemRecord struct {
	RunID     string
	Kind      string
	Code      string
	Stages    []string
	HitQuota  bool
	Status    string
	Error     string
	CreatedAt time.Time
}

// Store is an append-only sqlite journal of runs and item outcomes. It is
// observability only: the pipeline never consults it when deciding whether a
// stage needs to run.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		processed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS run_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		kind TEXT NOT NULL,
		code TEXT NOT NULL,
		stages TEXT NOT NULL,
		hit_quota INTEGER NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT,
		created_at TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate journal schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun inserts a new run row.
func (s *Store) BeginRun(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		id, startedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stamps the run with its end time and counters.
func (s *Store) FinishRun(ctx context.Context, id string, finishedAt time.Time, processed, skipped, failed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, skipped = ?, failed = ? WHERE id = ?`,
		finishedAt.UTC().Format(time.RFC3339Nano), processed, skipped, failed, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordItem appends one item outcome.
func (s *Store) RecordItem(ctx context.Context, rec ItemRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	quota := 0
	if rec.HitQuota {
		quota = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_items (run_id, kind, code, stages, hit_quota, status, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Kind, rec.Code, strings.Join(rec.Stages, ","), quota,
		rec.Status, nullableString(rec.Error), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run item: %w", err)
	}
	return nil
}

// RecentItems returns the newest item records, most recent first.
func (s *Store) RecentItems(ctx context.Context, limit int) ([]ItemRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, kind, code, stages, hit_quota, status, COALESCE(error_message, ''), created_at
		 FROM run_items ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query run items: %w", err)
	}
	defer rows.Close()

	var records []ItemRecord
	for rows.Next() {
		var rec ItemRecord
		var stages string
		var quota int
		var created string
		if err := rows.Scan(&rec.RunID, &rec.Kind, &rec.Code, &stages, &quota, &rec.Status, &rec.Error, &created); err != nil {
			return nil, fmt.Errorf("scan run item: %w", err)
		}
		if stages != "" {
			rec.Stages = strings.Split(stages, ",")
		}
		rec.HitQuota = quota != 0
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentRuns returns the newest runs, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, processed, skipped, failed
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started string
		var finished sql.NullString
		if err := rows.Scan(&run.ID, &started, &finished, &run.Processed, &run.Skipped, &run.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, started); err == nil {
			run.StartedAt = ts
		}
		if finished.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, finished.String); err == nil {
				run.FinishedAt = &ts
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
