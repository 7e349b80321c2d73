package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"consignrecon/internal"
)

// DB is the audit log. It stores run summaries only, never records.
type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL UNIQUE,
  loadFile TEXT NOT NULL,
  salesFile TEXT NOT NULL,
  statsJson TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_createdAt ON runs(createdAt);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) InsertRun(run internal.RunSummary) error {
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return err
	}
	timingsJSON, err := json.Marshal(run.Timings)
	if err != nil {
		return err
	}
	createdAt := run.CreatedAt
	if createdAt == "" {
		_, err = d.conn.Exec(`INSERT INTO runs (traceId, loadFile, salesFile, statsJson, timingsJson) VALUES (?, ?, ?, ?, ?)`,
			run.TraceID, run.LoadFile, run.SalesFile, string(statsJSON), string(timingsJSON))
	} else {
		_, err = d.conn.Exec(`INSERT INTO runs (traceId, loadFile, salesFile, statsJson, timingsJson, createdAt) VALUES (?, ?, ?, ?, ?, ?)`,
			run.TraceID, run.LoadFile, run.SalesFile, string(statsJSON), string(timingsJSON), createdAt)
	}
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.TraceID, err)
	}
	return d.SetMetadata("last_trace_id", run.TraceID)
}

// ListRuns returns the newest runs first.
func (d *DB) ListRuns(limit int) ([]internal.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT traceId, loadFile, salesFile, statsJson, timingsJson, createdAt
FROM runs
ORDER BY createdAt DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.RunSummary{}
	for rows.Next() {
		var run internal.RunSummary
		var statsJSON, timingsJSON string
		if err := rows.Scan(&run.TraceID, &run.LoadFile, &run.SalesFile, &statsJSON, &timingsJSON, &run.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
			return nil, fmt.Errorf("run %s stats: %w", run.TraceID, err)
		}
		if err := json.Unmarshal([]byte(timingsJSON), &run.Timings); err != nil {
			return nil, fmt.Errorf("run %s timings: %w", run.TraceID, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
