// SQLite-backed history store, for single-sheriff deployments that want
// durable incident history across process restarts without standing up
// PostgreSQL. Uses the same pure-Go driver and WAL pragma as the
// teacher's fleet store.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store with SQLite persistence.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a SQLite history database at
// dbPath. Use ":memory:" for an ephemeral database in tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		ts DATETIME NOT NULL,
		kind TEXT NOT NULL,
		deputy TEXT NOT NULL DEFAULT '',
		command TEXT NOT NULL DEFAULT '',
		old_status TEXT NOT NULL DEFAULT '',
		new_status TEXT NOT NULL DEFAULT '',
		script TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_history_ts ON history(ts)`)
	return err
}

func (s *SQLiteStore) Append(_ context.Context, r Record) error {
	_, err := s.db.Exec(`INSERT INTO history (id, ts, kind, deputy, command, old_status, new_status, script, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp.UTC(), r.Kind, r.Deputy, r.Command, r.OldStatus, r.NewStatus, r.Script, r.Detail)
	return err
}

func (s *SQLiteStore) Since(_ context.Context, t time.Time) ([]Record, error) {
	rows, err := s.db.Query(`SELECT id, ts, kind, deputy, command, old_status, new_status, script, detail
		FROM history WHERE ts >= ? ORDER BY ts ASC`, t.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows rowScanner) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Kind, &r.Deputy, &r.Command, &r.OldStatus, &r.NewStatus, &r.Script, &r.Detail); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
