// PostgreSQL-backed history store, for multi-sheriff or long-retention
// deployments that already run a shared Postgres instance for other
// control-plane state.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresConfig holds connection parameters for PostgreSQL.
type PostgresConfig struct {
	Host     string `yaml:"host" env:"SHERIFF_PG_HOST"`
	Port     int    `yaml:"port" env:"SHERIFF_PG_PORT"`
	User     string `yaml:"user" env:"SHERIFF_PG_USER"`
	Password string `yaml:"password" env:"SHERIFF_PG_PASSWORD"`
	Database string `yaml:"database" env:"SHERIFF_PG_DATABASE"`
	SSLMode  string `yaml:"ssl_mode" env:"SHERIFF_PG_SSLMODE"`
}

// DSN returns a PostgreSQL connection string.
func (c PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.User, c.Password, c.Database, sslMode)
}

// PostgresStore implements Store with PostgreSQL persistence.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and ensures the schema exists.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	return newPostgresStore(cfg.DSN())
}

// NewPostgresStoreFromDSN is the same as NewPostgresStore for a caller
// that already has a full connection string (config.DaemonConfig's
// History.Postgres field), rather than the individual PostgresConfig
// fields.
func NewPostgresStoreFromDSN(dsn string) (*PostgresStore, error) {
	return newPostgresStore(dsn)
}

func newPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
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

func (s *PostgresStore) Append(_ context.Context, r Record) error {
	_, err := s.db.Exec(`INSERT INTO history (id, ts, kind, deputy, command, old_status, new_status, script, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.Timestamp.UTC(), r.Kind, r.Deputy, r.Command, r.OldStatus, r.NewStatus, r.Script, r.Detail)
	return err
}

func (s *PostgresStore) Since(_ context.Context, t time.Time) ([]Record, error) {
	rows, err := s.db.Query(`SELECT id, ts, kind, deputy, command, old_status, new_status, script, detail
		FROM history WHERE ts >= $1 ORDER BY ts ASC`, t.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) Close() error { return s.db.Close() }
