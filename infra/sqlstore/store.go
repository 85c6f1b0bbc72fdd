// Package sqlstore implements the planning store on SQL databases. The
// same queries run on SQLite (modernc.org/sqlite) and PostgreSQL
// (github.com/lib/pq); instants are stored as Unix nanoseconds.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/fieldplan/core/store"
)

// Config selects and configures the backend.
type Config struct {
	// Backend is memory, sqlite or postgres.
	Backend string `json:"backend"`
	// DSN is the sqlite file path or the postgres connection string.
	DSN string `json:"dsn"`
	// MaxOpenConns bounds the pool; 0 keeps the driver default.
	MaxOpenConns int `json:"max_open_conns"`
}

// SetDefaults selects the memory backend when none is set.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.DSN == "" {
		c.DSN = "fieldplan.db"
	}
}

// Validate checks the backend name and DSN.
func (c Config) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "sqlite", "postgres":
		if c.DSN == "" {
			return fmt.Errorf("store: dsn is required for %s", c.Backend)
		}
	default:
		return fmt.Errorf("store: unknown backend %q", c.Backend)
	}
	if c.MaxOpenConns < 0 {
		return fmt.Errorf("store: max_open_conns must be >= 0")
	}
	return nil
}

// Open builds the configured store.
func Open(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.DSN)
	case "postgres":
		s, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.MaxOpenConns > 0 {
			s.db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		return s, nil
	}
	return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
}

// Store is a SQL backed store.Store.
type Store struct {
	db *sql.DB
	d  dialect
}

var _ store.Store = (*Store)(nil)

// OpenSQLite opens or creates the database at path. ":memory:" gives a
// private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	// One connection, so a :memory: database is the same for every query.
	return open(ctx, sqliteDialect, path, 1)
}

// OpenPostgres connects to dsn and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	return open(ctx, postgresDialect, dsn, 0)
}

func open(ctx context.Context, d dialect, dsn string, maxConns int) (*Store, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d.name, err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.name, err)
	}
	s := &Store{db: db, d: d}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: migrate: %w", s.d.name, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.d.rebind(q), args...)
}

func (s *Store) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.d.rebind(q), args...)
}

func (s *Store) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.d.rebind(q), args...)
}

// miss maps sql.ErrNoRows to store.ErrNotFound.
func miss(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", kind, id, err)
}

func nanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func decodeList(s string) ([]string, error) {
	var v []string
	if s == "" {
		return v, nil
	}
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}

type scanner interface {
	Scan(dest ...any) error
}
