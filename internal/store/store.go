// Package store provides SQL-backed and in-memory persistence for deal
// checklists. The same SQL store serves SQLite and PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fentz26/dealflow/internal/checklist"
	"github.com/fentz26/dealflow/internal/models"
	_ "modernc.org/sqlite"
)

// Backend is everything the service layer needs from persistence.
type Backend interface {
	checklist.TaskStore
	WriteDecision(ctx context.Context, d *models.DecisionRecord) error
	ListDecisions(ctx context.Context, dealID string, limit int) ([]models.DecisionRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open returns the backend named by driver: "sqlite" (path), "postgres"
// (url) or "memory".
func Open(ctx context.Context, driver, path, url string) (Backend, error) {
	switch driver {
	case "", "sqlite":
		return New(path)
	case "postgres":
		return OpenPostgres(ctx, url)
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("%w: unknown store driver %q", models.ErrValidation, driver)
}

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store is the SQL implementation of Backend.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// New creates a SQLite store at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, dialect: dialectSQLite}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	deal_id TEXT NOT NULL,
	ord INTEGER NOT NULL DEFAULT 999,
	phase TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	responsible TEXT NOT NULL DEFAULT '',
	system TEXT NOT NULL DEFAULT '',
	workstream TEXT NOT NULL DEFAULT 'other',
	start_date DATETIME,
	due_date DATETIME,
	completed_at DATETIME,
	status TEXT NOT NULL DEFAULT 'pending',
	critical INTEGER NOT NULL DEFAULT 0,
	version INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS checklist_seeds (
	deal_id TEXT PRIMARY KEY,
	deal_type TEXT NOT NULL,
	task_count INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	inputs_hash TEXT NOT NULL,
	outcome TEXT NOT NULL,
	deal_id TEXT,
	task_id TEXT,
	details TEXT,
	timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_deal_id ON tasks(deal_id);
CREATE INDEX IF NOT EXISTS idx_decisions_deal_id ON decisions(deal_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	deal_id TEXT NOT NULL,
	ord INTEGER NOT NULL DEFAULT 999,
	phase TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	responsible TEXT NOT NULL DEFAULT '',
	system TEXT NOT NULL DEFAULT '',
	workstream TEXT NOT NULL DEFAULT 'other',
	start_date TIMESTAMPTZ,
	due_date TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	status TEXT NOT NULL DEFAULT 'pending',
	critical BOOLEAN NOT NULL DEFAULT FALSE,
	version BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS checklist_seeds (
	deal_id TEXT PRIMARY KEY,
	deal_type TEXT NOT NULL,
	task_count INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	inputs_hash TEXT NOT NULL,
	outcome TEXT NOT NULL,
	deal_id TEXT,
	task_id TEXT,
	details TEXT,
	timestamp TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_deal_id ON tasks(deal_id);
CREATE INDEX IF NOT EXISTS idx_decisions_deal_id ON decisions(deal_id);
`

// Migrate runs idempotent schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.dialect == dialectPostgres {
		schema = postgresSchema
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// rebind rewrites ? placeholders as $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// storeErr wraps a driver failure so callers can match models.ErrStore.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrStore, op, err)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
