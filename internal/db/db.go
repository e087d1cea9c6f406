package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	embedsql "github.com/ldi/trellis/embed/sql"
	"github.com/ldi/trellis/pkg/models"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned by mutations that target a missing record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidStatus is returned when a status update is rejected.
	ErrInvalidStatus = errors.New("invalid status update")
)

// pragmas run on every new database handle.
var pragmas = []struct{ stmt, what string }{
	{"PRAGMA journal_mode=WAL;", "enable WAL mode"},
	{"PRAGMA foreign_keys=ON;", "enable foreign keys"},
	{"PRAGMA busy_timeout=5000;", "set busy timeout"},
}

// DB is the entity store: organizations, projects, modules and tasks in one
// SQLite file.
type DB struct {
	*sql.DB
	hook changeHook
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// changeHook is called after every committed write.
type changeHook struct {
	mu sync.Mutex
	fn func(ctx context.Context)
}

func (h *changeHook) fire(ctx context.Context) {
	h.mu.Lock()
	fn := h.fn
	h.mu.Unlock()

	if fn != nil {
		fn(ctx)
	}
}

// SetOnChange registers fn to run after each write. A nil fn clears it.
func (db *DB) SetOnChange(fn func(ctx context.Context)) {
	db.hook.mu.Lock()
	defer db.hook.mu.Unlock()
	db.hook.fn = fn
}

// Open opens a SQLite database at path, creating its directory. ":memory:"
// opens a private in-memory database.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p.stmt); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to %s: %w", p.what, err)
		}
	}

	// One connection serializes writers and keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)

	return &DB{DB: sqlDB}, nil
}

// Migrate applies schema. Schemas must be idempotent.
func (db *DB) Migrate(ctx context.Context, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	db.hook.fire(ctx)
	return nil
}

func (db *DB) Init(ctx context.Context) error {
	return db.Migrate(ctx, embedsql.Schema)
}

// Batch collects creates into one transaction.
type Batch struct {
	ctx context.Context
	db  *DB
	tx  *sql.Tx
}

func (b *Batch) CreateOrganization(o *models.Organization) error {
	return b.db.createOrganization(b.ctx, b.tx, o)
}

func (b *Batch) CreateProject(p *models.Project) error {
	return b.db.createProject(b.ctx, b.tx, p)
}

func (b *Batch) CreateModule(m *models.Module) error {
	return b.db.createModule(b.ctx, b.tx, m)
}

func (b *Batch) CreateTask(t *models.Task) error {
	return b.db.createTask(b.ctx, b.tx, t)
}

// InBatch runs fn in a single transaction. Nothing is written unless fn
// returns nil, and the change hook fires once after the commit.
func (db *DB) InBatch(ctx context.Context, fn func(b *Batch) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Batch{ctx: ctx, db: db, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	db.hook.fire(ctx)
	return nil
}

// Counts returns the number of records per table, keyed by table name.
func (db *DB) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, table := range []string{"organizations", "projects", "modules", "tasks"} {
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
