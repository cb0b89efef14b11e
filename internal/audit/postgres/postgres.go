// Package postgres implements the audit.Log interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/gatepass/internal/audit"
	"github.com/alfredjeanlab/gatepass/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Log implements audit.Log on a single audit_entries table. Each category
// numbers its own entries; appends to one category are serialized by a
// transaction-scoped advisory lock, and (category, seq) is unique.
type Log struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time check that Log implements audit.Log.
var _ audit.Log = (*Log)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*Log, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newLog(db), nil
}

func newLog(db *sql.DB) *Log {
	return &Log{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) Append(ctx context.Context, category model.Category, payload any) (model.AuditEntry, error) {
	if err := audit.CheckCategory(category); err != nil {
		return model.AuditEntry{}, err
	}
	data, err := audit.EncodePayload(payload)
	if err != nil {
		return model.AuditEntry{}, err
	}
	e := model.AuditEntry{
		Category:  category,
		Timestamp: l.now(),
		Payload:   data,
	}
	if err := l.append(ctx, &e); err != nil {
		return model.AuditEntry{}, fmt.Errorf("append %s: %w", category, err)
	}
	return e, nil
}

func (l *Log) append(ctx context.Context, e *model.AuditEntry) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := queryLockCategory(ctx, tx, e.Category); err != nil {
		return err
	}
	if err := queryAppend(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func (l *Log) Query(ctx context.Context, category model.Category) ([]model.AuditEntry, error) {
	if err := audit.CheckCategory(category); err != nil {
		return nil, err
	}
	entries, err := queryList(ctx, l.db, category)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", category, err)
	}
	return entries, nil
}
