// Package store provides the relational persistence layer for the task board.
//
// Local databases are embedded SQLite files opened through ncruces/go-sqlite3
// in WAL mode, so readers proceed while a single writer commits. DSNs with a
// libsql:// or http(s):// scheme are opened through the libSQL driver against a
// Turso server instead; the schema and queries are identical.
//
// Architecture:
//   - Database file: .taskboard/taskboard.db (default)
//   - Tables: projects, tasks, tags, schema_migrations
//   - Writers: transactions start with BEGIN IMMEDIATE locally
//
// Every store type works on either the pooled connection or an open
// transaction. Use WithTx to group several calls into one atomic unit.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/mschirtzinger/taskboard/internal/clock"
)

// timeLayout is fixed-width so that text ordering equals time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps the database connection pool.
type DB struct {
	conn   *sql.DB
	path   string
	remote bool
	clock  clock.Clock
}

// Option configures Open.
type Option func(*DB)

// WithClock overrides the clock used for created_at/updated_at/completed_at.
func WithClock(c clock.Clock) Option {
	return func(db *DB) {
		db.clock = c
	}
}

// Open creates a connection pool for dsn and applies the schema.
//
// A plain path or file: DSN opens a local SQLite file, creating its parent
// directory when needed. The caller MUST call Close() when done.
//
// Example:
//
//	db, err := store.Open(".taskboard/taskboard.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(dsn string, opts ...Option) (*DB, error) {
	return OpenContext(context.Background(), dsn, opts...)
}

// OpenContext is Open with context support.
func OpenContext(ctx context.Context, dsn string, opts ...Option) (*DB, error) {
	db := &DB{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(db)
	}

	var (
		conn *sql.DB
		err  error
	)
	if isRemote(dsn) {
		db.remote = true
		db.path = dsn
		conn, err = sql.Open("libsql", dsn)
	} else {
		db.path = strings.TrimPrefix(dsn, "file:")
		if err := os.MkdirAll(filepath.Dir(db.path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		conn, err = sql.Open("sqlite3", localDSN(db.path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)
	db.conn = conn

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// localDSN applies per-connection pragmas. Pragmas set with Exec would only
// reach whichever pooled connection ran them.
func localDSN(path string) string {
	return "file:" + path +
		"?_pragma=journal_mode(wal)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)" +
		"&_txlock=immediate"
}

func isRemote(dsn string) bool {
	for _, scheme := range []string{"libsql://", "https://", "http://", "wss://"} {
		if strings.HasPrefix(dsn, scheme) {
			return true
		}
	}
	return false
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the database file path or remote URL.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Local databases get a WAL checkpoint first.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if !db.remote {
		if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// Tasks returns a TaskStore on the connection pool.
func (db *DB) Tasks() *TaskStore {
	return newTaskStore(db.conn, db.clock)
}

// Projects returns a ProjectStore on the connection pool.
func (db *DB) Projects() *ProjectStore {
	return &ProjectStore{ex: db.conn, clock: db.clock}
}

// Tags returns a TagStore on the connection pool.
func (db *DB) Tags() *TagStore {
	return &TagStore{ex: db.conn, clock: db.clock}
}

// Tx exposes the stores bound to one transaction.
type Tx struct {
	Tasks    *TaskStore
	Projects *ProjectStore
	Tags     *TagStore
}

// WithTx runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise, so no partial write is ever visible.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{
		Tasks:    newTaskStore(sqlTx, db.clock),
		Projects: &ProjectStore{ex: sqlTx, clock: db.clock},
		Tags:     &TagStore{ex: sqlTx, clock: db.clock},
	}

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// dbExecutor is satisfied by both *sql.DB and *sql.Tx.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func nullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

// placeholders returns "?, ?, ?" for n values and the ids as query args.
func placeholders(ids []int64) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ", "), args
}
