package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mschirtzinger/taskboard/internal/clock"
)

// testDB opens a fresh database in a temp dir with a stepping clock so that
// every timestamp the store assigns is distinct.
func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	db, err := Open(path, WithClock(clock.NewStepping(start, time.Second)))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if db.remote {
		t.Error("local path opened as remote")
	}
}

func TestMigrate_CreatesTables(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"tasks", "projects", "tags", "schema_migrations"} {
		var count int
		err := db.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s does not exist", table)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() failed: %v", err)
	}
	version, err := db.AppliedVersion(ctx)
	if err != nil {
		t.Fatalf("AppliedVersion() failed: %v", err)
	}
	if version != SchemaVersion() {
		t.Errorf("AppliedVersion() = %d, want %d", version, SchemaVersion())
	}
}

func TestReopen_KeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := db.Tasks().Create(context.Background(), newInput("persisted")); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	count, err := db.Tasks().Count(context.Background())
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestWithTx_RollsBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.Tasks.Create(ctx, newInput("doomed")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	count, err := db.Tasks().Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("rolled back insert is visible: count = %d", count)
	}
}

func TestIsRemote(t *testing.T) {
	tests := []struct {
		dsn  string
		want bool
	}{
		{".taskboard/taskboard.db", false},
		{"file:/tmp/x.db", false},
		{"libsql://board.turso.io", true},
		{"https://board.turso.io", true},
		{"http://127.0.0.1:8081", true},
	}
	for _, tt := range tests {
		if got := isRemote(tt.dsn); got != tt.want {
			t.Errorf("isRemote(%q) = %v, want %v", tt.dsn, got, tt.want)
		}
	}
}

func TestTimeLayout_SortsLexically(t *testing.T) {
	a := formatTime(time.Date(2026, 1, 1, 0, 0, 0, 5, time.UTC))
	b := formatTime(time.Date(2026, 1, 1, 0, 0, 0, 40, time.UTC))
	if !(a < b) {
		t.Errorf("formatTime ordering broken: %q !< %q", a, b)
	}
	if got := parseTime(a); !got.Equal(time.Date(2026, 1, 1, 0, 0, 0, 5, time.UTC)) {
		t.Errorf("parseTime(%q) = %v", a, got)
	}
}
