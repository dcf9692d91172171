package apply

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rowboatdb/rowboat/internal/catalog"
	"github.com/rowboatdb/rowboat/internal/db"
	"github.com/rowboatdb/rowboat/internal/diff"
)

func syncPair(t *testing.T, schema string) *db.Handle {
	t.Helper()
	dir := t.TempDir()
	dstPath := filepath.Join(dir, "dst.db")

	dst, err := db.Create(dstPath)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if _, err := dst.RawDB().Exec(schema); err != nil {
		t.Fatalf("target schema failed: %v", err)
	}
	if err := dst.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	src, err := db.Create(filepath.Join(dir, "src.db"))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })
	if _, err := src.RawDB().Exec(schema); err != nil {
		t.Fatalf("source schema failed: %v", err)
	}
	if err := src.Attach(dstPath, "backup"); err != nil {
		t.Fatalf("Attach() failed: %v", err)
	}
	return src
}

func tableCols(t *testing.T, h *db.Handle, table string) []catalog.Column {
	t.Helper()
	cols, err := catalog.Columns(context.Background(), h, "main", table)
	if err != nil {
		t.Fatalf("Columns() failed: %v", err)
	}
	return cols
}

func begin(t *testing.T, h *db.Handle) *sql.Tx {
	t.Helper()
	tx, err := h.RawDB().BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("BeginTx() failed: %v", err)
	}
	return tx
}

func countTarget(t *testing.T, h *db.Handle, table string) int {
	t.Helper()
	var n int
	if err := h.RawDB().QueryRow("SELECT count(*) FROM backup." + table).Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

func TestBatchUpsertsRows(t *testing.T) {
	h := syncPair(t, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	cols := tableCols(t, h, "t")

	tx := begin(t, h)
	n, err := Batch(context.Background(), tx, "t", "backup", cols, []diff.Row{
		{int64(1), "a"},
		{int64(2), "b"},
	})
	if err != nil {
		t.Fatalf("Batch() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Batch() applied %d rows, want 2", n)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	if got := countTarget(t, h, "t"); got != 2 {
		t.Errorf("target row count = %d, want 2", got)
	}
}

func TestBatchIsIdempotent(t *testing.T) {
	h := syncPair(t, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	cols := tableCols(t, h, "t")

	for _, name := range []string{"old", "new"} {
		tx := begin(t, h)
		if _, err := Batch(context.Background(), tx, "t", "backup", cols, []diff.Row{
			{int64(1), name},
		}); err != nil {
			t.Fatalf("Batch() failed: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() failed: %v", err)
		}
	}

	if got := countTarget(t, h, "t"); got != 1 {
		t.Fatalf("target row count = %d, want exactly one copy", got)
	}
	var name string
	if err := h.RawDB().QueryRow("SELECT name FROM backup.t WHERE id = 1").Scan(&name); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if name != "new" {
		t.Errorf("name = %q, want the latest value", name)
	}
}

func TestBatchRejectsEmpty(t *testing.T) {
	h := syncPair(t, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	cols := tableCols(t, h, "t")

	tx := begin(t, h)
	defer tx.Rollback()

	_, err := Batch(context.Background(), tx, "t", "backup", cols, nil)
	if !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Batch() error = %v, want ErrEmptyBatch", err)
	}
}

func TestBatchRejectsArityMismatch(t *testing.T) {
	h := syncPair(t, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	cols := tableCols(t, h, "t")

	tx := begin(t, h)
	_, err := Batch(context.Background(), tx, "t", "backup", cols, []diff.Row{
		{int64(1), "a"},
		{int64(2)},
	})
	if !errors.Is(err, ErrArityMismatch) {
		t.Fatalf("Batch() error = %v, want ErrArityMismatch", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}

	// Validation runs before the first write, so nothing landed.
	if got := countTarget(t, h, "t"); got != 0 {
		t.Errorf("target row count = %d, want 0", got)
	}
}

func TestBatchRollbackLeavesTargetUntouched(t *testing.T) {
	h := syncPair(t, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	cols := tableCols(t, h, "t")

	tx := begin(t, h)
	if _, err := Batch(context.Background(), tx, "t", "backup", cols, []diff.Row{
		{int64(1), "a"},
	}); err != nil {
		t.Fatalf("Batch() failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}

	if got := countTarget(t, h, "t"); got != 0 {
		t.Errorf("target row count = %d after rollback, want 0", got)
	}
}
