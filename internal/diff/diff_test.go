package diff

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rowboatdb/rowboat/internal/catalog"
	"github.com/rowboatdb/rowboat/internal/db"
)

// syncPairWith opens a source handle with the target attached under
// "backup", applying srcSchema to the source and dstSchema to the
// target first.
func syncPairWith(t *testing.T, srcSchema, dstSchema []string) *db.Handle {
	t.Helper()
	dir := t.TempDir()
	dstPath := filepath.Join(dir, "dst.db")

	dst, err := db.Create(dstPath)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	for _, stmt := range dstSchema {
		if _, err := dst.RawDB().Exec(stmt); err != nil {
			t.Fatalf("target exec %q failed: %v", stmt, err)
		}
	}
	if err := dst.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	src, err := db.Create(filepath.Join(dir, "src.db"))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })
	for _, stmt := range srcSchema {
		if _, err := src.RawDB().Exec(stmt); err != nil {
			t.Fatalf("source exec %q failed: %v", stmt, err)
		}
	}

	if err := src.Attach(dstPath, "backup"); err != nil {
		t.Fatalf("Attach() failed: %v", err)
	}
	return src
}

func syncPair(t *testing.T, schema ...string) *db.Handle {
	t.Helper()
	return syncPairWith(t, schema, schema)
}

func mustExec(t *testing.T, h *db.Handle, stmt string, args ...any) {
	t.Helper()
	if _, err := h.RawDB().Exec(stmt, args...); err != nil {
		t.Fatalf("exec %q failed: %v", stmt, err)
	}
}

func TestCompareToleratesColumnOrder(t *testing.T) {
	h := syncPairWith(t,
		[]string{"CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)"},
		[]string{"CREATE TABLE t (name TEXT, id INTEGER PRIMARY KEY)"})

	cols, err := Compare(context.Background(), h, "t", "backup")
	if err != nil {
		t.Fatalf("Compare() failed: %v", err)
	}
	names := catalog.Names(cols)
	if len(names) != 2 || names[0] != "id" || names[1] != "name" {
		t.Errorf("Compare() columns = %v, want source order [id name]", names)
	}
}

func TestCompareMismatch(t *testing.T) {
	h := syncPairWith(t,
		[]string{"CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)"},
		[]string{"CREATE TABLE t (id INTEGER PRIMARY KEY)"})

	_, err := Compare(context.Background(), h, "t", "backup")
	if err == nil {
		t.Fatal("Compare() succeeded across diverged schemas")
	}
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("Compare() error = %v, want ErrSchemaMismatch", err)
	}

	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Compare() error %T does not unwrap to SchemaMismatchError", err)
	}
	if mismatch.Table != "t" {
		t.Errorf("mismatch.Table = %q, want t", mismatch.Table)
	}
	if len(mismatch.SourceOnly) != 1 || mismatch.SourceOnly[0] != "name" {
		t.Errorf("mismatch.SourceOnly = %v, want [name]", mismatch.SourceOnly)
	}
	if len(mismatch.TargetOnly) != 0 {
		t.Errorf("mismatch.TargetOnly = %v, want none", mismatch.TargetOnly)
	}
}

func TestCompareMissingTargetTable(t *testing.T) {
	h := syncPairWith(t,
		[]string{"CREATE TABLE t (id INTEGER PRIMARY KEY)"},
		nil)

	_, err := Compare(context.Background(), h, "t", "backup")
	if !errors.Is(err, catalog.ErrSchemaRead) {
		t.Errorf("Compare() error = %v, want ErrSchemaRead", err)
	}
}

func TestMissingReportsNewRows(t *testing.T) {
	h := syncPair(t, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	mustExec(t, h, "INSERT INTO main.t VALUES (1, 'a'), (2, 'b')")
	mustExec(t, h, "INSERT INTO backup.t VALUES (1, 'a')")

	cols, err := Compare(context.Background(), h, "t", "backup")
	if err != nil {
		t.Fatalf("Compare() failed: %v", err)
	}
	rows, err := Missing(context.Background(), h, "t", "backup", cols)
	if err != nil {
		t.Fatalf("Missing() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Missing() = %v, want one row", rows)
	}
	if id := rows[0][0].(int64); id != 2 {
		t.Errorf("row id = %d, want 2", id)
	}
	if name := rows[0][1].(string); name != "b" {
		t.Errorf("row name = %q, want b", name)
	}
}

func TestMissingEmptyWhenInSync(t *testing.T) {
	h := syncPair(t, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	mustExec(t, h, "INSERT INTO main.t VALUES (1, 'a'), (2, 'b')")
	mustExec(t, h, "INSERT INTO backup.t VALUES (1, 'a'), (2, 'b')")

	cols, err := Compare(context.Background(), h, "t", "backup")
	if err != nil {
		t.Fatalf("Compare() failed: %v", err)
	}
	rows, err := Missing(context.Background(), h, "t", "backup", cols)
	if err != nil {
		t.Fatalf("Missing() failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Missing() = %v, want none", rows)
	}
}

func TestMissingGroupsNullsTogether(t *testing.T) {
	h := syncPair(t, "CREATE TABLE t (id INTEGER, note TEXT)")
	mustExec(t, h, "INSERT INTO main.t VALUES (1, NULL), (2, NULL)")
	mustExec(t, h, "INSERT INTO backup.t VALUES (1, NULL)")

	cols, err := Compare(context.Background(), h, "t", "backup")
	if err != nil {
		t.Fatalf("Compare() failed: %v", err)
	}
	rows, err := Missing(context.Background(), h, "t", "backup", cols)
	if err != nil {
		t.Fatalf("Missing() failed: %v", err)
	}

	// (1, NULL) exists on both sides and must group away even though
	// NULL != NULL under plain equality.
	if len(rows) != 1 {
		t.Fatalf("Missing() = %v, want only (2, NULL)", rows)
	}
	if id := rows[0][0].(int64); id != 2 {
		t.Errorf("row id = %d, want 2", id)
	}
	if rows[0][1] != nil {
		t.Errorf("row note = %v, want NULL", rows[0][1])
	}
}

func TestMissingTreatsEditedRowAsNew(t *testing.T) {
	h := syncPair(t, "CREATE TABLE t (id INTEGER, name TEXT)")
	mustExec(t, h, "INSERT INTO main.t VALUES (1, 'new')")
	mustExec(t, h, "INSERT INTO backup.t VALUES (1, 'old')")

	cols, err := Compare(context.Background(), h, "t", "backup")
	if err != nil {
		t.Fatalf("Compare() failed: %v", err)
	}
	rows, err := Missing(context.Background(), h, "t", "backup", cols)
	if err != nil {
		t.Fatalf("Missing() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Missing() = %v, want the edited row", rows)
	}
	if name := rows[0][1].(string); name != "new" {
		t.Errorf("row name = %q, want new", name)
	}
}

func TestMissingCollapsesDuplicateSourceRows(t *testing.T) {
	h := syncPair(t, "CREATE TABLE t (a INTEGER, b TEXT)")
	mustExec(t, h, "INSERT INTO main.t VALUES (7, 'x'), (7, 'x')")

	cols, err := Compare(context.Background(), h, "t", "backup")
	if err != nil {
		t.Fatalf("Compare() failed: %v", err)
	}
	rows, err := Missing(context.Background(), h, "t", "backup", cols)
	if err != nil {
		t.Fatalf("Missing() failed: %v", err)
	}

	// Set semantics: the duplicated source row is one missing value.
	if len(rows) != 1 {
		t.Fatalf("Missing() = %v, want one collapsed row", rows)
	}
}
