// Package db owns the connection to a sync session's databases.
//
// A session runs over a single SQLite connection: the source database is
// opened as "main" and the target is attached under an alias, so one
// statement can see both sides. Handle exposes open, attach, and close
// as separate steps; callers compose them and are responsible for Close
// on every exit path.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/semver"

	"github.com/rowboatdb/rowboat/internal/ident"
)

// ErrFileNotFound is returned when a database file that must already
// exist does not.
var ErrFileNotFound = errors.New("database file not found")

// minEngineVersion is the oldest SQLite release rowboat is tested
// against. Both bundled drivers ship newer engines; the gate catches
// custom builds linked against something older.
const minEngineVersion = "v3.35.0"

// Handle wraps a single pooled connection to the session's databases.
//
// The pool is pinned to one underlying connection so that ATTACH state
// spans every later statement; database/sql would otherwise route
// queries to connections that never saw the attach.
type Handle struct {
	conn     *sql.DB
	path     string
	attached map[string]string
}

// Open opens an existing database file.
//
// It fails with ErrFileNotFound when the file does not exist: both ends
// of a sync must already be present, creating either one is the
// caller's job. The caller MUST call Close() when done.
func Open(path string) (*Handle, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat database file: %w", err)
	}
	return openFile(path)
}

// Create opens a database file, creating it and any missing parent
// directories first. Used by fixtures and the bench harness; sync
// sessions go through Open, which refuses missing files.
func Create(path string) (*Handle, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return openFile(path)
}

func openFile(path string) (*Handle, error) {
	conn, err := sql.Open(driverName, fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection, kept forever: attachments must survive the
	// whole session.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	h := &Handle{
		conn:     conn,
		path:     path,
		attached: make(map[string]string),
	}

	if _, err := h.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := h.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := h.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := h.checkEngineVersion(); err != nil {
		_ = h.Close()
		return nil, err
	}

	return h, nil
}

func (h *Handle) checkEngineVersion() error {
	var version string
	if err := h.conn.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return fmt.Errorf("failed to read engine version: %w", err)
	}
	if semver.Compare("v"+version, minEngineVersion) < 0 {
		return fmt.Errorf("sqlite %s is older than the required %s", version, minEngineVersion[1:])
	}
	return nil
}

// Attach attaches the database file at path under the given alias.
func (h *Handle) Attach(path, alias string) error {
	return h.AttachContext(context.Background(), path, alias)
}

// AttachContext attaches a database with context support.
//
// The file must already exist (ErrFileNotFound otherwise). The alias is
// validated here because every later statement that touches the
// attached side splices it into SQL text; the path and alias themselves
// travel as bound parameters, which SQLite permits for ATTACH.
func (h *Handle) AttachContext(ctx context.Context, path, alias string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("failed to stat database file: %w", err)
	}
	if err := ident.Check(alias); err != nil {
		return fmt.Errorf("attach alias: %w", err)
	}

	if _, err := h.conn.ExecContext(ctx, "ATTACH DATABASE ? AS ?", path, alias); err != nil {
		return fmt.Errorf("failed to attach %s as %s: %w", path, alias, err)
	}
	h.attached[alias] = path
	return nil
}

// Detach detaches a previously attached database.
func (h *Handle) Detach(alias string) error {
	return h.DetachContext(context.Background(), alias)
}

// DetachContext detaches a database with context support.
func (h *Handle) DetachContext(ctx context.Context, alias string) error {
	if err := ident.Check(alias); err != nil {
		return fmt.Errorf("detach alias: %w", err)
	}
	if _, err := h.conn.ExecContext(ctx, "DETACH DATABASE ?", alias); err != nil {
		return fmt.Errorf("failed to detach %s: %w", alias, err)
	}
	delete(h.attached, alias)
	return nil
}

// RawDB returns the underlying sql.DB connection.
// This is useful for integrating with other libraries that expect *sql.DB.
func (h *Handle) RawDB() *sql.DB {
	return h.conn
}

// Path returns the file path of the main database.
func (h *Handle) Path() string {
	return h.path
}

// Attached reports the path attached under alias, if any.
func (h *Handle) Attached(alias string) (string, bool) {
	path, ok := h.attached[alias]
	return path, ok
}

// Close closes the database connection. Safe to call more than once.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (h *Handle) Close() error {
	if h.conn == nil {
		return nil
	}

	// Checkpoint WAL before closing
	if _, err := h.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := h.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	h.conn = nil
	return nil
}
