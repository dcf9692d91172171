// Package export writes and reads JSONL audit files.
//
// A sync or plan run can export every row it found missing from the
// target as one JSON object per line. Exports are written to a temp
// file and renamed into place on Close, so a reader never observes a
// half-written file.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Entry is one audit record: a single row that was missing from the
// target when the diff ran.
type Entry struct {
	RunID   string    `json:"run_id"`
	Table   string    `json:"table"`
	Columns []string  `json:"columns"`
	Values  []any     `json:"values"`
	At      time.Time `json:"at"`
}

// Writer accumulates entries into a temp file next to the final path.
// Close publishes the file; Abort discards it.
type Writer struct {
	path   string
	tmp    string
	file   *os.File
	enc    *json.Encoder
	count  int
	err    error
	closed bool
}

// NewWriter opens a temp file for an export at path, creating parent
// directories as needed.
func NewWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	// #nosec G304 - controlled path from CLI or config
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	return &Writer{
		path: path,
		tmp:  tmp,
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Add appends one entry. A zero At is stamped with the current time.
// After the first failed write the Writer is poisoned and Close will
// discard the file and report the error.
func (w *Writer) Add(e Entry) error {
	if w.closed {
		return errors.New("export writer is closed")
	}
	if w.err != nil {
		return w.err
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if err := w.enc.Encode(e); err != nil {
		w.err = fmt.Errorf("failed to encode entry: %w", err)
		return w.err
	}
	w.count++
	return nil
}

// MissingRow adapts the Writer to the sync engine's diff phase.
func (w *Writer) MissingRow(runID, table string, cols []string, row []any) {
	_ = w.Add(Entry{RunID: runID, Table: table, Columns: cols, Values: row})
}

// Count reports how many entries were added so far.
func (w *Writer) Count() int {
	return w.count
}

// Close renames the temp file into place. If any Add failed, the temp
// file is removed instead and the first write error is returned.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.err != nil {
		_ = w.file.Close()
		_ = os.Remove(w.tmp)
		return w.err
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		_ = os.Remove(w.tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Abort discards the export without publishing it.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	_ = w.file.Close()
	_ = os.Remove(w.tmp)
}

// Write is the one-shot form: it publishes all entries or nothing.
func Write(path string, entries []Entry) error {
	w, err := NewWriter(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.Add(e); err != nil {
			w.Abort()
			return err
		}
	}
	return w.Close()
}

// Read loads every entry from a JSONL export.
func Read(path string) ([]Entry, error) {
	// #nosec G304 - controlled path from CLI or config
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer file.Close()

	var entries []Entry
	dec := json.NewDecoder(file)
	line := 0

	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid JSON at line %d: %w", line+1, err)
		}
		line++
		entries = append(entries, e)
	}

	return entries, nil
}
