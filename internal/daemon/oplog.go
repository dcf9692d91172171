package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// OplogEntry records the outcome of one sync run in the daemon's
// operation log.
type OplogEntry struct {
	// RunID identifies the sync run.
	RunID string `json:"run_id"`

	// Trigger is what started the run: "change", "schedule", or
	// "startup".
	Trigger string `json:"trigger"`

	// At is when the run started.
	At time.Time `json:"at"`

	// Result is "committed" or "failed".
	Result string `json:"result"`

	// Rows is how many rows the run wrote to the target.
	Rows int64 `json:"rows"`

	// Tables is how many tables had a non-empty diff.
	Tables int `json:"tables"`

	// Elapsed is how long the run took.
	Elapsed time.Duration `json:"elapsed"`

	// Error holds the failure message for failed runs.
	Error string `json:"error,omitempty"`
}

// Oplog is an append-only JSONL journal of sync runs.
type Oplog struct {
	path string

	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// OpenOplog opens the journal at path for appending, creating parent
// directories as needed.
func OpenOplog(path string) (*Oplog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create oplog directory: %w", err)
		}
	}

	// #nosec G304 - controlled path from config
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open oplog: %w", err)
	}

	return &Oplog{
		path: path,
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Append writes one entry. A zero At is stamped with the current time.
func (o *Oplog) Append(e OplogEntry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.file == nil {
		return errors.New("oplog is closed")
	}
	if err := o.enc.Encode(e); err != nil {
		return fmt.Errorf("failed to append oplog entry: %w", err)
	}
	return nil
}

// Path returns the journal's file path.
func (o *Oplog) Path() string {
	return o.path
}

// Close flushes and closes the journal. Safe to call twice.
func (o *Oplog) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.file == nil {
		return nil
	}
	err := o.file.Close()
	o.file = nil
	if err != nil {
		return fmt.Errorf("failed to close oplog: %w", err)
	}
	return nil
}

// ReadOplog loads every entry from the journal at path. A missing file
// reads as empty.
func ReadOplog(path string) ([]OplogEntry, error) {
	// #nosec G304 - controlled path from config
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open oplog: %w", err)
	}
	defer file.Close()

	var entries []OplogEntry
	dec := json.NewDecoder(file)
	line := 0

	for {
		var e OplogEntry
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

// PruneOplog removes entries that started before the cutoff, rewriting
// the journal atomically. It reports how many entries were kept and
// removed.
func PruneOplog(path string, before time.Time) (kept, removed int, err error) {
	entries, err := ReadOplog(path)
	if err != nil {
		return 0, 0, err
	}

	var keep []OplogEntry
	for _, e := range entries {
		if e.At.Before(before) {
			removed++
			continue
		}
		keep = append(keep, e)
	}
	if removed == 0 {
		return len(entries), 0, nil
	}

	tmp := path + ".tmp"
	// #nosec G304 - controlled path from config
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	for _, e := range keep {
		if err := enc.Encode(e); err != nil {
			_ = file.Close()
			_ = os.Remove(tmp)
			return 0, 0, fmt.Errorf("failed to encode oplog entry: %w", err)
		}
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, 0, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	return len(keep), removed, nil
}
