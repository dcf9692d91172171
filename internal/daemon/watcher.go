package daemon

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates a new file was created.
	OpCreate EventOp = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FileKind identifies which of the database's on-disk files changed.
type FileKind int

const (
	// KindMain indicates the database file itself.
	KindMain FileKind = iota
	// KindWAL indicates the write-ahead log sibling.
	KindWAL
	// KindSHM indicates the shared-memory index sibling.
	KindSHM
)

// String returns a human-readable representation of the file kind.
func (fk FileKind) String() string {
	switch fk {
	case KindMain:
		return "db"
	case KindWAL:
		return "wal"
	case KindSHM:
		return "shm"
	default:
		return "unknown"
	}
}

// FileEvent represents a file system event on the watched database.
type FileEvent struct {
	// Path is the absolute path to the file that changed.
	Path string
	// Kind indicates which database sibling changed.
	Kind FileKind
	// Op is the operation that occurred (create, modify, delete).
	Op EventOp
}

// FileWatcher watches a SQLite database file and its -wal and -shm
// siblings for changes. Writers in WAL mode touch the siblings long
// before a checkpoint touches the database itself, so all three are
// watched.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	events  chan FileEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	dbPath  string
}

// NewFileWatcher creates a new FileWatcher instance.
// The watcher must be started with Start() before it will emit events.
func NewFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		events:  make(chan FileEvent, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching the database at dbPath.
//
// The parent directory is registered with fsnotify rather than the
// file itself, so atomic replaces and sibling creation are observed.
func (fw *FileWatcher) Start(dbPath string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("watcher already running")
	}

	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return fmt.Errorf("failed to resolve database path: %w", err)
	}
	fw.dbPath = abs

	if err := fw.watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch database directory %s: %w", filepath.Dir(abs), err)
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()

	return nil
}

// Stop stops watching for file system events and cleans up resources.
// It blocks until the event processing goroutine has exited.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = false
	fw.mu.Unlock()

	// Signal shutdown
	close(fw.done)

	// Close the underlying watcher (this will unblock the event loop)
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	// Wait for event processing to finish
	fw.wg.Wait()

	// Close channels
	close(fw.events)
	close(fw.errors)

	return nil
}

// Events returns the channel that emits FileEvent notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Events() <-chan FileEvent {
	return fw.events
}

// Errors returns the channel that emits error notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

// processEvents is the main event loop that processes fsnotify events
// and converts them to FileEvent notifications.
func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			if fileEvent, ok := fw.convertEvent(event); ok {
				select {
				case fw.events <- fileEvent:
				case <-fw.done:
					return
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}

			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}
		}
	}
}

// convertEvent converts an fsnotify event to a FileEvent.
// Returns (FileEvent, true) if the event should be processed,
// or (FileEvent{}, false) if the event should be ignored.
func (fw *FileWatcher) convertEvent(event fsnotify.Event) (FileEvent, bool) {
	kind, ok := fw.classify(event.Name)
	if !ok {
		return FileEvent{}, false
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		// Treat rename as delete (the new name will trigger a create)
		op = OpDelete
	default:
		// Ignore chmod and other events
		return FileEvent{}, false
	}

	return FileEvent{
		Path: event.Name,
		Kind: kind,
		Op:   op,
	}, true
}

// classify matches a path against the watched database and its
// siblings. Unrelated files in the same directory are ignored.
func (fw *FileWatcher) classify(path string) (FileKind, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, false
	}

	switch abs {
	case fw.dbPath:
		return KindMain, true
	case fw.dbPath + "-wal":
		return KindWAL, true
	case fw.dbPath + "-shm":
		return KindSHM, true
	}
	return 0, false
}

// IsRunning returns true if the watcher is currently running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}
