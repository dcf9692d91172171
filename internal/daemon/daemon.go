package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rowboatdb/rowboat/internal/metrics"
	"github.com/rowboatdb/rowboat/internal/syncer"
)

// RunFunc performs one sync run. The daemon calls it for every
// trigger; runs never overlap.
type RunFunc func(ctx context.Context) (*syncer.Report, error)

// Config holds configuration for the daemon.
type Config struct {
	// SourcePath is the database file to watch.
	SourcePath string

	// Debounce is how long to wait after a file event before running
	// a sync. This batches rapid writes together.
	Debounce time.Duration

	// Schedule is an optional cron expression for time-based runs in
	// addition to file watching.
	Schedule string

	// OplogPath journals run outcomes when set.
	OplogPath string

	// LockPath guards against concurrent daemons when set.
	LockPath string

	// InitialSync runs one sync at startup before watching begins.
	InitialSync bool

	// Logger for daemon activity.
	Logger *log.Logger

	// Metrics counts triggers. Optional.
	Metrics *metrics.Set
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debounce:    2 * time.Second,
		InitialSync: true,
		Logger:      log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon watches a source database and re-syncs the target whenever
// it changes.
type Daemon struct {
	config *Config
	run    RunFunc

	watcher *FileWatcher
	oplog   *Oplog
	lock    *Lock
	cron    *cron.Cron

	pending   map[string]time.Time // filepath -> last event time
	pendingMu sync.Mutex
	runMu     sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon that invokes run on every trigger.
//
// Use Start() to begin watching and syncing.
func New(run RunFunc, config *Config) (*Daemon, error) {
	if run == nil {
		return nil, fmt.Errorf("run cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.SourcePath == "" {
		return nil, fmt.Errorf("source path cannot be empty")
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.Debounce <= 0 {
		config.Debounce = 2 * time.Second
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		config:  config,
		run:     run,
		watcher: watcher,
		pending: make(map[string]time.Time),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Take the single-instance lock and open the run journal
// 2. Optionally perform one startup sync
// 3. Watch the source database for changes, debounced
// 4. Run scheduled syncs if a cron expression is configured
//
// This blocks until ctx is cancelled or an error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	logger := d.config.Logger
	logger.Println("Starting daemon")

	if d.config.LockPath != "" {
		lock, err := AcquireLock(d.config.LockPath)
		if err != nil {
			return err
		}
		d.lock = lock
	}

	if d.config.OplogPath != "" {
		oplog, err := OpenOplog(d.config.OplogPath)
		if err != nil {
			d.releaseLock()
			return err
		}
		d.oplog = oplog
	}

	if d.config.InitialSync {
		d.runOnce("startup")
	}

	if err := d.watcher.Start(d.config.SourcePath); err != nil {
		d.closeJournal()
		d.releaseLock()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	logger.Printf("Watching: %s", d.config.SourcePath)

	if d.config.Schedule != "" {
		d.cron = cron.New()
		if _, err := d.cron.AddFunc(d.config.Schedule, func() { d.runOnce("schedule") }); err != nil {
			_ = d.watcher.Stop()
			d.closeJournal()
			d.releaseLock()
			return fmt.Errorf("invalid schedule %q: %w", d.config.Schedule, err)
		}
		d.cron.Start()
		if entries := d.cron.Entries(); len(entries) > 0 {
			logger.Printf("Next scheduled sync: %s", entries[0].Next.Format(time.RFC3339))
		}
	}

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.drainPending()

	// Wait for shutdown
	select {
	case <-ctx.Done():
		logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	logger := d.config.Logger
	logger.Println("Stopping daemon")

	// Signal shutdown
	d.cancel()

	if d.cron != nil {
		// Wait for any in-flight scheduled run
		<-d.cron.Stop().Done()
	}

	if err := d.watcher.Stop(); err != nil {
		logger.Printf("Error closing watcher: %v", err)
	}

	// Wait for goroutines to finish
	d.wg.Wait()

	d.closeJournal()
	d.releaseLock()

	logger.Println("Daemon stopped")
	return nil
}

// watchFileEvents monitors filesystem events and queues changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events():
			if !ok {
				return
			}

			if event.Kind == KindSHM {
				// Readers touch the shm index constantly; data changes
				// always hit the WAL or the database file.
				continue
			}

			d.config.Logger.Printf("File event: %s %s (%s)", event.Op, event.Path, event.Kind)
			d.queueChange(event.Path)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange adds a file to the change queue with debouncing.
func (d *Daemon) queueChange(path string) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	d.pending[path] = time.Now()
}

// drainPending periodically checks for changes that have settled and
// runs a sync when it finds them.
func (d *Daemon) drainPending() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			if d.takePending() {
				d.runOnce("change")
			}
		}
	}
}

// takePending reports whether any queued change is old enough to act
// on. One sync covers every pending change, so the queue is cleared.
func (d *Daemon) takePending() bool {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	if len(d.pending) == 0 {
		return false
	}

	now := time.Now()
	for _, queuedAt := range d.pending {
		if now.Sub(queuedAt) >= d.config.Debounce {
			d.pending = make(map[string]time.Time)
			return true
		}
	}
	return false
}

// runOnce performs one sync run and journals the outcome. Triggers are
// serialized; a cron fire during a change-triggered run waits its turn.
func (d *Daemon) runOnce(trigger string) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	logger := d.config.Logger
	d.config.Metrics.RecordTrigger(trigger)
	logger.Printf("Sync triggered (%s)", trigger)

	started := time.Now()
	report, err := d.run(d.ctx)

	entry := OplogEntry{Trigger: trigger, At: started.UTC()}
	if err != nil {
		entry.Result = "failed"
		entry.Error = err.Error()
		entry.Elapsed = time.Since(started)
		logger.Printf("Sync failed: %v", err)
	} else {
		entry.RunID = report.RunID
		entry.Result = "committed"
		entry.Rows = report.RowsTotal
		entry.Tables = len(report.Tables)
		entry.Elapsed = report.Elapsed
		logger.Printf("Sync committed: %d row(s) across %d table(s)", report.RowsTotal, len(report.Tables))
	}

	if d.oplog != nil {
		if err := d.oplog.Append(entry); err != nil {
			logger.Printf("Failed to journal run: %v", err)
		}
	}
}

func (d *Daemon) closeJournal() {
	if d.oplog != nil {
		if err := d.oplog.Close(); err != nil {
			d.config.Logger.Printf("Error closing oplog: %v", err)
		}
		d.oplog = nil
	}
}

func (d *Daemon) releaseLock() {
	if d.lock != nil {
		if err := d.lock.Release(); err != nil {
			d.config.Logger.Printf("Error releasing lock: %v", err)
		}
		d.lock = nil
	}
}
