// Package daemon keeps a target database continuously synchronized
// with a watched source.
//
// The daemon monitors the source SQLite file and its -wal/-shm
// siblings, debounces bursts of writes, and performs a sync run after
// each quiet period. It can also run syncs on a cron schedule.
//
// # Architecture
//
// The daemon consists of several components:
//
//   - FileWatcher: Cross-platform file system event monitoring using fsnotify
//   - Daemon: Orchestrates watching, change debouncing, and sync runs
//   - Oplog: Append-only JSONL journal of run outcomes
//   - Lock: Single-instance guard backed by flock where available
//
// # Usage
//
// The daemon drives a RunFunc supplied by the caller; it never opens
// databases itself:
//
//	run := func(ctx context.Context) (*syncer.Report, error) {
//	    return syncer.New(handle, opts).Sync(ctx)
//	}
//
//	d, err := daemon.New(run, &daemon.Config{
//	    SourcePath: "prod.db",
//	    Debounce:   2 * time.Second,
//	    Schedule:   "*/5 * * * *",
//	    OplogPath:  "~/.rowboat/oplog.jsonl",
//	    LockPath:   "~/.rowboat/daemon.lock",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := d.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Triggers
//
// A sync run has one of three triggers, recorded in the oplog:
//
//   - "startup": the optional initial run before watching begins
//   - "change": file events settled for the debounce interval
//   - "schedule": a cron expression fired
//
// Runs are serialized. A schedule fire during a change-triggered run
// waits for it to finish rather than overlapping.
//
// # File Watching
//
// The FileWatcher registers the database's parent directory with
// fsnotify and filters events down to the database file and its -wal
// and -shm siblings. The daemon additionally drops -shm events, since
// readers touch the shared-memory index without changing any data.
//
// The watcher maps fsnotify operations as follows:
//   - fsnotify.Create → OpCreate
//   - fsnotify.Write → OpModify
//   - fsnotify.Remove → OpDelete
//   - fsnotify.Rename → OpDelete (the new name triggers a separate Create)
//
// # Debouncing
//
// File events land in a pending queue stamped with arrival time. A
// ticker drains the queue once the oldest entry has settled for the
// debounce interval, and one run covers everything queued. A busy
// writer therefore produces one run per quiet period, not one per
// write.
//
// # Run Journal
//
// When OplogPath is set, every run appends one JSON line recording the
// trigger, run ID, result, row counts, and duration. The journal is
// read back by ReadOplog and trimmed by PruneOplog, which rewrites the
// file atomically.
//
// # Single-Instance Lock
//
// When LockPath is set, Start takes an exclusive flock on the lock
// file and fails fast with ErrLocked if another daemon holds it. The
// kernel drops the lock if the process dies. On platforms without
// flock a create-exclusive lock file is used instead.
//
// # Graceful Shutdown
//
// Cancelling the context passed to Start triggers Stop(), which:
//  1. Stops the cron scheduler and waits for in-flight scheduled runs
//  2. Closes the file watcher and its channels
//  3. Waits for the event and drain goroutines to finish
//  4. Closes the journal and releases the lock
package daemon
