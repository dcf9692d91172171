package syncer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rowboatdb/rowboat/internal/refgraph"
)

// Syncer drives one synchronization session over a connection whose
// target database is already attached.
//
// A session is single threaded: tables are resolved, diffed, and
// applied one after another, and nothing is written outside the one
// transaction that Sync commits at the end. Re-running a sync is always
// safe; diffs are recomputed from live state and applying is an upsert.
type Syncer interface {
	// Sync runs the full pipeline: resolve the table order, diff every
	// table, apply the pending rows in reverse diff order inside one
	// transaction, and commit.
	//
	// Any failure before the apply phase aborts with the target
	// untouched; a failure during apply rolls the transaction back.
	//
	// Example:
	//   report, err := s.Sync(ctx)
	Sync(ctx context.Context) (*Report, error)

	// Plan runs the read-only half of the pipeline: resolve and diff,
	// but never write. The returned report shows what Sync would do,
	// with State left at the diffing phase.
	//
	// Example:
	//   report, err := s.Plan(ctx)
	Plan(ctx context.Context) (*Report, error)

	// State reports the phase the current or most recent run reached.
	// Safe to call from other goroutines while a run is in flight.
	State() State
}

// EventSink observes the lifecycle of sync runs. The daemon, the
// dashboard, and the metrics registry all attach one.
//
// Sinks are called synchronously from the sync goroutine and should
// return quickly.
type EventSink interface {
	// SyncStarted fires once per run, before resolving begins.
	SyncStarted(runID string)

	// TableDiffed fires for each table whose diff came back non-empty.
	TableDiffed(runID, table string, rows int64)

	// TableApplied fires after a table's rows are written inside the
	// apply transaction, before commit.
	TableApplied(runID, table string, rows int64)

	// SyncCompleted fires after a successful commit.
	SyncCompleted(runID string, report *Report)

	// SyncFailed fires when a run aborts in any phase.
	SyncFailed(runID string, err error)
}

// RowSink receives the concrete rows the diff phase found missing from
// the target, in diff order. Implementations must not retain row past
// the call.
type RowSink interface {
	MissingRow(runID, table string, cols []string, row []any)
}

// Options configures a Syncer.
type Options struct {
	// TargetAlias is the attach alias of the target database.
	// Defaults to "backup".
	TargetAlias string

	// Logger receives progress output. If nil, a default logger
	// writing to stderr is used.
	Logger *log.Logger

	// Sinks receive lifecycle events. May be empty.
	Sinks []EventSink

	// Rows, when non-nil, receives every missing row found while
	// diffing. Used by plan exports and the daemon audit trail.
	Rows RowSink
}

// State identifies the phase a sync run has reached.
type State int32

const (
	StateIdle State = iota
	StateResolving
	StateDiffing
	StateApplying
	StateCommitted
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateResolving: "resolving",
	StateDiffing:   "diffing",
	StateApplying:  "applying",
	StateCommitted: "committed",
	StateFailed:    "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// MarshalText makes states readable in JSON and YAML reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TableResult records one table's contribution to a run.
type TableResult struct {
	Table    string        `json:"table" yaml:"table"`
	Rows     int64         `json:"rows" yaml:"rows"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Report summarizes a sync or plan run.
type Report struct {
	RunID     string          `json:"run_id" yaml:"run_id"`
	Source    string          `json:"source" yaml:"source"`
	Target    string          `json:"target" yaml:"target"`
	State     State           `json:"state" yaml:"state"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Elapsed   time.Duration   `json:"elapsed" yaml:"elapsed"`
	Order     []string        `json:"order" yaml:"order"`
	Cycles    []refgraph.Edge `json:"cycles,omitempty" yaml:"cycles,omitempty"`
	Tables    []TableResult   `json:"tables" yaml:"tables"`
	RowsTotal int64           `json:"rows_total" yaml:"rows_total"`
}
