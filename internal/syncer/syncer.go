package syncer

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rowboatdb/rowboat/internal/apply"
	"github.com/rowboatdb/rowboat/internal/catalog"
	"github.com/rowboatdb/rowboat/internal/db"
	"github.com/rowboatdb/rowboat/internal/diff"
	"github.com/rowboatdb/rowboat/internal/refgraph"
)

// syncer implements the Syncer interface.
type syncer struct {
	h      *db.Handle
	alias  string
	logger *log.Logger
	sinks  []EventSink
	rows   RowSink
	state  atomic.Int32
}

// pendingTable is one accumulated diff waiting for the apply phase.
type pendingTable struct {
	table string
	cols  []catalog.Column
	rows  []diff.Row
}

// New creates a Syncer over an open handle.
//
// The handle's main database is the source; the target must already be
// attached under opts.TargetAlias before Sync or Plan is called.
// Closing the handle remains the caller's responsibility.
//
// Example:
//
//	h, err := db.Open(sourcePath)
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//	if err := h.Attach(targetPath, "backup"); err != nil {
//	    return err
//	}
//	s := syncer.New(h, syncer.Options{})
func New(h *db.Handle, opts Options) Syncer {
	if opts.TargetAlias == "" {
		opts.TargetAlias = "backup"
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &syncer{
		h:      h,
		alias:  opts.TargetAlias,
		logger: opts.Logger,
		sinks:  opts.Sinks,
		rows:   opts.Rows,
	}
}

// Sync implements Syncer.Sync.
func (s *syncer) Sync(ctx context.Context) (*Report, error) {
	report, pending, err := s.prepare(ctx)
	if err != nil {
		return nil, s.fail(report.RunID, err)
	}

	s.setState(StateApplying)
	tx, err := s.h.RawDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, s.fail(report.RunID, fmt.Errorf("failed to begin transaction: %w", err))
	}
	// Rollback is a no-op once the transaction committed.
	defer tx.Rollback()

	// Walk the accumulated diffs in reverse: the resolver places
	// referenced tables late in the forward order, so the reverse walk
	// writes parent rows before the children that point at them.
	for i := len(pending) - 1; i >= 0; i-- {
		p := pending[i]
		n, err := apply.Batch(ctx, tx, p.table, s.alias, p.cols, p.rows)
		if err != nil {
			return nil, s.fail(report.RunID, err)
		}
		s.logger.Printf("Applied %s: %d row(s)", p.table, n)
		for _, sink := range s.sinks {
			sink.TableApplied(report.RunID, p.table, n)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, s.fail(report.RunID, fmt.Errorf("failed to commit sync: %w", err))
	}

	s.setState(StateCommitted)
	report.State = StateCommitted
	report.Elapsed = time.Since(report.StartedAt)
	s.logger.Printf("Sync complete: %d row(s) across %d table(s) in %s",
		report.RowsTotal, len(report.Tables), report.Elapsed.Round(time.Millisecond))
	for _, sink := range s.sinks {
		sink.SyncCompleted(report.RunID, report)
	}
	return report, nil
}

// Plan implements Syncer.Plan.
func (s *syncer) Plan(ctx context.Context) (*Report, error) {
	report, _, err := s.prepare(ctx)
	if err != nil {
		return nil, s.fail(report.RunID, err)
	}
	report.State = StateDiffing
	report.Elapsed = time.Since(report.StartedAt)
	s.logger.Printf("Plan complete: %d row(s) pending across %d table(s)",
		report.RowsTotal, len(report.Tables))
	return report, nil
}

// State implements Syncer.State.
func (s *syncer) State() State {
	return State(s.state.Load())
}

// prepare runs the read-only phases shared by Sync and Plan: resolve
// the table order, then diff each table in forward order, accumulating
// the tables with pending rows.
func (s *syncer) prepare(ctx context.Context) (*Report, []pendingTable, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Source:    s.h.Path(),
		StartedAt: time.Now(),
	}
	if path, ok := s.h.Attached(s.alias); ok {
		report.Target = path
	}

	s.logger.Printf("Starting sync %s: %s -> %s", report.RunID, report.Source, report.Target)
	for _, sink := range s.sinks {
		sink.SyncStarted(report.RunID)
	}

	s.setState(StateResolving)
	tables, err := catalog.Tables(ctx, s.h, "main")
	if err != nil {
		return report, nil, err
	}
	graph, err := refgraph.Build(tables, func(table string) (string, error) {
		return catalog.CreateSQL(ctx, s.h, "main", table)
	})
	if err != nil {
		return report, nil, err
	}
	order, cycles := graph.Order()
	report.Order = order
	report.Cycles = cycles
	if len(cycles) > 0 {
		s.logger.Printf("WARNING: reference cycle broken at %d edge(s): %v", len(cycles), cycles)
	}
	if extra := len(order) - len(tables); extra > 0 {
		s.logger.Printf("Resolved %d table(s), %d pulled in by references", len(order), extra)
	} else {
		s.logger.Printf("Resolved %d table(s)", len(order))
	}

	s.setState(StateDiffing)
	var pending []pendingTable
	for _, table := range order {
		started := time.Now()
		cols, err := diff.Compare(ctx, s.h, table, s.alias)
		if err != nil {
			return report, nil, err
		}
		rows, err := diff.Missing(ctx, s.h, table, s.alias, cols)
		if err != nil {
			return report, nil, err
		}
		if len(rows) == 0 {
			continue
		}

		s.logger.Printf("Diffed %s: %d row(s) pending", table, len(rows))
		if s.rows != nil {
			names := catalog.Names(cols)
			for _, row := range rows {
				s.rows.MissingRow(report.RunID, table, names, row)
			}
		}
		pending = append(pending, pendingTable{table: table, cols: cols, rows: rows})
		report.Tables = append(report.Tables, TableResult{
			Table:    table,
			Rows:     int64(len(rows)),
			Duration: time.Since(started),
		})
		report.RowsTotal += int64(len(rows))
		for _, sink := range s.sinks {
			sink.TableDiffed(report.RunID, table, int64(len(rows)))
		}
	}
	return report, pending, nil
}

func (s *syncer) fail(runID string, err error) error {
	s.setState(StateFailed)
	s.logger.Printf("Sync failed: %v", err)
	for _, sink := range s.sinks {
		sink.SyncFailed(runID, err)
	}
	return err
}

func (s *syncer) setState(state State) {
	s.state.Store(int32(state))
}
