// Package syncer provides the orchestration core of rowboat: it moves
// the rows a target database is missing from its source, in an order
// that keeps foreign keys satisfied, inside a single transaction.
//
// # Overview
//
// A sync session runs over one SQLite connection. The source database
// is "main" and the target is attached under an alias, so every diff
// query can see both sides at once. The pipeline has four phases:
//
//	Idle -> Resolving -> Diffing -> Applying -> Committed
//	                (Failed is reachable from every phase)
//
// Resolving lists the source tables and linearizes their foreign-key
// reference graph. Diffing walks that order forward, checks that both
// copies of each table agree on their column names, and computes the
// set of rows the target is missing. Applying walks the accumulated
// diffs backwards, which lands parent tables before the child rows
// that reference them, and commits everything at once.
//
// # Architecture
//
//	source.db (main)          target.db (attached as "backup")
//	      │                          │
//	      ├── catalog: tables, creation SQL, columns
//	      ├── refgraph: REFERENCES edges → write order
//	      ├── diff: per-table set difference (read only)
//	      └── apply: INSERT OR REPLACE, one transaction ──▶ commit
//
// # Usage
//
//	h, err := db.Open("live.db")
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
//	if err := h.Attach("replica.db", "backup"); err != nil {
//	    return err
//	}
//
//	s := syncer.New(h, syncer.Options{})
//	report, err := s.Sync(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("synced %d rows\n", report.RowsTotal)
//
// Plan runs the same pipeline without the write phase and reports what
// a sync would do.
//
// # Error Handling
//
// Every failure is terminal for the whole run: a schema mismatch on one
// table aborts the sync rather than skipping the table, because
// partially applied tables could leave cross-table references dangling.
// Failures during resolving or diffing happen before any write; a
// failure while applying rolls the transaction back. Errors carry the
// table name, and schema mismatches enumerate the diverging columns.
//
// # Deletions
//
// Rows removed from the source are never removed from the target; the
// diff is strictly source-minus-target. A reversed projection in the
// differ would be the place to compute target-only rows if deletion
// propagation is ever wanted, and sinks already see per-table results,
// but no such mode exists today.
//
// # Concurrency
//
// A session is single threaded. Observers attach through Options.Sinks
// and are invoked synchronously; State may be polled from other
// goroutines while a run is in flight.
package syncer
