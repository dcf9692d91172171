package bench

import (
	"context"
	"testing"
	"time"

	"github.com/rowboatdb/rowboat/internal/db"
)

// smallOptions returns a workload tiny enough for unit tests.
func smallOptions() Options {
	return Options{
		Authors:        3,
		BooksPerAuthor: 2,
		ReviewsPerBook: 1,
		Rounds:         2,
		Growth:         0.5,
		Seed:           1,
	}
}

// countRows counts the rows of one table.
func countRows(t *testing.T, h *db.Handle, table string) int {
	t.Helper()

	var n int
	if err := h.RawDB().QueryRow("SELECT count(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Authors <= 0 || opts.Rounds <= 0 {
		t.Errorf("Default options are not runnable: %+v", opts)
	}
}

func TestBenchRun(t *testing.T) {
	b, err := New(t.TempDir(), smallOptions())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer b.Close()

	result, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if len(result.Rounds) != 2 {
		t.Fatalf("Expected 2 rounds, got %d", len(result.Rounds))
	}

	// Round one copies the full seed: 3 authors, each with 2 books
	// carrying 1 review apiece.
	if result.Rounds[0].Rows != 15 {
		t.Errorf("Expected 15 rows in round 1, got %d", result.Rounds[0].Rows)
	}

	// Round two adds one author (growth 0.5 of 3, floored) and syncs
	// only the new rows.
	if result.Rounds[1].Rows != 5 {
		t.Errorf("Expected 5 rows in round 2, got %d", result.Rounds[1].Rows)
	}

	if result.RowsTotal != 20 {
		t.Errorf("Expected 20 rows total, got %d", result.RowsTotal)
	}

	if result.Stats == nil {
		t.Fatal("Expected stats to be computed")
	}
	if result.Stats.Rounds != 2 {
		t.Errorf("Expected stats over 2 rounds, got %d", result.Stats.Rounds)
	}
	if result.Stats.Min <= 0 || result.Stats.Max < result.Stats.Min {
		t.Errorf("Implausible stats: min=%v max=%v", result.Stats.Min, result.Stats.Max)
	}
}

func TestBenchTargetMatchesSource(t *testing.T) {
	b, err := New(t.TempDir(), smallOptions())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if _, err := b.Run(context.Background()); err != nil {
		b.Close()
		t.Fatalf("Run() failed: %v", err)
	}

	seeded := b.RowsSeeded()
	if err := b.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	target, err := db.Open(b.TargetPath())
	if err != nil {
		t.Fatalf("Failed to open target: %v", err)
	}
	defer target.Close()

	authors := countRows(t, target, "authors")
	books := countRows(t, target, "books")
	reviews := countRows(t, target, "reviews")

	if authors != 4 {
		t.Errorf("Expected 4 authors in target, got %d", authors)
	}
	if books != 8 {
		t.Errorf("Expected 8 books in target, got %d", books)
	}
	if reviews != 8 {
		t.Errorf("Expected 8 reviews in target, got %d", reviews)
	}
	if int64(authors+books+reviews) != seeded {
		t.Errorf("Target holds %d rows, source seeded %d", authors+books+reviews, seeded)
	}
}

func TestComputeLatencyStats(t *testing.T) {
	stats := computeLatencyStats(nil)
	if stats.Rounds != 0 {
		t.Errorf("Empty input should produce zero stats, got %+v", stats)
	}

	durations := []time.Duration{
		40 * time.Millisecond,
		10 * time.Millisecond,
		30 * time.Millisecond,
		20 * time.Millisecond,
	}
	stats = computeLatencyStats(durations)

	if stats.Min != 10*time.Millisecond {
		t.Errorf("Expected min 10ms, got %v", stats.Min)
	}
	if stats.Max != 40*time.Millisecond {
		t.Errorf("Expected max 40ms, got %v", stats.Max)
	}
	if stats.Mean != 25*time.Millisecond {
		t.Errorf("Expected mean 25ms, got %v", stats.Mean)
	}
	if stats.P50 != 30*time.Millisecond {
		t.Errorf("Expected p50 30ms, got %v", stats.P50)
	}
	if stats.P95 != 40*time.Millisecond {
		t.Errorf("Expected p95 40ms, got %v", stats.P95)
	}
	if stats.Rounds != 4 {
		t.Errorf("Expected 4 rounds, got %d", stats.Rounds)
	}
}
