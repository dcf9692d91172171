// Package bench generates synthetic databases and measures repeated
// sync rounds against them.
//
// The generated source mirrors a small bookstore: authors are
// referenced by books and books by reviews, so the resolver has a real
// dependency chain to order and the leaf table dominates the row count
// the way leaf tables do in production databases. Between rounds the
// source grows by a configurable fraction, which makes later rounds
// measure incremental cost rather than a full copy.
package bench

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"github.com/rowboatdb/rowboat/internal/db"
	"github.com/rowboatdb/rowboat/internal/syncer"
)

const benchSchema = `
CREATE TABLE authors (
	id      INTEGER PRIMARY KEY,
	name    TEXT NOT NULL,
	country TEXT
);
CREATE TABLE books (
	id        INTEGER PRIMARY KEY,
	author_id INTEGER NOT NULL REFERENCES authors(id),
	title     TEXT NOT NULL,
	year      INTEGER
);
CREATE TABLE reviews (
	id      INTEGER PRIMARY KEY,
	book_id INTEGER NOT NULL REFERENCES books(id),
	rating  INTEGER NOT NULL,
	body    TEXT
);
CREATE INDEX idx_books_author ON books(author_id);
CREATE INDEX idx_reviews_book ON reviews(book_id);
`

// Options controls the generated data volume and the measurement.
type Options struct {
	// Authors is the number of parent rows seeded before round one.
	Authors int

	// BooksPerAuthor and ReviewsPerBook control fan-out. Total row
	// count is Authors * (1 + BooksPerAuthor * (1 + ReviewsPerBook)).
	BooksPerAuthor int
	ReviewsPerBook int

	// Rounds is how many sync rounds to run and time.
	Rounds int

	// Growth is the fraction of Authors added to the source before
	// each round after the first. At least one author is always added.
	Growth float64

	// Seed makes the generated data reproducible.
	Seed int64

	// Logger receives round progress. If nil, output is discarded.
	Logger *log.Logger
}

// DefaultOptions returns a workload that finishes in a few seconds on
// laptop hardware.
func DefaultOptions() Options {
	return Options{
		Authors:        50,
		BooksPerAuthor: 4,
		ReviewsPerBook: 5,
		Rounds:         3,
		Growth:         0.1,
		Seed:           42,
	}
}

// RoundResult records one timed sync round.
type RoundResult struct {
	Round    int           `json:"round"`
	Rows     int64         `json:"rows"`
	Duration time.Duration `json:"duration_ns"`
}

// LatencyStats summarizes round durations.
type LatencyStats struct {
	Min    time.Duration `json:"min_ns"`
	Mean   time.Duration `json:"mean_ns"`
	P50    time.Duration `json:"p50_ns"`
	P95    time.Duration `json:"p95_ns"`
	Max    time.Duration `json:"max_ns"`
	Rounds int           `json:"rounds"`
}

// Result aggregates a full bench run.
type Result struct {
	Rounds    []RoundResult `json:"rounds"`
	RowsTotal int64         `json:"rows_total"`
	Stats     *LatencyStats `json:"stats"`
}

// Bench owns the generated databases and the session that syncs them.
type Bench struct {
	opts   Options
	source string
	target string
	h      *db.Handle
	rng    *rand.Rand

	authorSeq int
	bookSeq   int
	reviewSeq int
}

// New creates the source and target databases under dir and opens the
// session. Call Run to populate and measure, then Close.
func New(dir string, opts Options) (*Bench, error) {
	if opts.Authors <= 0 {
		opts.Authors = 50
	}
	if opts.BooksPerAuthor <= 0 {
		opts.BooksPerAuthor = 4
	}
	if opts.ReviewsPerBook <= 0 {
		opts.ReviewsPerBook = 5
	}
	if opts.Rounds <= 0 {
		opts.Rounds = 3
	}
	if opts.Growth <= 0 {
		opts.Growth = 0.1
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}

	source := filepath.Join(dir, "bench-source.db")
	target := filepath.Join(dir, "bench-target.db")

	// The target carries the same empty schema; syncing never creates
	// tables.
	th, err := db.Create(target)
	if err != nil {
		return nil, fmt.Errorf("failed to create target: %w", err)
	}
	if _, err := th.RawDB().Exec(benchSchema); err != nil {
		_ = th.Close()
		return nil, fmt.Errorf("failed to apply target schema: %w", err)
	}
	if err := th.Close(); err != nil {
		return nil, fmt.Errorf("failed to close target: %w", err)
	}

	h, err := db.Create(source)
	if err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}
	if _, err := h.RawDB().Exec(benchSchema); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("failed to apply source schema: %w", err)
	}
	if err := h.Attach(target, "backup"); err != nil {
		_ = h.Close()
		return nil, err
	}

	return &Bench{
		opts:   opts,
		source: source,
		target: target,
		h:      h,
		rng:    rand.New(rand.NewSource(opts.Seed)),
	}, nil
}

// SourcePath returns the generated source database path.
func (b *Bench) SourcePath() string { return b.source }

// TargetPath returns the generated target database path.
func (b *Bench) TargetPath() string { return b.target }

// Close releases the session. The generated files are left behind for
// inspection.
func (b *Bench) Close() error {
	if b.h != nil {
		return b.h.Close()
	}
	return nil
}

// Run seeds the source, then syncs it Rounds times, growing the source
// between rounds. Round one measures the initial full copy; later
// rounds measure incremental syncs.
func (b *Bench) Run(ctx context.Context) (*Result, error) {
	if err := b.grow(ctx, b.opts.Authors); err != nil {
		return nil, err
	}

	s := syncer.New(b.h, syncer.Options{Logger: b.opts.Logger})

	result := &Result{}
	for round := 1; round <= b.opts.Rounds; round++ {
		if round > 1 {
			added := int(float64(b.opts.Authors) * b.opts.Growth)
			if added < 1 {
				added = 1
			}
			if err := b.grow(ctx, added); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		report, err := s.Sync(ctx)
		if err != nil {
			return nil, fmt.Errorf("round %d failed: %w", round, err)
		}
		elapsed := time.Since(start)

		b.opts.Logger.Printf("Round %d: %d row(s) in %s", round, report.RowsTotal, elapsed.Round(time.Millisecond))
		result.Rounds = append(result.Rounds, RoundResult{
			Round:    round,
			Rows:     report.RowsTotal,
			Duration: elapsed,
		})
		result.RowsTotal += report.RowsTotal
	}

	durations := make([]time.Duration, len(result.Rounds))
	for i, r := range result.Rounds {
		durations[i] = r.Duration
	}
	result.Stats = computeLatencyStats(durations)

	return result, nil
}

// grow inserts numAuthors new authors with their books and reviews,
// all inside one transaction.
func (b *Bench) grow(ctx context.Context, numAuthors int) error {
	tx, err := b.h.RawDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	insertAuthor, err := tx.PrepareContext(ctx, "INSERT INTO authors (id, name, country) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare author insert: %w", err)
	}
	defer insertAuthor.Close()

	insertBook, err := tx.PrepareContext(ctx, "INSERT INTO books (id, author_id, title, year) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare book insert: %w", err)
	}
	defer insertBook.Close()

	insertReview, err := tx.PrepareContext(ctx, "INSERT INTO reviews (id, book_id, rating, body) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare review insert: %w", err)
	}
	defer insertReview.Close()

	countries := []string{"US", "UK", "DE", "JP", "BR", ""}

	for i := 0; i < numAuthors; i++ {
		b.authorSeq++
		authorID := b.authorSeq

		var country any
		if c := countries[b.rng.Intn(len(countries))]; c != "" {
			country = c
		}
		name := fmt.Sprintf("Author %05d", authorID)
		if _, err := insertAuthor.ExecContext(ctx, authorID, name, country); err != nil {
			return fmt.Errorf("failed to insert author %d: %w", authorID, err)
		}

		for j := 0; j < b.opts.BooksPerAuthor; j++ {
			b.bookSeq++
			bookID := b.bookSeq
			title := fmt.Sprintf("Book %05d-%d", authorID, j)
			year := 1950 + b.rng.Intn(75)
			if _, err := insertBook.ExecContext(ctx, bookID, authorID, title, year); err != nil {
				return fmt.Errorf("failed to insert book %d: %w", bookID, err)
			}

			for k := 0; k < b.opts.ReviewsPerBook; k++ {
				b.reviewSeq++
				reviewID := b.reviewSeq
				rating := 1 + b.rng.Intn(5)
				var body any
				if b.rng.Intn(4) > 0 {
					body = fmt.Sprintf("Review %d of book %d", k, bookID)
				}
				if _, err := insertReview.ExecContext(ctx, reviewID, bookID, rating, body); err != nil {
					return fmt.Errorf("failed to insert review %d: %w", reviewID, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit inserts: %w", err)
	}
	return nil
}

// RowsSeeded reports how many rows grow has written so far.
func (b *Bench) RowsSeeded() int64 {
	return int64(b.authorSeq + b.bookSeq + b.reviewSeq)
}

// computeLatencyStats calculates summary statistics from round
// durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	idx := func(pct int) time.Duration {
		i := len(sorted) * pct / 100
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return sorted[i]
	}

	return &LatencyStats{
		Min:    sorted[0],
		Mean:   sum / time.Duration(len(sorted)),
		P50:    idx(50),
		P95:    idx(95),
		Max:    sorted[len(sorted)-1],
		Rounds: len(sorted),
	}
}
