package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowboatdb/rowboat/internal/bench"
	"github.com/rowboatdb/rowboat/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark sync throughput on a generated dataset",
	Long: `Benchmark sync throughput on a generated dataset.

Seeds a three-table bookstore schema into a throwaway source database,
attaches an empty target, and times repeated sync rounds. Between rounds
the source grows by --growth so later rounds measure incremental cost
rather than a full copy.

Examples:
  rowboat bench
  rowboat bench --authors 500 --rounds 10
  rowboat bench --dir ./benchdata --seed 7 --json`,
	Run: runBench,
}

func init() {
	benchCmd.Flags().Int("authors", 0, "Authors to seed (default 50)")
	benchCmd.Flags().Int("books", 0, "Books per author (default 4)")
	benchCmd.Flags().Int("reviews", 0, "Reviews per book (default 5)")
	benchCmd.Flags().Int("rounds", 0, "Sync rounds to time (default 3)")
	benchCmd.Flags().Float64("growth", -1, "Fraction of authors added between rounds (default 0.1)")
	benchCmd.Flags().Int64("seed", 0, "Random seed (default 42)")
	benchCmd.Flags().String("dir", "", "Directory for the databases (default: temp, removed after)")
	benchCmd.Flags().Bool("json", false, "Emit results as JSON")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) {
	authors, _ := cmd.Flags().GetInt("authors")
	books, _ := cmd.Flags().GetInt("books")
	reviews, _ := cmd.Flags().GetInt("reviews")
	rounds, _ := cmd.Flags().GetInt("rounds")
	growth, _ := cmd.Flags().GetFloat64("growth")
	seed, _ := cmd.Flags().GetInt64("seed")
	dir, _ := cmd.Flags().GetString("dir")
	asJSON, _ := cmd.Flags().GetBool("json")

	if authors < 0 || books < 0 || reviews < 0 || rounds < 0 {
		fmt.Fprintf(os.Stderr, "Error: counts must not be negative\n")
		os.Exit(1)
	}
	if growth > 10 {
		fmt.Fprintf(os.Stderr, "Error: --growth %.2f is unreasonably large\n", growth)
		os.Exit(1)
	}

	opts := bench.DefaultOptions()
	if authors > 0 {
		opts.Authors = authors
	}
	if books > 0 {
		opts.BooksPerAuthor = books
	}
	if reviews > 0 {
		opts.ReviewsPerBook = reviews
	}
	if rounds > 0 {
		opts.Rounds = rounds
	}
	if growth >= 0 {
		opts.Growth = growth
	}
	if seed != 0 {
		opts.Seed = seed
	}
	opts.Logger = runLogger()

	if dir == "" {
		tmp, err := os.MkdirTemp("", "rowboat-bench-")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, err := bench.New(dir, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	if !asJSON {
		fmt.Printf("%s\n", ui.Header("Sync Benchmark"))
		fmt.Printf("   Source: %s\n", b.SourcePath())
		fmt.Printf("   Seed:   %d authors, %d books each, %d reviews each\n\n",
			opts.Authors, opts.BooksPerAuthor, opts.ReviewsPerBook)
	}

	result, err := b.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: benchmark failed: %v\n", err)
		os.Exit(1)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	rows := make([][]string, 0, len(result.Rounds))
	for _, r := range result.Rounds {
		rows = append(rows, []string{
			strconv.Itoa(r.Round),
			strconv.FormatInt(r.Rows, 10),
			r.Duration.Round(time.Microsecond).String(),
		})
	}
	fmt.Print(ui.Table([]string{"Round", "Rows", "Duration"}, rows))

	s := result.Stats
	fmt.Printf("\n%s\n", ui.Header("Latency"))
	fmt.Printf("   Min:  %v\n", s.Min.Round(time.Microsecond))
	fmt.Printf("   Mean: %v\n", s.Mean.Round(time.Microsecond))
	fmt.Printf("   P50:  %v\n", s.P50.Round(time.Microsecond))
	fmt.Printf("   P95:  %v\n", s.P95.Round(time.Microsecond))
	fmt.Printf("   Max:  %v\n", s.Max.Round(time.Microsecond))
	fmt.Printf("\n%s Synced %d row(s) over %d round(s)\n", ui.Pass("✓"), result.RowsTotal, len(result.Rounds))
}
