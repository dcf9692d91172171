package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowboatdb/rowboat/internal/syncer"
	"github.com/rowboatdb/rowboat/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync [SOURCE TARGET]",
	Short: "Copy missing rows from the source into the target",
	Long: `Run one synchronization pass.

The source's tables are ordered by their references, each table is
diffed against the target, and the missing rows are written inside a
single transaction. A failure at any point leaves the target exactly as
it was.

Both databases must exist and agree on column names per table. Use
'rowboat plan' first to preview what a sync would copy.

Examples:
  rowboat sync prod.db backup.db
  rowboat sync                      # source/target from rowboat.toml
  rowboat sync -v prod.db backup.db # log each phase to stderr`,
	Args: sourceTargetArgs,
	Run:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	source, target := resolveEndpoints(cfg, args)

	h := openSession(cfg, source, target)
	defer h.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := syncer.New(h, syncer.Options{
		TargetAlias: cfg.Alias,
		Logger:      runLogger(),
	})

	report, err := s.Sync(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if report.RowsTotal == 0 {
		fmt.Printf("%s Target is already caught up\n", ui.Pass("✓"))
		return
	}

	fmt.Printf("%s Sync complete in %v\n", ui.Pass("✓"), report.Elapsed.Round(time.Millisecond))
	fmt.Printf("   Rows copied: %d\n", report.RowsTotal)
	fmt.Printf("   Tables:      %d\n", len(report.Tables))
	if len(report.Cycles) > 0 {
		fmt.Printf("   %s %d reference cycle(s) broken while ordering\n", ui.Warn("⚠"), len(report.Cycles))
	}
}
