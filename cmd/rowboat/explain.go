package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rowboatdb/rowboat/internal/advisor"
	"github.com/rowboatdb/rowboat/internal/daemon"
	"github.com/rowboatdb/rowboat/internal/syncer"
	"github.com/rowboatdb/rowboat/internal/ui"
)

var explainCmd = &cobra.Command{
	Use:   "explain [SOURCE TARGET]",
	Short: "Ask Claude why a sync is failing",
	Long: `Diagnose a failing sync in plain language.

By default this re-runs the read-only plan phase to reproduce the
failure, then sends the error and run details to the Anthropic API for
an explanation and suggested fixes. Nothing is written to either
database. With --last, the most recent failed run is read from the
daemon journal instead of re-running anything.

Requires ANTHROPIC_API_KEY in the environment (a .env file works).

Examples:
  rowboat explain prod.db backup.db
  rowboat explain --last`,
	Args: sourceTargetArgs,
	Run:  runExplain,
}

func init() {
	explainCmd.Flags().Bool("last", false, "Explain the most recent failed run from the journal")
	explainCmd.Flags().String("model", advisor.DefaultModel, "Model to ask")
	explainCmd.Flags().Int64("max-tokens", advisor.DefaultMaxTokens, "Response length limit")
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) {
	last, _ := cmd.Flags().GetBool("last")
	model, _ := cmd.Flags().GetString("model")
	maxTokens, _ := cmd.Flags().GetInt64("max-tokens")

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		fmt.Fprintf(os.Stderr, "Error: ANTHROPIC_API_KEY is not set\n")
		os.Exit(1)
	}

	cfg := loadConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := advisor.New(advisor.Options{Model: model, MaxTokens: maxTokens})

	var (
		report  *syncer.Report
		errText string
	)
	if last {
		errText = lastFailure(cfg.Daemon.Oplog)
	} else {
		source, target := resolveEndpoints(cfg, args)
		h := openSession(cfg, source, target)
		defer h.Close()

		s := syncer.New(h, syncer.Options{TargetAlias: cfg.Alias, Logger: runLogger()})
		r, err := s.Plan(ctx)
		if err == nil {
			if r.RowsTotal == 0 {
				fmt.Printf("%s Nothing to explain: the target is caught up\n", ui.Pass("✓"))
			} else {
				fmt.Printf("%s Nothing to explain: a sync would copy %d row(s) cleanly\n", ui.Pass("✓"), r.RowsTotal)
			}
			return
		}
		report = r
		errText = err.Error()
		fmt.Printf("%s Reproduced the failure: %v\n\n", ui.Warn("⚠"), err)
	}

	fmt.Printf("%s Asking %s...\n\n", ui.Accent("◆"), model)
	answer, err := a.Explain(ctx, report, errText)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(answer)
}

// lastFailure pulls the most recent failed entry from the run journal.
func lastFailure(oplogPath string) string {
	entries, err := daemon.ReadOplog(oplogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading journal: %v\n", err)
		os.Exit(1)
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Result == "failed" {
			return entries[i].Error
		}
	}
	fmt.Fprintf(os.Stderr, "Error: no failed runs in %s\n", oplogPath)
	os.Exit(1)
	return ""
}
