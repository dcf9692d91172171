package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/rowboatdb/rowboat/internal/daemon"
	"github.com/rowboatdb/rowboat/internal/ui"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the daemon's run journal",
	Long: `Show past sync runs recorded by the daemon.

Each entry records when the run happened, what triggered it, whether it
committed, and how many rows moved. Failed runs keep their error text,
which 'rowboat explain --last' can pick up.

Examples:
  rowboat log
  rowboat log -n 5
  rowboat log prune --before "2 weeks ago"`,
	Run: runLog,
}

var logPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop journal entries older than a cutoff",
	Long: `Drop journal entries older than a cutoff.

The cutoff accepts RFC 3339 timestamps, durations like 720h, or plain
English like "last monday" or "2 weeks ago".`,
	Run: runLogPrune,
}

func init() {
	logCmd.Flags().IntP("limit", "n", 25, "Show at most this many entries (0 for all)")
	logPruneCmd.Flags().String("before", "", "Cutoff: RFC 3339, duration, or plain English (required)")
	logCmd.AddCommand(logPruneCmd)
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	entries, err := daemon.ReadOplog(cfg.Daemon.Oplog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading journal: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Printf("%s No runs recorded in %s\n", ui.Dim("·"), cfg.Daemon.Oplog)
		return
	}

	total := len(entries)
	if limit > 0 && total > limit {
		entries = entries[total-limit:]
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		result := ui.Pass(e.Result)
		if e.Result == "failed" {
			result = ui.Fail(e.Result)
		}
		errText := e.Error
		if len(errText) > 48 {
			errText = errText[:45] + "..."
		}
		rows = append(rows, []string{
			e.At.Local().Format("2006-01-02 15:04:05"),
			e.Trigger,
			result,
			strconv.FormatInt(e.Rows, 10),
			strconv.Itoa(e.Tables),
			e.Elapsed.Round(time.Millisecond).String(),
			errText,
		})
	}

	fmt.Print(ui.Table([]string{"When", "Trigger", "Result", "Rows", "Tables", "Elapsed", "Error"}, rows))
	if limit > 0 && total > limit {
		fmt.Printf("\n%s\n", ui.Dim(fmt.Sprintf("Showing %d of %d runs", limit, total)))
	}
}

func runLogPrune(cmd *cobra.Command, args []string) {
	before, _ := cmd.Flags().GetString("before")
	if before == "" {
		fmt.Fprintf(os.Stderr, "Error: --before is required\n")
		os.Exit(1)
	}

	cutoff, err := parseCutoff(before, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig()
	kept, removed, err := daemon.PruneOplog(cfg.Daemon.Oplog, cutoff)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error pruning journal: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s Removed %d entr%s before %s, kept %d\n",
		ui.Pass("✓"), removed, plural(removed, "y", "ies"), cutoff.Local().Format("2006-01-02 15:04"), kept)
}

// parseCutoff turns a user-supplied cutoff into a point in time. It tries
// RFC 3339 first, then a duration back from now, then natural language.
func parseCutoff(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse cutoff %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand cutoff %q", s)
	}
	return r.Time, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
