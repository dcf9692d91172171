// Command rowboat keeps a target SQLite database caught up with a
// source by copying over the rows the target is missing.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rowboatdb/rowboat/internal/ui"
)

// version is stamped by the release build.
var version = "dev"

var (
	flagConfig  string
	flagVerbose bool
	flagNoColor bool
)

var rootCmd = &cobra.Command{
	Use:   "rowboat",
	Short: "One-way incremental SQLite synchronization",
	Long: `rowboat keeps a target SQLite database caught up with a source.

Rows present in the source but missing from the target are copied in an
order that respects table references. Rows are never deleted, and both
schemas must already agree: rowboat moves data, not DDL.

Common flows:
  rowboat sync prod.db backup.db     one-shot sync
  rowboat plan prod.db backup.db     show what sync would copy
  rowboat daemon                     watch the source and re-sync on change
  rowboat init                       write a starter rowboat.toml`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagNoColor {
			ui.DisableColor()
		}
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rowboat version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rowboat %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default rowboat.toml in . or ~/.rowboat)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log progress to stderr")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// A .env in the working directory may carry ROWBOAT_* overrides or
	// an ANTHROPIC_API_KEY for the explain command.
	_ = godotenv.Load()

	// Cobra already prints the error.
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
