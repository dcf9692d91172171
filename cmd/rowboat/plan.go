package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rowboatdb/rowboat/internal/export"
	"github.com/rowboatdb/rowboat/internal/syncer"
	"github.com/rowboatdb/rowboat/internal/ui"
)

var planCmd = &cobra.Command{
	Use:   "plan [SOURCE TARGET]",
	Short: "Show what a sync would copy, without writing",
	Long: `Run the read-only half of a sync: resolve the table order and diff
every table, but never touch the target.

The default output is a table of pending row counts. Use --format for
machine-readable reports, and --export to write every pending row to a
JSON Lines file for auditing.

Examples:
  rowboat plan prod.db backup.db
  rowboat plan --format json prod.db backup.db | jq .rows_total
  rowboat plan --export pending.jsonl prod.db backup.db`,
	Args: sourceTargetArgs,
	Run:  runPlan,
}

func init() {
	planCmd.Flags().String("format", "table", "Output format: table, json, or yaml")
	planCmd.Flags().String("export", "", "Write pending rows to a JSON Lines file")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("format")
	exportPath, _ := cmd.Flags().GetString("export")

	if format != "table" && format != "json" && format != "yaml" {
		fmt.Fprintf(os.Stderr, "Error: --format must be 'table', 'json', or 'yaml'\n")
		os.Exit(1)
	}

	cfg := loadConfig()
	if exportPath == "" {
		exportPath = cfg.Export
	}
	source, target := resolveEndpoints(cfg, args)

	h := openSession(cfg, source, target)
	defer h.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := syncer.Options{
		TargetAlias: cfg.Alias,
		Logger:      runLogger(),
	}

	var writer *export.Writer
	if exportPath != "" {
		var err error
		writer, err = export.NewWriter(exportPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating export file: %v\n", err)
			os.Exit(1)
		}
		opts.Rows = writer
	}

	s := syncer.New(h, opts)
	report, err := s.Plan(ctx)
	if err != nil {
		if writer != nil {
			writer.Abort()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if writer != nil {
		if err := writer.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing export file: %v\n", err)
			os.Exit(1)
		}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
			os.Exit(1)
		}
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding YAML: %v\n", err)
			os.Exit(1)
		}
		_ = enc.Close()
	default:
		renderPlanTable(report)
	}

	if writer != nil {
		fmt.Fprintf(os.Stderr, "Exported %d row(s) to %s\n", writer.Count(), exportPath)
	}
}

func renderPlanTable(report *syncer.Report) {
	if report.RowsTotal == 0 {
		fmt.Printf("%s Nothing to copy; target is caught up\n", ui.Pass("✓"))
		return
	}

	rows := make([][]string, 0, len(report.Tables))
	for _, tr := range report.Tables {
		rows = append(rows, []string{tr.Table, strconv.FormatInt(tr.Rows, 10)})
	}
	fmt.Println(ui.Table([]string{"Table", "Pending Rows"}, rows))
	fmt.Printf("%d row(s) would be copied across %d table(s)\n", report.RowsTotal, len(report.Tables))

	for _, edge := range report.Cycles {
		fmt.Printf("%s reference cycle broken at %s -> %s\n", ui.Warn("⚠"), edge.From, edge.To)
	}
}
