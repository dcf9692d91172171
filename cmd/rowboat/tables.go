package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rowboatdb/rowboat/internal/catalog"
	"github.com/rowboatdb/rowboat/internal/db"
	"github.com/rowboatdb/rowboat/internal/ident"
	"github.com/rowboatdb/rowboat/internal/refgraph"
	"github.com/rowboatdb/rowboat/internal/ui"
)

var tablesCmd = &cobra.Command{
	Use:   "tables [SOURCE]",
	Short: "List the source's tables in diff order",
	Long: `Inspect a database the way a sync run sees it: every user table,
its column and row counts, and the references that decide the order.

Tables are listed in diff order; a sync applies rows in the reverse of
this order so referenced rows land first.

Examples:
  rowboat tables prod.db
  rowboat tables           # source from rowboat.toml`,
	Args: cobra.MaximumNArgs(1),
	Run:  runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

func runTables(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	source := cfg.Source
	if len(args) == 1 {
		source = args[0]
	}
	if source == "" {
		fmt.Fprintf(os.Stderr, "Error: a source database is required\n")
		os.Exit(1)
	}

	h, err := db.Open(source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer h.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	names, err := catalog.Tables(ctx, h, "main")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing tables: %v\n", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		fmt.Printf("%s No user tables in %s\n", ui.Warn("⚠"), source)
		return
	}

	graph, err := refgraph.Build(names, func(table string) (string, error) {
		return catalog.CreateSQL(ctx, h, "main", table)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving references: %v\n", err)
		os.Exit(1)
	}
	order, cycles := graph.Order()

	rows := make([][]string, 0, len(order))
	for i, table := range order {
		cols, err := catalog.Columns(ctx, h, "main", table)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error describing %s: %v\n", table, err)
			os.Exit(1)
		}

		var count int64
		query := fmt.Sprintf("SELECT count(*) FROM main.%s", ident.Quote(table))
		if err := h.RawDB().QueryRowContext(ctx, query).Scan(&count); err != nil {
			fmt.Fprintf(os.Stderr, "Error counting %s: %v\n", table, err)
			os.Exit(1)
		}

		refs := "-"
		if deps := graph.Deps(table); len(deps) > 0 {
			refs = strings.Join(deps, ", ")
		}

		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			table,
			strconv.Itoa(len(cols)),
			strconv.FormatInt(count, 10),
			refs,
		})
	}

	fmt.Println(ui.Table([]string{"#", "Table", "Columns", "Rows", "References"}, rows))
	for _, edge := range cycles {
		fmt.Printf("%s reference cycle broken at %s -> %s\n", ui.Warn("⚠"), edge.From, edge.To)
	}
}
