package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rowboatdb/rowboat/internal/dashboard"
	"github.com/rowboatdb/rowboat/internal/metrics"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the sync dashboard without a daemon",
	Long: `Start the WebSocket dashboard server on its own.

Connected clients receive run lifecycle events (run_started,
table_diffed, table_applied, run_completed, run_failed) plus rolling
stats. Standalone the server only shows stats; run 'rowboat daemon
--dashboard' to feed it live runs.

Endpoints:
  /          status page
  /ws        WebSocket event stream
  /health    liveness probe
  /metrics   Prometheus metrics

Examples:
  rowboat dashboard
  rowboat dashboard --port 9000`,
	Run: runDashboard,
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 0, "Port to listen on (defaults to dashboard.port from config)")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) {
	port, _ := cmd.Flags().GetInt("port")

	cfg := loadConfig()
	if port == 0 {
		port = cfg.Dashboard.Port
	}

	registry := prometheus.NewRegistry()
	metrics.New(registry)

	server := dashboard.NewServer(&dashboard.Config{
		Port:     port,
		Logger:   log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
		Gatherer: registry,
	})

	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Dashboard server started on http://localhost:%d\n", port)
	fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
	fmt.Printf("Metrics: http://localhost:%d/metrics\n", port)
	fmt.Println("\nPress Ctrl+C to stop...")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()

	fmt.Println("\nShutting down dashboard server...")
	if err := server.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Dashboard server stopped")
}
