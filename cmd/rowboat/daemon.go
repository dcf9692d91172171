package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rowboatdb/rowboat/internal/daemon"
	"github.com/rowboatdb/rowboat/internal/dashboard"
	"github.com/rowboatdb/rowboat/internal/metrics"
	"github.com/rowboatdb/rowboat/internal/syncer"
	"github.com/rowboatdb/rowboat/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon [SOURCE TARGET]",
	Short: "Watch the source and re-sync the target on every change",
	Long: `Run rowboat as a foreground daemon.

The daemon syncs once at startup, then watches the source database file
(and its -wal sibling) and re-syncs after writes settle. A cron
schedule can add time-based runs on top. Every run's outcome is
appended to the journal; 'rowboat log' reads it back.

A lock file guards against two daemons syncing the same source. Daemon
settings (debounce, schedule, journal, lock, and log paths) come from
the [daemon] section of rowboat.toml and can be overridden by flags.

Examples:
  rowboat daemon prod.db backup.db
  rowboat daemon --schedule "@hourly"
  rowboat daemon --dashboard          # plus live web dashboard`,
	Args: sourceTargetArgs,
	Run:  runDaemon,
}

func init() {
	daemonCmd.Flags().Duration("debounce", 0, "Settle time after a change before syncing (overrides config)")
	daemonCmd.Flags().String("schedule", "", "Cron expression for scheduled syncs (overrides config)")
	daemonCmd.Flags().Bool("no-initial-sync", false, "Skip the sync normally run at startup")
	daemonCmd.Flags().Bool("dashboard", false, "Serve the live dashboard while the daemon runs")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) {
	debounce, _ := cmd.Flags().GetDuration("debounce")
	schedule, _ := cmd.Flags().GetString("schedule")
	noInitial, _ := cmd.Flags().GetBool("no-initial-sync")
	withDashboard, _ := cmd.Flags().GetBool("dashboard")

	cfg := loadConfig()
	source, target := resolveEndpoints(cfg, args)
	if debounce <= 0 {
		debounce = cfg.Daemon.Debounce
	}
	if schedule == "" {
		schedule = cfg.Daemon.Schedule
	}

	// Daemon output goes to stderr and, when configured, to a rotated
	// log file that survives restarts.
	logSink := io.Writer(os.Stderr)
	if cfg.Daemon.LogFile != "" {
		logSink = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Daemon.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	logger := log.New(logSink, "[daemon] ", log.LstdFlags)

	registry := prometheus.NewRegistry()
	set := metrics.New(registry)
	sinks := []syncer.EventSink{metrics.NewSink(set)}

	var server *dashboard.Server
	if withDashboard {
		server = dashboard.NewServer(&dashboard.Config{
			Port:     cfg.Dashboard.Port,
			Logger:   log.New(logSink, "[dashboard] ", log.LstdFlags),
			Gatherer: registry,
		})
		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			if err := server.Stop(); err != nil {
				logger.Printf("Error stopping dashboard: %v", err)
			}
		}()
		sinks = append(sinks, dashboard.NewHandler(server, logger))
	}

	// One session for the daemon's lifetime; runs are serialized, and
	// the attachment survives across them.
	h := openSession(cfg, source, target)
	defer h.Close()

	s := syncer.New(h, syncer.Options{
		TargetAlias: cfg.Alias,
		Logger:      log.New(logSink, "[sync] ", log.LstdFlags),
		Sinks:       sinks,
	})

	d, err := daemon.New(func(ctx context.Context) (*syncer.Report, error) {
		return s.Sync(ctx)
	}, &daemon.Config{
		SourcePath:  source,
		Debounce:    debounce,
		Schedule:    schedule,
		OplogPath:   cfg.Daemon.Oplog,
		LockPath:    cfg.Daemon.LockFile,
		InitialSync: !noInitial,
		Logger:      logger,
		Metrics:     set,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s Watching %s\n", ui.Accent("👀"), source)
	fmt.Printf("   Target:  %s\n", target)
	fmt.Printf("   Journal: %s\n", cfg.Daemon.Oplog)
	if schedule != "" {
		fmt.Printf("   Schedule: %s\n", schedule)
	}
	if server != nil {
		fmt.Printf("   Dashboard: http://localhost:%d\n", cfg.Dashboard.Port)
	}
	fmt.Printf("\nPress Ctrl+C to stop\n\n")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := d.Start(ctx); err != nil {
		if errors.Is(err, daemon.ErrLocked) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "Stop the other daemon or point this one at a different lock file\n")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Daemon stopped with error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s Daemon stopped\n", ui.Pass("✓"))
}
