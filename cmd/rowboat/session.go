package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/rowboatdb/rowboat/internal/config"
	"github.com/rowboatdb/rowboat/internal/db"
)

// loadConfig merges file, environment, and defaults for this
// invocation.
func loadConfig() *config.Config {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// resolveEndpoints fills source and target from the positional
// arguments, falling back to the configuration.
func resolveEndpoints(cfg *config.Config, args []string) (source, target string) {
	source, target = cfg.Source, cfg.Target
	if len(args) == 2 {
		source, target = args[0], args[1]
	}
	if source == "" || target == "" {
		fmt.Fprintf(os.Stderr, "Error: source and target databases are required\n")
		fmt.Fprintf(os.Stderr, "Pass them as arguments or set them in rowboat.toml\n")
		os.Exit(1)
	}
	return source, target
}

// sourceTargetArgs accepts either no positional arguments or exactly
// SOURCE and TARGET.
func sourceTargetArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 2 {
		return fmt.Errorf("accepts no arguments or SOURCE TARGET, got %d argument(s)", len(args))
	}
	return nil
}

// openSession opens the source database and attaches the target under
// the configured alias. The caller closes the handle.
func openSession(cfg *config.Config, source, target string) *db.Handle {
	h, err := db.Open(source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening source database: %v\n", err)
		os.Exit(1)
	}
	if err := h.Attach(target, cfg.Alias); err != nil {
		_ = h.Close()
		fmt.Fprintf(os.Stderr, "Error attaching target database: %v\n", err)
		os.Exit(1)
	}
	return h
}

// runLogger returns the progress logger for sync sessions. Quiet unless
// --verbose is set.
func runLogger() *log.Logger {
	if flagVerbose {
		return log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}
