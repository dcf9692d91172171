package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rowboatdb/rowboat/internal/config"
	"github.com/rowboatdb/rowboat/internal/ident"
	"github.com/rowboatdb/rowboat/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write a starter rowboat.toml",
	Long: `Create a configuration file interactively.

The form asks for the source and target databases and the daemon
settings; everything can be edited in the file afterwards. Use
--defaults to skip the form and write the built-in defaults.

Examples:
  rowboat init
  rowboat init --defaults
  rowboat init ~/.rowboat/rowboat.toml`,
	Args: cobra.MaximumNArgs(1),
	Run:  runInit,
}

func init() {
	initCmd.Flags().Bool("defaults", false, "Write defaults without prompting")
	initCmd.Flags().Bool("force", false, "Replace an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	useDefaults, _ := cmd.Flags().GetBool("defaults")
	force, _ := cmd.Flags().GetBool("force")

	path := "rowboat.toml"
	if len(args) == 1 {
		path = args[0]
	}

	cfg := config.Default()
	if !useDefaults {
		promptConfig(cfg)
	}

	if force {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing old config: %v\n", err)
			os.Exit(1)
		}
	}

	if err := config.Write(path, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s Wrote %s\n", ui.Pass("✓"), path)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  rowboat plan     # preview the first sync\n")
	fmt.Printf("  rowboat sync     # run it\n")
	fmt.Printf("  rowboat daemon   # keep the target caught up\n")
}

// promptConfig fills cfg from an interactive form.
func promptConfig(cfg *config.Config) {
	debounce := cfg.Daemon.Debounce.String()
	port := strconv.Itoa(cfg.Dashboard.Port)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Source database").
				Description("Rows are copied from here").
				Placeholder("prod.db").
				Value(&cfg.Source).
				Validate(required("source")),
			huh.NewInput().
				Title("Target database").
				Description("Rows are copied into here; never modified otherwise").
				Placeholder("backup.db").
				Value(&cfg.Target).
				Validate(required("target")),
			huh.NewInput().
				Title("Attach alias").
				Description("Schema name the target is attached under").
				Value(&cfg.Alias).
				Validate(ident.Check),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Daemon debounce").
				Description("How long writes settle before a re-sync").
				Value(&debounce).
				Validate(validDuration),
			huh.NewInput().
				Title("Cron schedule").
				Description("Optional time-based syncs, e.g. @hourly").
				Value(&cfg.Daemon.Schedule),
			huh.NewInput().
				Title("Dashboard port").
				Value(&port).
				Validate(validPort),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintf(os.Stderr, "Aborted\n")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Validated above
	cfg.Daemon.Debounce, _ = time.ParseDuration(debounce)
	cfg.Dashboard.Port, _ = strconv.Atoi(port)
}

func required(name string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return errors.New("use a duration like 2s or 500ms")
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func validPort(s string) error {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return errors.New("use a port between 1 and 65535")
	}
	return nil
}
