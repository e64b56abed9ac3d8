// Package cli implements the stratum command-line interface: database
// bootstrap, change set and edit session lifecycles, entity/edge
// editing, and tier-aware graph queries.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/basetier/stratum/internal/notify"
	"github.com/basetier/stratum/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Database   string
	Workspace  string
	Verbose    bool
	Format     string // "json" | "text"

	// config is the parsed config file, set by loadConfigInto. Nil when
	// no --config was given.
	config *Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the stratum CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stratum",
		Short: "Stratum - versioned infrastructure graph",
		Long: `Stratum models infrastructure as a graph of typed entities connected
by edges, versioned across three tiers: head (the canonical baseline),
change sets (branches), and edit sessions (working copies).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(opts.Verbose)
			return loadConfigInto(opts)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.PersistentFlags().StringVarP(&opts.Workspace, "workspace", "w", "", "workspace id")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewChangeSetCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewEntityCommand(opts))
	cmd.AddCommand(NewEdgeCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// configureLogging installs a text slog handler on stderr; verbose
// enables debug level.
func configureLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// openStore opens the configured database, wiring the pubsub notifier
// when one is configured.
func openStore(opts *RootOptions) (*store.Store, func(), error) {
	if opts.Database == "" {
		return nil, nil, NewExitError(ExitCommandError, "no database configured: pass --db or set db in the config file")
	}
	if opts.Workspace == "" {
		return nil, nil, NewExitError(ExitCommandError, "no workspace configured: pass --workspace or set workspace in the config file")
	}

	notifier, shutdown, err := openNotifier(opts)
	if err != nil {
		return nil, nil, err
	}

	s, err := store.Open(opts.Database, store.WithNotifier(notifier))
	if err != nil {
		shutdown()
		return nil, nil, WrapExitError(ExitCommandError, "open database", err)
	}

	cleanup := func() {
		s.Close()
		shutdown()
	}
	return s, cleanup, nil
}

// openNotifier returns the configured notifier, or Nop when the config
// declares no notify URL.
func openNotifier(opts *RootOptions) (notify.Notifier, func(), error) {
	cfg := opts.config
	if cfg == nil || cfg.NotifyURL == "" {
		return notify.Nop{}, func() {}, nil
	}
	return openTopicNotifier(cfg.NotifyURL)
}
