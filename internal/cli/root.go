package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haclabs/simcore/internal/engine"
	"github.com/haclabs/simcore/internal/sim"
	"github.com/haclabs/simcore/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath  string
	Tenant  string
	Actor   string
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the simctl CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "simctl",
		Short: "simcore - clinical simulation lifecycle engine",
		Long:  "Manage simulation templates, snapshots, and live runs with reset-stable printed identifiers.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Tenant == "" {
				return fmt.Errorf("--tenant is required")
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "simcore.db", "path to the SQLite database")
	cmd.PersistentFlags().StringVar(&opts.Tenant, "tenant", "", "tenant scope for all operations")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", "instructor", "acting user recorded on events")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewTemplateCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewLaunchCommand(opts))
	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewCompleteCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

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

// actor builds the acting identity from global flags.
func (o *RootOptions) actor() sim.Actor {
	return sim.Actor{
		ID:     o.Actor,
		Tenant: o.Tenant,
		Role:   "instructor",
	}
}

// openEngine opens the database and builds an engine over it, resuming the
// logical clock past the highest stored seq so events recorded by this
// invocation sort after everything already in the database.
// The caller must Close the returned store.
func (o *RootOptions) openEngine() (*engine.Engine, *store.Store, error) {
	s, err := store.Open(o.DBPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, fmt.Sprintf("opening database %s", o.DBPath), err)
	}

	maxSeq, err := s.MaxSeq(context.Background())
	if err != nil {
		s.Close()
		return nil, nil, WrapExitError(ExitCommandError, "reading event clock", err)
	}

	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return engine.New(s,
		engine.WithClock(engine.NewClockAt(maxSeq)),
		engine.WithLogger(logger),
	), s, nil
}
