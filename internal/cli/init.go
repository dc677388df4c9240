package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/loomdb/loom"
	"github.com/loomdb/loom/internal/schema"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Database string
	Schema   string
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or migrate a database",
		Long: `Create a database file (or migrate an existing one) and optionally
check a CUE class schema against it.

Example:
  loom init --db ./loom.db
  loom init --db ./loom.db --schema ./classes.cue`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "path to CUE class schema")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var loomOpts []loom.Option
	if opts.Schema != "" {
		cat, err := schema.LoadFile(opts.Schema)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to compile schema", err)
		}
		formatter.VerboseLog("schema compiled: %d class(es)", len(cat.Classes()))
		loomOpts = append(loomOpts, loom.WithCatalog(cat))
	}

	slog.Info("opening database", "path", opts.Database)
	db, err := loom.Open(opts.Database, loomOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	if err := db.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to close database", err)
	}

	return formatter.Success("database ready: " + opts.Database)
}
