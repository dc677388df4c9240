package cli

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loomdb/loom"
	"github.com/loomdb/loom/internal/schema"
)

// MoveOptions holds flags for the move command.
type MoveOptions struct {
	*RootOptions
	Database string
	Schema   string
}

// NewMoveCommand creates the move command.
func NewMoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MoveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "move <owner-class> <owner-id> <field> <from> <to>",
		Short: "Move a list entry to a new position",
		Long: `Move the entry at position <from> of an owner's ordered list to
position <to>, in one transaction. Intervening entries shift by one.
--schema is required to resolve the list's target class.

Example:
  loom move --db ./loom.db --schema ./classes.cue Dog dog-rex Puppies 0 2`,
		Args:          cobra.ExactArgs(5),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "path to CUE class schema (required)")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runMove(opts *MoveOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	ownerClass, ownerID, field := args[0], args[1], args[2]
	from, err := strconv.Atoi(args[3])
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid from position", err)
	}
	to, err := strconv.Atoi(args[4])
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid to position", err)
	}

	cat, err := schema.LoadFile(opts.Schema)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile schema", err)
	}
	spec := cat.Class(ownerClass)
	if spec == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("class %q not declared in schema", ownerClass))
	}
	targetClass, ok := spec.Lists[field]
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("class %s declares no list %q", ownerClass, field))
	}

	db, err := loom.Open(opts.Database, loom.WithCatalog(cat))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	list := db.List(ownerClass, ownerID, field, targetClass)
	ctx := cmd.Context()
	err = db.Update(ctx, func(tx *loom.Tx) error {
		return loom.Move(ctx, list, from, to)
	})
	if err != nil {
		return WrapExitError(ExitFailure, "move failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]any{
			"owner": ownerClass + "/" + ownerID, "field": field, "from": from, "to": to,
		})
	}
	return formatter.Success(fmt.Sprintf("moved %s/%s.%s %d -> %d", ownerClass, ownerID, field, from, to))
}
