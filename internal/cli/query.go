package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/loomdb/loom"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
	IDsOnly  bool
}

// queryRow is one result row in JSON output.
type queryRow struct {
	ID    string         `json:"id"`
	Props map[string]any `json:"props,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <class> [predicate]",
		Short: "Run a predicate query and print the results",
		Long: `Run a query over every object of a class, optionally narrowed by a
predicate expression, and print the ordered result set.

Example:
  loom query --db ./loom.db Dog
  loom query --db ./loom.db Dog "Age > 3 AND Name BEGINSWITH 'R' SORT(Age DESC)"`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := ""
			if len(args) == 2 {
				expr = args[1]
			}
			return runQuery(opts, args[0], expr, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.IDsOnly, "ids", false, "print object ids only")

	return cmd
}

func runQuery(opts *QueryOptions, class, expr string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	db, err := loom.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	results := db.Objects(class)
	if expr != "" {
		results, err = loom.Filter(results, expr)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid predicate", err)
		}
	}

	ctx := cmd.Context()
	ids, err := results.IDs(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "query failed", err)
	}
	formatter.VerboseLog("%d result(s)", len(ids))

	rows := make([]queryRow, len(ids))
	for i, id := range ids {
		rows[i] = queryRow{ID: id}
		if opts.IDsOnly {
			continue
		}
		props, err := results.Get(ctx, i)
		if err != nil {
			return WrapExitError(ExitFailure, "query failed", err)
		}
		rows[i].Props = props
	}

	if opts.Format == "json" {
		return formatter.Success(rows)
	}
	for i, row := range rows {
		if opts.IDsOnly {
			fmt.Fprintf(formatter.Writer, "%d\t%s\n", i, row.ID)
			continue
		}
		fmt.Fprintf(formatter.Writer, "%d\t%s\t%v\n", i, row.ID, row.Props)
	}
	return nil
}
