package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomdb/loom/internal/predicate"
	"github.com/loomdb/loom/internal/store"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Database string
	Interval time.Duration
}

// watchEvent is one change set in JSON output.
type watchEvent struct {
	Commit        int64 `json:"commit"`
	Insertions    []int `json:"insertions,omitempty"`
	Deletions     []int `json:"deletions,omitempty"`
	Modifications []int `json:"modifications,omitempty"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <class> [predicate]",
		Short: "Watch a query and print change sets as commits land",
		Long: `Watch a query and print one change set per commit that affects it.

In-process subscribers are notified synchronously on commit; across
processes the commit sequence is tailed by polling, so writes made by
other loom processes show up within one poll interval. Runs until
interrupted.

Example:
  loom watch --db ./loom.db Dog
  loom watch --db ./loom.db Dog "Age > 3" --interval 200ms`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := ""
			if len(args) == 2 {
				expr = args[1]
			}
			return runWatch(opts, args[0], expr, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 500*time.Millisecond, "commit poll interval")

	return cmd
}

func runWatch(opts *WatchOptions, class, expr string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	spec := store.QuerySpec{Class: class}
	if expr != "" {
		compiled, err := predicate.Compile(expr)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid predicate", err)
		}
		spec.Where = compiled.Where
		spec.Args = compiled.Args
		for _, key := range compiled.Sort {
			spec.OrderBy = append(spec.OrderBy, store.Ordering{Field: key.Field, Desc: key.Desc})
		}
		spec.Distinct = compiled.Distinct
		spec.Limit = compiled.Limit
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	refs, err := st.QueryRefs(ctx, spec)
	if err != nil {
		return WrapExitError(ExitFailure, "query failed", err)
	}
	lastSeq, err := st.LastCommit(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read commit sequence", err)
	}
	formatter.VerboseLog("watching %s (%d result(s), commit %d)", class, len(refs), lastSeq)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		seq, err := st.LastCommit(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return WrapExitError(ExitFailure, "failed to read commit sequence", err)
		}
		if seq == lastSeq {
			continue
		}

		next, err := st.QueryRefs(ctx, spec)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return WrapExitError(ExitFailure, "query failed", err)
		}
		change := store.Diff(refs, next)
		refs = next
		lastSeq = seq
		if change.IsEmpty() {
			continue
		}

		if err := printChange(formatter, seq, change); err != nil {
			return err
		}
	}
}

func printChange(formatter *OutputFormatter, seq int64, change store.Change) error {
	if formatter.Format == "json" {
		return formatter.Success(watchEvent{
			Commit:        seq,
			Insertions:    change.Insertions,
			Deletions:     change.Deletions,
			Modifications: change.Modifications,
		})
	}
	fmt.Fprintf(formatter.Writer, "commit %d\tinsert %v\tdelete %v\tmodify %v\n",
		seq, change.Insertions, change.Deletions, change.Modifications)
	return nil
}
