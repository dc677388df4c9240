package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/loomdb/loom"
	"github.com/loomdb/loom/internal/schema"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	Database string
	Schema   string
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <documents.yaml>",
		Short: "Write objects and list entries from a YAML stream",
		Long: `Write objects (and their ordered list entries) described by a YAML
document stream, in a single transaction. Documents without an id get a
generated one. List entries require --schema so target classes can be
resolved.

Example:
  loom put --db ./loom.db ./dogs.yaml
  loom put --db ./loom.db --schema ./classes.cue ./kennel.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "path to CUE class schema")

	return cmd
}

func runPut(opts *PutOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	docs, err := LoadDocuments(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load documents", err)
	}
	formatter.VerboseLog("loaded %d document(s) from %s", len(docs), path)

	var cat *schema.Catalog
	var loomOpts []loom.Option
	if opts.Schema != "" {
		cat, err = schema.LoadFile(opts.Schema)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to compile schema", err)
		}
		loomOpts = append(loomOpts, loom.WithCatalog(cat))
	}
	for _, doc := range docs {
		if len(doc.Lists) > 0 && cat == nil {
			return NewExitError(ExitCommandError,
				fmt.Sprintf("document for class %s has lists but no --schema was given", doc.Class))
		}
	}

	db, err := loom.Open(opts.Database, loomOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	// Objects first, then list entries, so entries may target objects
	// from later documents. One transaction, one commit.
	ids := make([]string, len(docs))
	err = db.Update(cmd.Context(), func(tx *loom.Tx) error {
		for i, doc := range docs {
			if doc.ID == "" {
				id, err := tx.Insert(doc.Class, doc.Props)
				if err != nil {
					return err
				}
				ids[i] = id
				continue
			}
			if err := tx.Put(doc.Class, doc.ID, doc.Props); err != nil {
				return err
			}
			ids[i] = doc.ID
		}
		for i, doc := range docs {
			for field, targets := range doc.Lists {
				spec := cat.Class(doc.Class)
				if spec == nil {
					return fmt.Errorf("class %q not declared in schema", doc.Class)
				}
				targetClass, ok := spec.Lists[field]
				if !ok {
					return fmt.Errorf("class %s declares no list %q", doc.Class, field)
				}
				list := db.List(doc.Class, ids[i], field, targetClass)
				for _, target := range targets {
					if err := tx.Append(list, target); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return WrapExitError(ExitFailure, "write failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]any{"written": len(docs), "ids": ids})
	}
	return formatter.Success(fmt.Sprintf("wrote %d object(s)", len(docs)))
}
