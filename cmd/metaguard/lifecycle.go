package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/openmined/metaguard/internal/meta"
	"github.com/openmined/metaguard/internal/metastore"
	"github.com/spf13/cobra"
)

var heading = color.New(color.FgHiCyan, color.Bold)

func (c *cli) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [flags] [s3a://BUCKET]",
		Short: "Create the metadata store",
		Args:  bucketArg(false),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseBucketArg(args); err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := c.store(ctx, metastore.WithCreate())
			if err != nil {
				return err
			}
			defer store.Close()

			return printDiagnostics(ctx, cmd.OutOrStdout(), store)
		},
	}
}

func (c *cli) newDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy [flags] [s3a://BUCKET]",
		Short: "Delete the metadata store; data in S3 is preserved",
		Args:  bucketArg(false),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseBucketArg(args); err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, err := c.store(ctx, metastore.WithExclusive())
			if errors.Is(err, meta.ErrStoreNotFound) {
				_, err = fmt.Fprintln(out, "Metadata Store does not exist.")
				return err
			}
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Destroy(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, "Metadata store is deleted.")
			return err
		},
	}
}

func printDiagnostics(ctx context.Context, out io.Writer, store metastore.Store) error {
	diag, err := store.Diagnostics(ctx)
	if err != nil {
		return err
	}

	heading.Fprintln(out, "Metadata Store Diagnostics:")
	keys := make([]string, 0, len(diag))
	for k := range diag {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(out, "\t%s=%s\n", k, diag[k]); err != nil {
			return err
		}
	}
	return nil
}
