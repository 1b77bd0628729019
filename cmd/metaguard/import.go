package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/metaguard/internal/metastore"
	"github.com/openmined/metaguard/internal/reconcile"
	"github.com/spf13/cobra"
)

func (c *cli) newImportCmd() *cobra.Command {
	var exclude []string

	cmd := &cobra.Command{
		Use:   "import [flags] s3a://BUCKET[/PATH]",
		Short: "Import bucket metadata into the metadata store",
		Args:  bucketArg(true),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseBucketArg(args)
			if err != nil {
				return err
			}

			if err := reconcile.ValidatePatterns(exclude); err != nil {
				return err
			}

			ctx := cmd.Context()
			src, err := c.source(ctx, target.Bucket)
			if err != nil {
				return err
			}
			store, err := c.store(ctx, metastore.WithCreate(), metastore.WithExclusive())
			if err != nil {
				return err
			}
			defer store.Close()

			start := time.Now()
			n, err := reconcile.New(src, store, reconcile.WithExclude(exclude...)).Import(ctx, target.Path)
			if err != nil {
				return err
			}

			slog.Debug("import done", "bucket", target.Bucket, "path", target.Path, "took", time.Since(start))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d items into Metadata Store\n", n)
			return err
		},
	}

	cmd.Flags().StringSliceVarP(&exclude, "exclude", "x", nil, "skip paths matching this glob (repeatable)")
	return cmd
}
