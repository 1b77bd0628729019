package main

import (
	"github.com/openmined/metaguard/internal/reconcile"
	"github.com/spf13/cobra"
)

func (c *cli) newDiffCmd() *cobra.Command {
	var (
		output  string
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "diff [flags] s3a://BUCKET[/PATH]",
		Short: "Report differences between the bucket and the metadata store",
		Args:  bucketArg(true),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseBucketArg(args)
			if err != nil {
				return err
			}

			var sink reconcile.Sink
			switch output {
			case "text":
				sink = reconcile.NewTextSink(cmd.OutOrStdout())
			case "json":
				sink = reconcile.NewJSONSink(cmd.OutOrStdout())
			default:
				return usageError("unknown output format %q", output)
			}

			if err := reconcile.ValidatePatterns(exclude); err != nil {
				return err
			}

			ctx := cmd.Context()
			src, err := c.source(ctx, target.Bucket)
			if err != nil {
				return err
			}
			store, err := c.store(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			return reconcile.New(src, store, reconcile.WithExclude(exclude...)).Diff(ctx, target.Path, sink)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json)")
	cmd.Flags().StringSliceVarP(&exclude, "exclude", "x", nil, "skip paths matching this glob (repeatable)")
	return cmd
}
