package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/openmined/metaguard/internal/metastore"
	"github.com/openmined/metaguard/internal/prune"
	"github.com/openmined/metaguard/internal/reconcile"
	"github.com/spf13/cobra"
)

func (c *cli) newPruneCmd() *cobra.Command {
	var age prune.Age

	cmd := &cobra.Command{
		Use:   "prune [flags] [s3a://BUCKET]",
		Short: "Remove metadata older than the given age; data in S3 is preserved",
		Args:  bucketArg(false),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseBucketArg(args); err != nil {
				return err
			}

			// reject a missing age before the store is opened
			now := c.now()
			cutoff, err := prune.Cutoff(now, c.cfg.Prune.Age, age)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := c.store(ctx, metastore.WithExclusive())
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := prune.Run(ctx, reconcile.New(nil, store), now, c.cfg.Prune.Age, age)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries last modified before %s (%s)\n",
				n, cutoff.UTC().Format("2006-01-02 15:04:05"), humanize.RelTime(cutoff, now, "ago", "from now"))
			return err
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&age.Days, "days", 0, "age in days")
	flags.Int64Var(&age.Hours, "hours", 0, "age in hours")
	flags.Int64Var(&age.Minutes, "minutes", 0, "age in minutes")
	flags.Int64Var(&age.Seconds, "seconds", 0, "age in seconds")
	return cmd
}
