package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openmined/metaguard/internal/meta"
	"github.com/openmined/metaguard/internal/metastore"
	"github.com/openmined/metaguard/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// locator is implemented by sources that can report where the bucket lives.
type locator interface {
	Location(ctx context.Context) (string, error)
}

func (c *cli) newBucketInfoCmd() *cobra.Command {
	var guarded, unguarded bool

	cmd := &cobra.Command{
		Use:   "bucket-info [flags] s3a://BUCKET",
		Short: "Show bucket and metadata store information",
		Args:  bucketArg(true),
		RunE: func(cmd *cobra.Command, args []string) error {
			if guarded && unguarded {
				return usageError("--guarded and --unguarded are mutually exclusive")
			}
			target, err := parseBucketArg(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			src, err := c.source(ctx, target.Bucket)
			if err != nil {
				return err
			}

			var (
				location = "unknown"
				store    metastore.Store
			)
			g, gctx := errgroup.WithContext(ctx)
			if l, ok := src.(locator); ok {
				g.Go(func() error {
					loc, err := l.Location(gctx)
					if err != nil {
						return fmt.Errorf("bucket location: %w", err)
					}
					location = loc
					return nil
				})
			}
			g.Go(func() error {
				s, err := c.store(gctx)
				if errors.Is(err, meta.ErrStoreNotFound) {
					slog.Debug("bucket-info", "metastore", "absent")
					return nil
				}
				store = s
				return err
			})
			if err := g.Wait(); err != nil {
				if store != nil {
					store.Close()
				}
				return err
			}

			out := cmd.OutOrStdout()
			heading.Fprintf(out, "Filesystem s3a://%s\n", target.Bucket)
			fmt.Fprintf(out, "Location: %s\n", location)
			if c.cfg.S3.Endpoint != "" {
				fmt.Fprintf(out, "Endpoint: %s\n", c.cfg.S3.Endpoint)
			}
			if c.cfg.S3.AccessKey != "" {
				fmt.Fprintf(out, "Credentials: static, access key %s\n", utils.MaskSecret(c.cfg.S3.AccessKey))
			} else {
				fmt.Fprintln(out, "Credentials: default chain")
			}
			if c.cfg.Metastore.URI != "" {
				fmt.Fprintf(out, "Metadata store URI: %s\n", utils.MaskURL(c.cfg.Metastore.URI))
			}

			if store == nil {
				fmt.Fprintf(out, "Filesystem s3a://%s is not using a metadata store\n", target.Bucket)
				if guarded {
					return badState("filesystem s3a://%s is not guarded by a metadata store", target.Bucket)
				}
				return nil
			}
			defer store.Close()

			fmt.Fprintf(out, "Filesystem s3a://%s is using a metadata store\n", target.Bucket)
			if err := printDiagnostics(ctx, out, store); err != nil {
				return err
			}
			if unguarded {
				return badState("filesystem s3a://%s is guarded by a metadata store", target.Bucket)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&guarded, "guarded", false, "fail unless a metadata store is in use")
	cmd.Flags().BoolVar(&unguarded, "unguarded", false, "fail if a metadata store is in use")
	return cmd
}
