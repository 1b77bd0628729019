package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/openmined/metaguard/internal/logging"
	"github.com/openmined/metaguard/internal/metastore"
	"github.com/openmined/metaguard/internal/metrics"
	"github.com/openmined/metaguard/internal/remote"
	"github.com/openmined/metaguard/internal/utils"
	"github.com/openmined/metaguard/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// deps are the collaborators a command run needs from the outside world.
type deps struct {
	newSource func(ctx context.Context, cfg *remote.S3Config) (remote.Source, error)
	openStore func(ctx context.Context, uri string, opts ...metastore.Option) (metastore.Store, error)
	now       func() time.Time
}

func defaultDeps() deps {
	return deps{
		newSource: func(ctx context.Context, cfg *remote.S3Config) (remote.Source, error) {
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return remote.NewS3SourceWithConfig(ctx, cfg)
		},
		openStore: metastore.Open,
		now:       time.Now,
	}
}

// cli holds the state of one command line invocation.
type cli struct {
	deps
	v         *viper.Viper
	cfg       *Config
	runID     string
	logCloser io.Closer
}

func newCLI(d deps) *cli {
	v := viper.New()
	setDefaults(v)
	return &cli{deps: d, v: v, runID: uuid.NewString()}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           version.AppName,
		Short:         "Keep a metadata store consistent with an S3 bucket",
		Version:       version.Detailed(),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", "", "config file (default ~/.metaguard/config.yaml)")
	flags.StringP("meta", "m", "", "metadata store URI (local://, sqlite://, postgres://, mysql://)")
	flags.String("region", "", "S3 bucket region")
	flags.String("endpoint", "", "S3 endpoint URL")
	flags.String("data-dir", "", "directory for the default SQLite store")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "also write logs to this file")
	flags.String("metrics-textfile", "", "write run metrics to this file on exit")

	c.v.BindPFlag("metastore.uri", flags.Lookup("meta"))
	c.v.BindPFlag("s3.region", flags.Lookup("region"))
	c.v.BindPFlag("s3.endpoint", flags.Lookup("endpoint"))
	c.v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	c.v.BindPFlag("log.level", flags.Lookup("log-level"))
	c.v.BindPFlag("log.file", flags.Lookup("log-file"))
	c.v.BindPFlag("metrics.textfile", flags.Lookup("metrics-textfile"))

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError("%w", err)
	})

	root.AddCommand(
		c.newDiffCmd(),
		c.newImportCmd(),
		c.newPruneCmd(),
		c.newInitCmd(),
		c.newDestroyCmd(),
		c.newBucketInfoCmd(),
		newVersionCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(c.v, configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	logger, closer, err := logging.New(&cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c.logCloser = closer
	slog.SetDefault(logger.With("run_id", c.runID))

	slog.Debug("metaguard", "command", cmd.Name(), "version", version.Short(), "config", cfg.Path,
		"metastore", utils.MaskURL(cfg.Metastore.URI))
	return nil
}

// finish runs after every command, successful or not.
func (c *cli) finish() error {
	var err error
	if c.cfg != nil && c.cfg.Metrics.Textfile != "" {
		if err = utils.EnsureParent(c.cfg.Metrics.Textfile); err == nil {
			err = metrics.WriteTextfile(c.cfg.Metrics.Textfile)
		}
		if err != nil {
			err = fmt.Errorf("write metrics: %w", err)
		}
	}
	if c.logCloser != nil {
		c.logCloser.Close()
	}
	return err
}

// source builds the remote source for bucket, which overrides the
// configured bucket when set.
func (c *cli) source(ctx context.Context, bucket string) (remote.Source, error) {
	s3cfg := c.cfg.S3
	if bucket != "" {
		s3cfg.Bucket = bucket
	}
	return c.newSource(ctx, &s3cfg)
}

func (c *cli) store(ctx context.Context, opts ...metastore.Option) (metastore.Store, error) {
	opts = append([]metastore.Option{
		metastore.WithDataDir(c.cfg.DataDir),
		metastore.WithTable(c.cfg.Metastore.Table),
	}, opts...)
	return c.openStore(ctx, c.cfg.Metastore.URI, opts...)
}

// bucketArg validates positional arguments of the form s3a://BUCKET[/PATH].
func bucketArg(required bool) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		switch {
		case len(args) > 1:
			return usageError("too many arguments")
		case len(args) == 0 && required:
			return usageError("no arguments")
		}
		return nil
	}
}

func parseBucketArg(args []string) (*utils.BucketURL, error) {
	if len(args) == 0 {
		return &utils.BucketURL{Path: "/"}, nil
	}
	return utils.ParseBucketURL(args[0])
}
