package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openmined/metaguard/internal/logging"
	"github.com/openmined/metaguard/internal/meta"
	"github.com/openmined/metaguard/internal/remote"
	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	envPrefix      = "METAGUARD"
)

type Config struct {
	Path      string          `mapstructure:"-"`
	DataDir   string          `mapstructure:"data_dir"`
	Metastore MetastoreConfig `mapstructure:"metastore"`
	S3        remote.S3Config `mapstructure:"s3"`
	Prune     PruneConfig     `mapstructure:"prune"`
	Log       logging.Config  `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type MetastoreConfig struct {
	URI   string `mapstructure:"uri"`
	Table string `mapstructure:"table"`
}

type PruneConfig struct {
	// Age is the default prune age when no explicit age is given.
	Age time.Duration `mapstructure:"age"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: `data_dir` required", meta.ErrInvalidArgument)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("%w: %w", meta.ErrInvalidArgument, err)
	}
	if c.Prune.Age < 0 {
		return fmt.Errorf("%w: `prune.age` must not be negative", meta.ErrInvalidArgument)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".metaguard"
	}
	return filepath.Join(home, ".metaguard")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("metastore.uri", "")
	v.SetDefault("metastore.table", "metaguard")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.use_path_style", false)
	v.SetDefault("prune.age", time.Duration(0))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.textfile", "")
}

// loadConfig reads the config file (if any), the environment and the bound
// flags, in increasing order of precedence.
func loadConfig(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(defaultDataDir())
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		var notFound viper.ConfigFileNotFoundError
		if !enoent && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
		if configPath != "" {
			return nil, fmt.Errorf("%w: config file %s not found", meta.ErrInvalidArgument, configPath)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", meta.ErrInvalidArgument, err)
	}
	cfg.Path = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
