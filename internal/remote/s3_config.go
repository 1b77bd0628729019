package remote

import (
	"fmt"

	"github.com/openmined/metaguard/internal/utils"
)

type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 `bucket` required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 `region` required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("s3 `access_key` and `secret_key` must be set together")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint) {
		return fmt.Errorf("invalid s3 endpoint URL %q", c.Endpoint)
	}
	return nil
}
