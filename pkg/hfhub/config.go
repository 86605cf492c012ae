package hfhub

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/garr-ai/garr/pkg/configutils"
	"github.com/garr-ai/garr/pkg/constants"
	"github.com/garr-ai/garr/pkg/logging"
)

// Config selects the files of one Hub repository revision and where they go.
type Config struct {
	RepoID        string        `mapstructure:"repo_id" validate:"required"`
	Revision      string        `mapstructure:"revision" validate:"required"`
	LocalDir      string        `mapstructure:"local_dir" validate:"required"`
	Files         []string      `mapstructure:"files" validate:"required,min=1,dive,required"`
	Endpoint      string        `mapstructure:"endpoint" validate:"required,url"`
	Token         string        `mapstructure:"token"`
	MaxRetries    int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`

	AnotherLogger logging.Interface `mapstructure:"-"`
}

type Option func(*Config) error

// DefaultConfig downloads the GPT-2 small base checkpoint into models/gpt2.
func DefaultConfig() Config {
	return Config{
		RepoID:        constants.DefaultHubRepoID,
		Revision:      constants.DefaultHubRevision,
		LocalDir:      "models/" + constants.DefaultHubRepoID,
		Files:         []string{constants.ModelConfigFile, constants.ModelWeightsFile, constants.VocabFile},
		Endpoint:      constants.DefaultHubEndpoint,
		MaxRetries:    3,
		RetryInterval: time.Second,
		Timeout:       30 * time.Minute,
	}
}

func (c *Config) Apply(options ...Option) error {
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(c); err != nil {
			return err
		}
	}
	return nil
}

func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		if err := configutils.BindEnvsRecursive(v, c, ""); err != nil {
			return err
		}
		if v.IsSet("files") {
			c.Files = nil
		}
		if err := v.Unmarshal(c); err != nil {
			return fmt.Errorf("error occurred when unmarshalling config: %w", err)
		}
		return nil
	}
}

func WithAnotherLog(logger logging.Interface) Option {
	return func(c *Config) error {
		c.AnotherLogger = logger
		return nil
	}
}

func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

func NewConfig(opts ...Option) (*Config, error) {
	c := DefaultConfig()
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	if c.AnotherLogger == nil {
		c.AnotherLogger = logging.Discard()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
