package predict_client

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/garr-ai/garr/pkg/configutils"
	"github.com/garr-ai/garr/pkg/constants"
	"github.com/garr-ai/garr/pkg/logging"
)

type Config struct {
	AnotherLogger logging.Interface `mapstructure:"-"`
	Out           io.Writer         `mapstructure:"-"`

	URL     string        `mapstructure:"url" validate:"required,url"`
	Text    string        `mapstructure:"text" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// Option represents a predict client configuration option.
type Option func(*Config) error

// Apply applies the given options to the configuration.
func (c *Config) Apply(opts ...Option) error {
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(c); err != nil {
			return err
		}
	}
	return nil
}

func NewPredictClientConfig(opts ...Option) (*Config, error) {
	c := &Config{
		URL:     constants.DefaultPredictURL,
		Text:    constants.DefaultPredictText,
		Timeout: 30 * time.Second,
	}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	if c.AnotherLogger == nil {
		c.AnotherLogger = logging.Discard()
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	return c, nil
}

// WithAnotherLog sets the logger for the configuration.
func WithAnotherLog(logger logging.Interface) Option {
	return func(c *Config) error {
		c.AnotherLogger = logger
		return nil
	}
}

// WithOutput redirects the printed result.
func WithOutput(w io.Writer) Option {
	return func(c *Config) error {
		c.Out = w
		return nil
	}
}

// WithViper sets the viper for the configuration.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		if err := configutils.BindEnvsRecursive(v, c, ""); err != nil {
			return fmt.Errorf("error occurred when binding environment variables: %+v", err)
		}
		if err := v.Unmarshal(c); err != nil {
			return fmt.Errorf("error occurred when unmarshalling config: %+v", err)
		}
		return nil
	}
}

func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
