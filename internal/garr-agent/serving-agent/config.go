package serving_agent

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/configutils"
	"github.com/garr-ai/garr/pkg/constants"
	"github.com/garr-ai/garr/pkg/logging"
	"github.com/garr-ai/garr/pkg/logging/ginlog"
)

const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
)

type Config struct {
	AnotherLogger logging.Interface `mapstructure:"-"`
	ZapLogger     *zap.Logger       `mapstructure:"-"`
	Fs            afero.Fs          `mapstructure:"-"`

	Host              string                     `mapstructure:"host" validate:"required"`
	Port              int                        `mapstructure:"port" validate:"gte=0,lte=65535"`
	ModelDir          string                     `mapstructure:"model_dir" validate:"required"`
	TokenizerDir      string                     `mapstructure:"tokenizer_dir"`
	Device            string                     `mapstructure:"device" validate:"oneof=auto cpu"`
	MaxLength         int                        `mapstructure:"max_length" validate:"gte=0"`
	ShutdownTimeout   time.Duration              `mapstructure:"shutdown_timeout" validate:"gt=0"`
	ReadHeaderTimeout time.Duration              `mapstructure:"read_header_timeout" validate:"gt=0"`
	RequestLogger     ginlog.RequestLoggerConfig `mapstructure:"request_logger"`
}

// Option represents a serving agent configuration option.
type Option func(*Config) error

func defaultConfig() Config {
	return Config{
		Host:              constants.DefaultServingHost,
		Port:              constants.DefaultServingPort,
		ModelDir:          constants.DefaultServingModelPath,
		Device:            DeviceAuto,
		ShutdownTimeout:   10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		RequestLogger: ginlog.RequestLoggerConfig{
			LevelByPath: map[string]string{
				constants.HealthPath:  "debug",
				constants.MetricsPath: "debug",
			},
		},
	}
}

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

// NewServingAgentConfig builds the configuration from defaults and options.
func NewServingAgentConfig(opts ...Option) (*Config, error) {
	c := defaultConfig()
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	if c.AnotherLogger == nil {
		c.AnotherLogger = logging.Discard()
	}
	if c.ZapLogger == nil {
		c.ZapLogger = zap.NewNop()
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	return &c, nil
}

// WithAppParams resolves the injected dependencies.
func WithAppParams(params servingAgentParams) Option {
	return func(c *Config) error {
		c.ZapLogger = params.ZapLogger
		c.Fs = params.Fs
		return nil
	}
}

// WithAnotherLog sets the logger for the configuration.
func WithAnotherLog(logger logging.Interface) Option {
	return func(c *Config) error {
		c.AnotherLogger = logger
		return nil
	}
}

// WithViper overlays the viper configuration on the defaults.
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

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ResolvedTokenizerDir is TokenizerDir, or ModelDir when unset.
func (c *Config) ResolvedTokenizerDir() string {
	if c.TokenizerDir != "" {
		return c.TokenizerDir
	}
	return c.ModelDir
}

// ResolveDevice maps the configured device onto an available backend. The
// CPU is the only backend, so auto always resolves to it.
func (c *Config) ResolveDevice() string {
	return DeviceCPU
}
