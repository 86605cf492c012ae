package logging

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ConfigKey is the viper key holding the root logger configuration.
var ConfigKey = "logging"

// Config holds the configuration for one logger.
type Config struct {
	// Debug forces DEBUG level and the human readable console encoder.
	// Use "debug: false, level: debug" to get debug logs as JSON.
	Debug bool `mapstructure:"debug"`

	// Level is the minimum level written. Defaults to INFO.
	Level Level `mapstructure:"level"`

	// EncodeTimeAsRFC3339Nano switches timestamps from epoch floats (or ISO8601
	// in debug mode) to RFC3339Nano strings.
	EncodeTimeAsRFC3339Nano bool `mapstructure:"encodeTimeAsRFC3339Nano"`

	// DisableConsoleOutput keeps logs out of stdout; only the file sink is used.
	DisableConsoleOutput bool `mapstructure:"disableConsoleOutput"`

	// Logger configures the rotating file sink. With an empty Filename
	// lumberjack writes to <processname>-lumberjack.log in os.TempDir().
	lumberjack.Logger `mapstructure:",squash"`
}

// Option mutates a Config.
type Option func(*Config) error

// Validate ensures the logging Config is valid.
func (c *Config) Validate() error {
	if c.MaxSize < 0 {
		return fmt.Errorf("maxsize must be >= 0, not %d", c.MaxSize)
	}
	if c.MaxBackups < 0 {
		return fmt.Errorf("maxbackups must be >= 0, not %d", c.MaxBackups)
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("maxage days must be >= 0, not %d", c.MaxAge)
	}
	if err := c.Level.Validate(); err != nil {
		return fmt.Errorf("invalid level: %w", err)
	}
	return nil
}

// WithViper reads the configuration from the "logging" key.
func WithViper(v *viper.Viper) Option {
	return WithViperKey(v, ConfigKey)
}

// WithViperKey reads the configuration from an arbitrary viper key, which is
// how named loggers get their own sinks.
func WithViperKey(v *viper.Viper, configKey string) Option {
	return func(c *Config) error {
		if v == nil {
			return errors.New("nil Viper")
		}
		return v.UnmarshalKey(configKey, c)
	}
}

// Apply applies opts in order, skipping nil entries.
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

// NewConfig creates a new logging config with the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}
