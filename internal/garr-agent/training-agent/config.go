package training_agent

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/configutils"
	"github.com/garr-ai/garr/pkg/constants"
	"github.com/garr-ai/garr/pkg/logging"
	"github.com/garr-ai/garr/pkg/optim"
)

type Config struct {
	AnotherLogger logging.Interface `mapstructure:"-"`
	Fs            afero.Fs          `mapstructure:"-"`

	DataPath        string   `mapstructure:"data_path" validate:"required"`
	OutputDir       string   `mapstructure:"output_dir" validate:"required"`
	PretrainedModel string   `mapstructure:"pretrained_model" validate:"required"`
	TokenizerDir    string   `mapstructure:"tokenizer_dir"`
	Labels          []string `mapstructure:"labels" validate:"min=2,unique,dive,required"`

	Epochs      int     `mapstructure:"epochs" validate:"gte=1"`
	BatchSize   int     `mapstructure:"batch_size" validate:"gte=1"`
	MaxLength   int     `mapstructure:"max_length" validate:"gte=0"`
	TestSize    float64 `mapstructure:"test_size" validate:"gt=0,lt=1"`
	Seed        int64   `mapstructure:"seed"`
	WarmupSteps int     `mapstructure:"warmup_steps" validate:"gte=0"`
	MaxGradNorm float64 `mapstructure:"max_grad_norm" validate:"gt=0"`

	Optimizer optim.AdamWConfig `mapstructure:"optimizer"`
	Upload    UploadConfig      `mapstructure:"upload"`
}

// UploadConfig selects the optional S3 destination of finished epochs.
// Uploading is disabled while Bucket is empty.
type UploadConfig struct {
	Bucket   string        `mapstructure:"bucket"`
	Prefix   string        `mapstructure:"prefix"`
	Region   string        `mapstructure:"region"`
	Endpoint string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

func (u UploadConfig) Enabled() bool { return u.Bucket != "" }

// Option represents a training agent configuration option.
type Option func(*Config) error

func defaultConfig() Config {
	optimizer := optim.DefaultAdamWConfig()
	optimizer.LearningRate = constants.DefaultLearningRate
	optimizer.Epsilon = constants.DefaultAdamEpsilon

	return Config{
		DataPath:        constants.DefaultDataPath,
		OutputDir:       constants.DefaultOutputDir,
		PretrainedModel: constants.DefaultPretrainedModel,
		Labels:          append([]string(nil), constants.DefaultLabels...),
		Epochs:          constants.DefaultEpochs,
		BatchSize:       constants.DefaultBatchSize,
		TestSize:        constants.DefaultTestSize,
		Seed:            constants.DefaultSeed,
		MaxGradNorm:     constants.DefaultMaxGradNorm,
		Optimizer:       optimizer,
		Upload: UploadConfig{
			Timeout: 10 * time.Minute,
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

// NewTrainingAgentConfig builds and returns a new configuration from the given options.
func NewTrainingAgentConfig(opts ...Option) (*Config, error) {
	c := defaultConfig()
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	if c.AnotherLogger == nil {
		c.AnotherLogger = logging.Discard()
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	return &c, nil
}

// WithAppParams attempts to resolve the required objects using injected parameters
func WithAppParams(params trainingAgentParams) Option {
	return func(c *Config) error {
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

// WithViper sets the viper for the configuration.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		if err := configutils.BindEnvsRecursive(v, c, ""); err != nil {
			return fmt.Errorf("error occurred when binding environment variables: %+v", err)
		}

		// a configured label list replaces the defaults, it is not merged into them
		if v.IsSet("labels") {
			c.Labels = nil
		}

		if err := v.Unmarshal(c); err != nil {
			return fmt.Errorf("error occurred when unmarshalling config: %+v", err)
		}
		return nil
	}
}

func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// ResolvedTokenizerDir is TokenizerDir, or the pretrained model directory
// when unset.
func (c *Config) ResolvedTokenizerDir() string {
	if c.TokenizerDir != "" {
		return c.TokenizerDir
	}
	return c.PretrainedModel
}
