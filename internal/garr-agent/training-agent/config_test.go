package training_agent

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garr-ai/garr/pkg/constants"
	testingPkg "github.com/garr-ai/garr/pkg/testing"
)

func TestNewTrainingAgentConfig(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
	}{
		{
			name:    "empty config",
			options: []Option{},
		},
		{
			name: "config with logger",
			options: []Option{
				WithAnotherLog(testingPkg.SetupMockLogger()),
			},
		},
		{
			name: "config with viper",
			options: []Option{
				WithViper(viper.New()),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := NewTrainingAgentConfig(tt.options...)
			assert.NoError(t, err)
			require.NotNil(t, config)
			assert.NoError(t, config.Validate())
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	config, err := NewTrainingAgentConfig()
	require.NoError(t, err)

	assert.Equal(t, "data/query_result.csv", config.DataPath)
	assert.Equal(t, "weights", config.OutputDir)
	assert.Equal(t, constants.DefaultLabels, config.Labels)
	assert.Equal(t, 4, config.Epochs)
	assert.Equal(t, 2, config.BatchSize)
	assert.Equal(t, 0.3, config.TestSize)
	assert.Equal(t, int64(42), config.Seed)
	assert.Equal(t, 2e-5, config.Optimizer.LearningRate)
	assert.Equal(t, 1e-8, config.Optimizer.Epsilon)
	assert.Equal(t, 0.9, config.Optimizer.Beta1)
	assert.Equal(t, 0.999, config.Optimizer.Beta2)
	assert.Equal(t, 1.0, config.MaxGradNorm)
	assert.False(t, config.Upload.Enabled())
	assert.Equal(t, "gpt2", config.ResolvedTokenizerDir())
}

func TestConfig_WithViper(t *testing.T) {
	v := viper.New()
	v.Set("data_path", "/data/news.csv")
	v.Set("epochs", 1)
	v.Set("labels", []string{"a", "b"})
	v.Set("optimizer.learning_rate", 1e-4)
	v.Set("upload.bucket", "garr-models")
	v.Set("upload.prefix", "runs/")
	v.Set("upload.timeout", "30s")

	config, err := NewTrainingAgentConfig(WithViper(v))
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	assert.Equal(t, "/data/news.csv", config.DataPath)
	assert.Equal(t, 1, config.Epochs)
	assert.Equal(t, []string{"a", "b"}, config.Labels)
	assert.Equal(t, 1e-4, config.Optimizer.LearningRate)
	// unset optimizer keys keep their defaults
	assert.Equal(t, 1e-8, config.Optimizer.Epsilon)
	assert.True(t, config.Upload.Enabled())
	assert.Equal(t, 30*time.Second, config.Upload.Timeout)
}

func TestConfig_WithViperLabels(t *testing.T) {
	v := viper.New()
	config, err := NewTrainingAgentConfig(WithViper(v))
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultLabels, config.Labels)

	v.Set("labels", []string{"risk", "no risk"})
	config, err = NewTrainingAgentConfig(WithViper(v))
	require.NoError(t, err)
	assert.Equal(t, []string{"risk", "no risk"}, config.Labels)
}

func TestConfig_WithViperEnv(t *testing.T) {
	t.Setenv("GARR_AGENT_EPOCHS", "7")
	t.Setenv("GARR_AGENT_UPLOAD_BUCKET", "env-bucket")

	v := viper.New()
	v.SetEnvPrefix(constants.AgentAppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config, err := NewTrainingAgentConfig(WithViper(v))
	require.NoError(t, err)
	assert.Equal(t, 7, config.Epochs)
	assert.Equal(t, "env-bucket", config.Upload.Bucket)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "no epochs", mutate: func(c *Config) { c.Epochs = 0 }},
		{name: "zero batch size", mutate: func(c *Config) { c.BatchSize = 0 }},
		{name: "test size of one", mutate: func(c *Config) { c.TestSize = 1 }},
		{name: "single label", mutate: func(c *Config) { c.Labels = []string{"delays"} }},
		{name: "duplicate labels", mutate: func(c *Config) { c.Labels = []string{"delays", "delays"} }},
		{name: "zero learning rate", mutate: func(c *Config) { c.Optimizer.LearningRate = 0 }},
		{name: "bad endpoint", mutate: func(c *Config) { c.Upload.Endpoint = "not a url" }},
		{name: "missing data path", mutate: func(c *Config) { c.DataPath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := NewTrainingAgentConfig()
			require.NoError(t, err)
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}
