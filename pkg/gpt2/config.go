package gpt2

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/garr-ai/garr/pkg/afero"
)

const (
	architecture = "GPT2ForSequenceClassification"
	modelType    = "gpt2"
)

// Config mirrors the fields of a Hugging Face GPT2Config the model uses.
// Labels travel in ID2Label/Label2ID, the number of labels is derived from
// them.
type Config struct {
	Architectures      []string          `json:"architectures,omitempty"`
	ModelType          string            `json:"model_type"`
	VocabSize          int               `json:"vocab_size"`
	NPositions         int               `json:"n_positions"`
	NEmbd              int               `json:"n_embd"`
	NLayer             int               `json:"n_layer"`
	NHead              int               `json:"n_head"`
	NInner             *int              `json:"n_inner"`
	ActivationFunction string            `json:"activation_function"`
	LayerNormEpsilon   float64           `json:"layer_norm_epsilon"`
	InitializerRange   float64           `json:"initializer_range"`
	BosTokenID         int               `json:"bos_token_id"`
	EosTokenID         int               `json:"eos_token_id"`
	PadTokenID         *int              `json:"pad_token_id"`
	ID2Label           map[string]string `json:"id2label,omitempty"`
	Label2ID           map[string]int    `json:"label2id,omitempty"`
}

// DefaultConfig returns the GPT-2 small hyper parameters.
func DefaultConfig() Config {
	return Config{
		ModelType:          modelType,
		VocabSize:          50257,
		NPositions:         1024,
		NEmbd:              768,
		NLayer:             12,
		NHead:              12,
		ActivationFunction: "gelu_new",
		LayerNormEpsilon:   1e-5,
		InitializerRange:   0.02,
		BosTokenID:         50256,
		EosTokenID:         50256,
	}
}

// Inner is the width of the MLP hidden layer.
func (c Config) Inner() int {
	if c.NInner != nil && *c.NInner > 0 {
		return *c.NInner
	}
	return 4 * c.NEmbd
}

// NumLabels is the number of classification labels, 2 when none are set.
func (c Config) NumLabels() int {
	if len(c.ID2Label) == 0 {
		return 2
	}
	return len(c.ID2Label)
}

// Pad returns the pad token id, falling back to eos.
func (c Config) Pad() int {
	if c.PadTokenID != nil {
		return *c.PadTokenID
	}
	return c.EosTokenID
}

// Labels returns label names ordered by id. Missing names render as
// LABEL_<id>.
func (c Config) Labels() []string {
	labels := make([]string, c.NumLabels())
	for i := range labels {
		if name, ok := c.ID2Label[strconv.Itoa(i)]; ok {
			labels[i] = name
		} else {
			labels[i] = fmt.Sprintf("LABEL_%d", i)
		}
	}
	return labels
}

// WithLabels returns a copy of c configured for classification over labels.
func (c Config) WithLabels(labels []string, padID int) Config {
	c.Architectures = []string{architecture}
	c.ID2Label = make(map[string]string, len(labels))
	c.Label2ID = make(map[string]int, len(labels))
	for i, name := range labels {
		c.ID2Label[strconv.Itoa(i)] = name
		c.Label2ID[name] = i
	}
	c.PadTokenID = &padID
	return c
}

func (c Config) Validate() error {
	switch {
	case c.VocabSize <= 0, c.NPositions <= 0, c.NEmbd <= 0, c.NLayer <= 0, c.NHead <= 0:
		return fmt.Errorf("%w: dimensions must be positive", ErrInvalidConfig)
	case c.NEmbd%c.NHead != 0:
		return fmt.Errorf("%w: n_embd %d is not divisible by n_head %d", ErrInvalidConfig, c.NEmbd, c.NHead)
	case c.LayerNormEpsilon <= 0:
		return fmt.Errorf("%w: layer_norm_epsilon must be positive", ErrInvalidConfig)
	}

	switch c.ActivationFunction {
	case "", "gelu_new", "gelu_pytorch_tanh":
	default:
		return fmt.Errorf("%w: unsupported activation %q", ErrInvalidConfig, c.ActivationFunction)
	}

	if pad := c.Pad(); pad < 0 || pad >= c.VocabSize {
		return fmt.Errorf("%w: pad token %d outside vocabulary", ErrInvalidConfig, pad)
	}

	ids := make([]int, 0, len(c.ID2Label))
	for key := range c.ID2Label {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("%w: id2label key %q is not an integer", ErrInvalidConfig, key)
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for i, id := range ids {
		if i != id {
			return fmt.Errorf("%w: id2label ids must be 0..%d", ErrInvalidConfig, len(ids)-1)
		}
	}
	return nil
}

// ReadConfig loads and validates a config.json.
func ReadConfig(fs afero.Fs, path string) (Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, fmt.Errorf("reading model config: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) marshal() ([]byte, error) {
	if c.ModelType == "" {
		c.ModelType = modelType
	}
	return json.MarshalIndent(c, "", "  ")
}
