package serving_agent

import (
	"context"
	"fmt"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/gpt2"
	"github.com/garr-ai/garr/pkg/tokenizer"
)

// Predictor holds the immutable model context shared by all requests.
type Predictor struct {
	model     *gpt2.Model
	tokenizer tokenizer.Tokenizer
	maxLength int
	device    string
	labels    []string
}

// NewPredictor clamps maxLength to the model context; 0 selects the full
// context.
func NewPredictor(model *gpt2.Model, tok tokenizer.Tokenizer, maxLength int, device string) *Predictor {
	if maxLength <= 0 || maxLength > model.Config.NPositions {
		maxLength = model.Config.NPositions
	}
	return &Predictor{
		model:     model,
		tokenizer: tok,
		maxLength: maxLength,
		device:    device,
		labels:    model.Config.Labels(),
	}
}

// LoadPredictor reads the model and its tokenizer from the model directory.
// Missing files fail startup.
func LoadPredictor(fs afero.Fs, config *Config) (*Predictor, error) {
	model, err := gpt2.LoadPretrained(fs, config.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("loading model from %s: %w", config.ModelDir, err)
	}
	tok, err := tokenizer.LoadGPT2(fs, config.ResolvedTokenizerDir())
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer from %s: %w", config.ResolvedTokenizerDir(), err)
	}
	return NewPredictor(model, tok, config.MaxLength, config.ResolveDevice()), nil
}

// Predict returns the class index of text.
func (p *Predictor) Predict(ctx context.Context, text string) (int, error) {
	ids := tokenizer.EncodeTruncated(p.tokenizer, text, p.maxLength)
	label, _, err := p.model.Predict(ctx, ids)
	if err != nil {
		return 0, err
	}
	return label, nil
}

// LabelName returns the configured name of a class index.
func (p *Predictor) LabelName(label int) string {
	if label < 0 || label >= len(p.labels) {
		return fmt.Sprintf("LABEL_%d", label)
	}
	return p.labels[label]
}

func (p *Predictor) Device() string { return p.device }

func (p *Predictor) MaxLength() int { return p.maxLength }
