// Package gpt2 implements GPT-2 for sequence classification on gonum dense
// matrices: Hugging Face config.json and safetensors checkpoints, inference,
// and the backward pass used for fine-tuning.
package gpt2

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/rand"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/constants"
)

// Model is a GPT-2 transformer with a bias free classification head. A Model
// is safe for concurrent inference; gradient methods must not run
// concurrently with anything else.
type Model struct {
	Config Config
	p      *params
}

// New builds a randomly initialised model. Weights follow the GPT-2 scheme:
// N(0, initializer_range) for matrices and embeddings, scaled down by
// sqrt(2*n_layer) for residual projections, zero biases and unit norms.
func New(config Config, seed int64) (*Model, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	m := &Model{Config: config, p: newParams(config)}

	rng := rand.New(rand.NewSource(seed))
	std := config.InitializerRange
	if std <= 0 {
		std = 0.02
	}
	residualStd := std / math.Sqrt(2*float64(config.NLayer))

	normal := func(t *Tensor, s float64) {
		for i := range t.Data {
			t.Data[i] = rng.NormFloat64() * s
		}
	}
	ones := func(t *Tensor) {
		for i := range t.Data {
			t.Data[i] = 1
		}
	}

	normal(m.p.wte, std)
	normal(m.p.wpe, std)
	for _, b := range m.p.blocks {
		ones(b.ln1.weight)
		ones(b.ln2.weight)
		normal(b.attn.weight, std)
		normal(b.attnProj.weight, residualStd)
		normal(b.fc.weight, std)
		normal(b.mlpProj.weight, residualStd)
	}
	ones(m.p.lnF.weight)
	normal(m.p.score, std)
	return m, nil
}

// Parameters returns every weight in checkpoint order.
func (m *Model) Parameters() []*Tensor {
	return m.p.all
}

// NumParameters counts scalar weights.
func (m *Model) NumParameters() int {
	n := 0
	for _, t := range m.p.all {
		n += len(t.Data)
	}
	return n
}

// EnableGrad allocates gradient buffers. Inference only models never call it.
func (m *Model) EnableGrad() {
	for _, t := range m.p.all {
		if t.Grad == nil {
			t.Grad = make([]float64, len(t.Data))
		}
	}
}

// ZeroGrad resets accumulated gradients.
func (m *Model) ZeroGrad() {
	for _, t := range m.p.all {
		for i := range t.Grad {
			t.Grad[i] = 0
		}
	}
}

// LoadOption customises LoadPretrained.
type LoadOption func(*loadOptions)

type loadOptions struct {
	labels []string
	padID  *int
	seed   int64
}

// WithLabels re-targets the classification head to labels. A stored score
// head of a different shape is replaced by a fresh one.
func WithLabels(labels []string, padID int) LoadOption {
	return func(o *loadOptions) {
		o.labels = labels
		o.padID = &padID
	}
}

// WithSeed seeds the initialisation of weights absent from the checkpoint.
func WithSeed(seed int64) LoadOption {
	return func(o *loadOptions) {
		o.seed = seed
	}
}

// LoadPretrained reads dir/config.json and dir/model.safetensors. Both
// sequence-classification checkpoints and bare hub checkpoints (no
// "transformer." prefix, no score head) are accepted; the latter require
// WithLabels.
func LoadPretrained(fs afero.Fs, dir string, opts ...LoadOption) (*Model, error) {
	o := loadOptions{seed: constants.DefaultSeed}
	for _, opt := range opts {
		opt(&o)
	}

	config, err := ReadConfig(fs, filepath.Join(dir, constants.ModelConfigFile))
	if err != nil {
		return nil, err
	}
	if o.labels != nil {
		config = config.WithLabels(o.labels, *o.padID)
		if err := config.Validate(); err != nil {
			return nil, err
		}
	}

	weightsPath := filepath.Join(dir, constants.ModelWeightsFile)
	f, err := fs.Open(weightsPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening model weights")
	}
	defer func() { _ = f.Close() }()

	stored, err := ReadSafetensors(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", weightsPath)
	}

	m, err := New(config, o.seed)
	if err != nil {
		return nil, err
	}
	if err := m.assign(stored, o.labels != nil); err != nil {
		return nil, err
	}
	return m, nil
}

// canonicalName maps hub GPT2Model names onto sequence-classification names.
// The empty string marks tensors the model does not use.
func canonicalName(name string) string {
	if strings.HasSuffix(name, ".attn.bias") || strings.HasSuffix(name, ".attn.masked_bias") {
		return ""
	}
	if strings.HasPrefix(name, "transformer.") || name == "score.weight" {
		return name
	}
	for _, prefix := range []string{"wte.", "wpe.", "h.", "ln_f."} {
		if strings.HasPrefix(name, prefix) {
			return "transformer." + name
		}
	}
	return ""
}

func (m *Model) assign(stored map[string]StoredTensor, headOptional bool) error {
	byName := make(map[string]StoredTensor, len(stored))
	for _, name := range sortedNames(stored) {
		if canonical := canonicalName(name); canonical != "" {
			byName[canonical] = stored[name]
		}
	}

	for _, t := range m.p.all {
		st, ok := byName[t.Name]
		isHead := t == m.p.score
		switch {
		case isHead && headOptional && (!ok || !t.sameShape(st.Shape)):
			continue
		case !ok:
			return fmt.Errorf("%w: %s", ErrMissingTensor, t.Name)
		case !t.sameShape(st.Shape):
			return fmt.Errorf("%w: tensor %s has shape %v, config expects %v", ErrInvalidConfig, t.Name, st.Shape, t.Shape)
		}
		copy(t.Data, st.Data)
	}
	return nil
}

// SavePretrained writes dir/config.json and dir/model.safetensors, each
// atomically.
func (m *Model) SavePretrained(fs afero.Fs, dir string) error {
	configJSON, err := m.Config.marshal()
	if err != nil {
		return errors.Wrap(err, "encoding model config")
	}
	if _, err := afero.AtomicWriteFrom(fs, filepath.Join(dir, constants.ModelConfigFile), bytes.NewReader(configJSON), 0o644); err != nil {
		return err
	}

	pr, pw := io.Pipe()
	go func() {
		_ = pw.CloseWithError(WriteSafetensors(pw, m.p.all, map[string]string{"format": "pt"}))
	}()
	_, err = afero.AtomicWriteFrom(fs, filepath.Join(dir, constants.ModelWeightsFile), pr, 0o644)
	_ = pr.CloseWithError(err)
	return err
}
