package gpt2

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garr-ai/garr/pkg/afero"
)

func tinyConfig() Config {
	c := DefaultConfig()
	c.VocabSize = 11
	c.NPositions = 8
	c.NEmbd = 8
	c.NLayer = 2
	c.NHead = 2
	c.InitializerRange = 0.3
	c.BosTokenID = 10
	c.EosTokenID = 10
	return c.WithLabels([]string{"environmental", "commodities", "delays"}, 10)
}

func tinyModel(t *testing.T) *Model {
	t.Helper()
	m, err := New(tinyConfig(), 7)
	require.NoError(t, err)
	// non trivial norms and biases so their gradients are exercised
	for i, tensor := range m.Parameters() {
		for j := range tensor.Data {
			if tensor.Data[j] == 0 {
				tensor.Data[j] = 0.05 * math.Sin(float64(i*31+j))
			} else if tensor.Data[j] == 1 {
				tensor.Data[j] = 1 + 0.1*math.Cos(float64(i*17+j))
			}
		}
	}
	return m
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, tinyConfig().Validate())

	bad := tinyConfig()
	bad.NHead = 3
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = tinyConfig()
	bad.ActivationFunction = "relu"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = tinyConfig()
	bad.ID2Label = map[string]string{"0": "a", "2": "b"}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	c := tinyConfig()
	assert.Equal(t, 3, c.NumLabels())
	assert.Equal(t, []string{"environmental", "commodities", "delays"}, c.Labels())
	assert.Equal(t, 10, c.Pad())
	assert.Equal(t, 32, c.Inner())
}

func TestReadConfig_HubDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/gpt2/config.json",
		[]byte(`{"model_type":"gpt2","n_embd":8,"n_head":2,"n_layer":1,"n_positions":8,"vocab_size":11,"eos_token_id":10,"bos_token_id":10}`), 0o644))

	c, err := ReadConfig(fs, "/gpt2/config.json")
	require.NoError(t, err)
	assert.Equal(t, 1e-5, c.LayerNormEpsilon)
	assert.Equal(t, 2, c.NumLabels())
	assert.Equal(t, 10, c.Pad())

	require.NoError(t, afero.WriteFile(fs, "/bad/config.json", []byte(`{"n_embd":"wide"}`), 0o644))
	_, err = ReadConfig(fs, "/bad/config.json")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_Deterministic(t *testing.T) {
	a, err := New(tinyConfig(), 3)
	require.NoError(t, err)
	b, err := New(tinyConfig(), 3)
	require.NoError(t, err)

	for i := range a.Parameters() {
		assert.Equal(t, a.Parameters()[i].Data, b.Parameters()[i].Data)
	}
	assert.Equal(t, 11*8+8*8+2*(4*8+8*24+24+8*8+8+8*32+32+32*8+8)+2*8+3*8, a.NumParameters())
}

func TestLogits_LeftPaddingInvariance(t *testing.T) {
	m := tinyModel(t)
	ctx := context.Background()

	plain, err := m.Logits(ctx, [][]int{{3, 4, 5}}, nil)
	require.NoError(t, err)

	padded, err := m.Logits(ctx,
		[][]int{{10, 10, 3, 4, 5}, {1, 2, 3, 4, 5}},
		[][]int{{0, 0, 1, 1, 1}, {1, 1, 1, 1, 1}})
	require.NoError(t, err)

	assert.Equal(t, plain[0], padded[0])
	assert.NotEqual(t, plain[0], padded[1])

	label, logits, err := m.Predict(ctx, []int{3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, plain[0], logits)
	assert.GreaterOrEqual(t, logits[label], logits[0])
}

func TestLogits_Errors(t *testing.T) {
	m := tinyModel(t)

	_, err := m.Logits(context.Background(), [][]int{{11}}, nil)
	assert.ErrorContains(t, err, "outside vocabulary")

	_, err = m.Logits(context.Background(), [][]int{{1, 1, 1, 1, 1, 1, 1, 1, 1}}, nil)
	assert.ErrorContains(t, err, "exceeds n_positions")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Logits(ctx, [][]int{{1}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForwardBackward_GradientCheck(t *testing.T) {
	m := tinyModel(t)
	m.EnableGrad()
	ctx := context.Background()

	ids := [][]int{{10, 1, 2, 3}, {4, 5, 6, 7}}
	mask := [][]int{{0, 1, 1, 1}, {1, 1, 1, 1}}
	labels := []int{2, 0}
	weights := []float64{0.5, 1.5, 2.0}

	_, _, err := m.ForwardBackward(ctx, ids, mask, labels, weights)
	require.NoError(t, err)

	lossAt := func() float64 {
		logits, err := m.Logits(ctx, ids, mask)
		require.NoError(t, err)
		loss, _, err := WeightedCrossEntropy(logits, labels, weights)
		require.NoError(t, err)
		return loss
	}

	const eps = 1e-5
	checked := 0
	for _, tensor := range m.Parameters() {
		step := len(tensor.Data)/5 + 1
		for j := 0; j < len(tensor.Data); j += step {
			orig := tensor.Data[j]
			tensor.Data[j] = orig + eps
			plus := lossAt()
			tensor.Data[j] = orig - eps
			minus := lossAt()
			tensor.Data[j] = orig

			numeric := (plus - minus) / (2 * eps)
			analytic := tensor.Grad[j]
			assert.InDelta(t, numeric, analytic, 1e-6+1e-4*math.Abs(numeric), "%s[%d]", tensor.Name, j)
			checked++
		}
	}
	assert.Greater(t, checked, 50)

	// a token that never occurs receives no embedding gradient
	for _, g := range m.p.wte.gradRow(8) {
		assert.Zero(t, g)
	}

	m.ZeroGrad()
	for _, g := range m.p.score.Grad {
		assert.Zero(t, g)
	}
}

func TestForwardBackward_RequiresGrad(t *testing.T) {
	m := tinyModel(t)
	_, _, err := m.ForwardBackward(context.Background(), [][]int{{1}}, nil, []int{0}, nil)
	assert.ErrorContains(t, err, "not enabled")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := tinyModel(t)
	require.NoError(t, m.SavePretrained(fs, "/weights/epoch_1"))

	loaded, err := LoadPretrained(fs, "/weights/epoch_1")
	require.NoError(t, err)
	assert.Equal(t, m.Config.Labels(), loaded.Config.Labels())

	ctx := context.Background()
	batch := [][]int{{1, 2, 3}, {9, 8}}
	want, err := m.Logits(ctx, batch, nil)
	require.NoError(t, err)
	got, err := loaded.Logits(ctx, batch, nil)
	require.NoError(t, err)
	for i := range want {
		assert.InDeltaSlice(t, want[i], got[i], 1e-4)
	}

	var raw map[string]interface{}
	data, err := afero.ReadFile(fs, "/weights/epoch_1/config.json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []interface{}{"GPT2ForSequenceClassification"}, raw["architectures"])
	assert.Equal(t, float64(10), raw["pad_token_id"])
}

func TestLoadPretrained_HubCheckpoint(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := tinyModel(t)

	// hub GPT2Model layout: unprefixed names, attention bias buffers, no head
	var tensors []*Tensor
	for _, tensor := range src.Parameters() {
		if tensor.Name == "score.weight" {
			continue
		}
		renamed := *tensor
		renamed.Name = tensor.Name[len("transformer."):]
		tensors = append(tensors, &renamed)
	}
	tensors = append(tensors, &Tensor{Name: "h.0.attn.bias", Shape: []int{1, 1, 8, 8}, Data: make([]float64, 64)})

	var buf bytes.Buffer
	require.NoError(t, WriteSafetensors(&buf, tensors, nil))
	require.NoError(t, afero.WriteFile(fs, "/gpt2/model.safetensors", buf.Bytes(), 0o644))

	hubConfig := src.Config
	hubConfig.ID2Label, hubConfig.Label2ID, hubConfig.Architectures, hubConfig.PadTokenID = nil, nil, nil, nil
	data, err := hubConfig.marshal()
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/gpt2/config.json", data, 0o644))

	_, err = LoadPretrained(fs, "/gpt2")
	assert.ErrorIs(t, err, ErrMissingTensor)

	labels := []string{"a", "b", "c", "d"}
	m, err := LoadPretrained(fs, "/gpt2", WithLabels(labels, 10), WithSeed(1))
	require.NoError(t, err)
	assert.Equal(t, labels, m.Config.Labels())
	assert.Equal(t, []int{4, 8}, m.p.score.Shape)
	assert.InDeltaSlice(t, src.p.wte.Data, m.p.wte.Data, 1e-6)
}

func TestReadSafetensors_HalfPrecision(t *testing.T) {
	header := []byte(`{"__metadata__":{"format":"pt"},"a":{"dtype":"F16","shape":[3],"data_offsets":[0,6]},"b":{"dtype":"BF16","shape":[1],"data_offsets":[6,8]},"c":{"dtype":"I64","shape":[1],"data_offsets":[8,16]}}`)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(header))))
	buf.Write(header)
	for _, h := range []uint16{0x3C00, 0xC000, 0x3800, 0x3F80} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, h))
	}
	buf.Write(make([]byte, 8))

	tensors, err := ReadSafetensors(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2, 0.5}, tensors["a"].Data)
	assert.Equal(t, []float64{1}, tensors["b"].Data)
	assert.NotContains(t, tensors, "c")
}

func TestReadSafetensors_InvalidOffsets(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		wantErr string
	}{
		{
			name:    "size mismatch",
			header:  `{"a":{"dtype":"F32","shape":[2],"data_offsets":[0,4]}}`,
			wantErr: "invalid data offsets",
		},
		{
			name:    "begin after end",
			header:  `{"a":{"dtype":"F32","shape":[0],"data_offsets":[4,0]}}`,
			wantErr: "invalid data offsets",
		},
		{
			name:    "negative dim",
			header:  `{"a":{"dtype":"F32","shape":[-1],"data_offsets":[4,0]}}`,
			wantErr: "invalid shape",
		},
		{
			name:    "negative dims cancel out",
			header:  `{"a":{"dtype":"F32","shape":[-1,-2],"data_offsets":[0,8]}}`,
			wantErr: "invalid shape",
		},
		{
			name:    "larger than the file",
			header:  `{"a":{"dtype":"F32","shape":[4611686018427387904,4],"data_offsets":[0,8]}}`,
			wantErr: "invalid shape",
		},
		{
			name:    "past the end",
			header:  `{"a":{"dtype":"F32","shape":[4],"data_offsets":[0,16]}}`,
			wantErr: "invalid data offsets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(tt.header))))
			buf.WriteString(tt.header)
			buf.Write(make([]byte, 8))

			_, err := ReadSafetensors(&buf)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestWeightedCrossEntropy(t *testing.T) {
	loss, grads, err := WeightedCrossEntropy([][]float64{{0, 0}}, []int{0}, nil)
	require.NoError(t, err)
	assert.InDelta(t, math.Ln2, loss, 1e-12)
	assert.InDeltaSlice(t, []float64{-0.5, 0.5}, grads[0], 1e-12)

	// weights only reweigh rows: equal weights reproduce the plain mean
	logits := [][]float64{{1, 2, 0}, {0.5, -1, 3}}
	plain, _, err := WeightedCrossEntropy(logits, []int{0, 2}, nil)
	require.NoError(t, err)
	scaled, _, err := WeightedCrossEntropy(logits, []int{0, 2}, []float64{3, 3, 3})
	require.NoError(t, err)
	assert.InDelta(t, plain, scaled, 1e-12)

	_, _, err = WeightedCrossEntropy(logits, []int{0, 1}, []float64{0, 0, 1})
	assert.ErrorContains(t, err, "zero")

	_, _, err = WeightedCrossEntropy(logits, []int{0, 5}, nil)
	assert.ErrorContains(t, err, "out of range")

	assert.Equal(t, 1.0, Accuracy(logits, []int{1, 2}))
	assert.Equal(t, 0.5, Accuracy(logits, []int{1, 0}))
	assert.Equal(t, 0.0, Accuracy(logits, []int{0, 1}))
}
