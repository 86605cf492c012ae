package serving_agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/gpt2/gpt2test"
	"github.com/garr-ai/garr/pkg/tokenizer/tokenizertest"
)

var testLabels = []string{"environmental", "commodities", "delays"}

func newTestPredictor(t *testing.T, maxLength int) *Predictor {
	t.Helper()
	model := gpt2test.Model(t, testLabels)
	return NewPredictor(model, tokenizertest.Bytes{Vocab: gpt2test.Vocab}, maxLength, DeviceCPU)
}

func TestNewPredictor_MaxLength(t *testing.T) {
	assert.Equal(t, 8, newTestPredictor(t, 0).MaxLength())
	assert.Equal(t, 8, newTestPredictor(t, 100).MaxLength())
	assert.Equal(t, 4, newTestPredictor(t, 4).MaxLength())
}

func TestPredictor_Predict(t *testing.T) {
	p := newTestPredictor(t, 0)
	ctx := context.Background()

	label, err := p.Predict(ctx, "supply chain disruption")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, label, 0)
	assert.Less(t, label, len(testLabels))

	again, err := p.Predict(ctx, "supply chain disruption")
	require.NoError(t, err)
	assert.Equal(t, label, again)

	// longer than the model context, truncated rather than rejected
	_, err = p.Predict(ctx, strings.Repeat("omicron ", 50))
	assert.NoError(t, err)
}

func TestPredictor_LabelName(t *testing.T) {
	p := newTestPredictor(t, 0)

	assert.Equal(t, "delays", p.LabelName(2))
	assert.Equal(t, "LABEL_7", p.LabelName(7))
}

func TestLoadPredictor_MissingFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	config, err := NewServingAgentConfig()
	require.NoError(t, err)
	config.ModelDir = "/weights/epoch_1"

	_, err = LoadPredictor(fs, config)
	assert.ErrorContains(t, err, "loading model")

	require.NoError(t, gpt2test.Model(t, testLabels).SavePretrained(fs, config.ModelDir))
	_, err = LoadPredictor(fs, config)
	assert.ErrorContains(t, err, "loading tokenizer")
}
