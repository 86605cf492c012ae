package training_agent

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garr-ai/garr/pkg/afero"
	testingPkg "github.com/garr-ai/garr/pkg/testing"
)

func TestEpochMetrics_String(t *testing.T) {
	m := EpochMetrics{TrainLoss: 1.234567, ValLoss: 0.5, TrainAcc: 0.25, ValAcc: 1}

	assert.Equal(t, "train_loss: 1.23457 - val_loss: 0.50000 - train_acc: 0.25000 - valid_acc: 1.00000", m.String())
}

func TestHistory_Write(t *testing.T) {
	fs := afero.NewMemMapFs()
	h := &History{RunID: "run"}
	h.Append(EpochMetrics{Epoch: 1, TrainLoss: 1, Duration: time.Second})

	require.NoError(t, h.Write(fs, "/weights", testingPkg.SetupMockLogger()))
	h.Append(EpochMetrics{Epoch: 2, TrainLoss: 0.5})
	require.NoError(t, h.Write(fs, "/weights", testingPkg.SetupMockLogger()))

	data, err := afero.ReadFile(fs, "/weights/metrics.json")
	require.NoError(t, err)
	var got History
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, *h, got)
}

func TestHistory_Curves(t *testing.T) {
	h := &History{}
	h.Append(EpochMetrics{Epoch: 1, TrainLoss: 1, ValLoss: 2, TrainAcc: 0.1, ValAcc: 0.2})
	h.Append(EpochMetrics{Epoch: 2, TrainLoss: 0.5, ValLoss: 1.5, TrainAcc: 0.3, ValAcc: 0.4})

	loss, acc := h.Curves()
	require.Len(t, loss, 2)
	require.Len(t, acc, 2)
	assert.Equal(t, []float64{1, 0.5}, loss[0].Values)
	assert.Equal(t, []float64{2, 1.5}, loss[1].Values)
	assert.Equal(t, "validation", acc[1].Name)
	assert.Equal(t, []float64{0.2, 0.4}, acc[1].Values)
}
