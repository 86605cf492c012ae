package training_agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/constants"
	"github.com/garr-ai/garr/pkg/evaluation"
	"github.com/garr-ai/garr/pkg/logging"
)

// EpochMetrics summarises one epoch.
type EpochMetrics struct {
	Epoch        int           `json:"epoch"`
	TrainLoss    float64       `json:"train_loss"`
	ValLoss      float64       `json:"val_loss"`
	TrainAcc     float64       `json:"train_acc"`
	ValAcc       float64       `json:"val_acc"`
	LearningRate float64       `json:"learning_rate"`
	Duration     time.Duration `json:"duration"`
}

// String is the Keras style progress line.
func (m EpochMetrics) String() string {
	return fmt.Sprintf("train_loss: %.5f - val_loss: %.5f - train_acc: %.5f - valid_acc: %.5f",
		m.TrainLoss, m.ValLoss, m.TrainAcc, m.ValAcc)
}

// History is the per-epoch record of a run, persisted as metrics.json.
type History struct {
	RunID  string         `json:"run_id"`
	Epochs []EpochMetrics `json:"epochs"`
}

func (h *History) Append(m EpochMetrics) {
	h.Epochs = append(h.Epochs, m)
}

// Write replaces dir/metrics.json.
func (h *History) Write(fs afero.Fs, dir string, log logging.Interface) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return afero.AtomicFileUpdate(fs, dir, constants.MetricsFile, data, 0o644, log)
}

// Curves returns the loss and accuracy curves of the run.
func (h *History) Curves() (loss, acc []evaluation.Curve) {
	trainLoss := make([]float64, len(h.Epochs))
	valLoss := make([]float64, len(h.Epochs))
	trainAcc := make([]float64, len(h.Epochs))
	valAcc := make([]float64, len(h.Epochs))
	for i, m := range h.Epochs {
		trainLoss[i], valLoss[i] = m.TrainLoss, m.ValLoss
		trainAcc[i], valAcc[i] = m.TrainAcc, m.ValAcc
	}
	loss = []evaluation.Curve{{Name: "train", Values: trainLoss}, {Name: "validation", Values: valLoss}}
	acc = []evaluation.Curve{{Name: "train", Values: trainAcc}, {Name: "validation", Values: valAcc}}
	return loss, acc
}
