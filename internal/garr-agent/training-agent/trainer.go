package training_agent

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/garr-ai/garr/pkg/dataset"
	"github.com/garr-ai/garr/pkg/gpt2"
	"github.com/garr-ai/garr/pkg/logging"
	"github.com/garr-ai/garr/pkg/optim"
)

// Trainer runs epochs of weighted cross entropy fine-tuning over fixed
// train and validation loaders.
type Trainer struct {
	logger      logging.Interface
	model       *gpt2.Model
	optimizer   *optim.AdamW
	schedule    optim.LinearSchedule
	weights     []float64
	train       *dataset.Loader
	validation  *dataset.Loader
	maxGradNorm float64
	lastLR      float64
}

func NewTrainer(
	model *gpt2.Model,
	train, validation *dataset.Loader,
	weights []float64,
	config *Config,
) *Trainer {
	model.EnableGrad()
	return &Trainer{
		logger:     config.AnotherLogger,
		model:      model,
		optimizer:  optim.NewAdamW(model.Parameters(), config.Optimizer),
		weights:    weights,
		train:      train,
		validation: validation,
		schedule: optim.LinearSchedule{
			Base:   config.Optimizer.LearningRate,
			Warmup: config.WarmupSteps,
			Total:  train.Len() * config.Epochs,
		},
		maxGradNorm: config.MaxGradNorm,
	}
}

// TrainEpoch makes one shuffled pass over the training split and returns
// the mean batch loss and accuracy.
func (t *Trainer) TrainEpoch(ctx context.Context, epoch int) (loss, acc float64, err error) {
	batches := t.train.Batches()
	for step, batch := range batches {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		t.model.ZeroGrad()
		batchLoss, logits, err := t.model.ForwardBackward(ctx, batch.InputIDs, batch.AttentionMask, batch.Labels, t.weights)
		if err != nil {
			return 0, 0, fmt.Errorf("epoch %d step %d: %w", epoch, step+1, err)
		}
		if math.IsNaN(batchLoss) || math.IsInf(batchLoss, 0) {
			return 0, 0, fmt.Errorf("epoch %d step %d: loss is not finite (%v)", epoch, step+1, batchLoss)
		}

		norm := optim.ClipGradNorm(t.model.Parameters(), t.maxGradNorm)
		t.lastLR = t.schedule.At(t.optimizer.Steps())
		t.optimizer.Step(t.lastLR)

		loss += batchLoss
		acc += gpt2.Accuracy(logits, batch.Labels)

		t.logger.Debugf("epoch %d step %d/%d loss %.5f running loss %.5f grad norm %.4f lr %.3g",
			epoch, step+1, len(batches), batchLoss, loss/float64(step+1), norm, t.lastLR)
	}
	if len(batches) == 0 {
		return 0, 0, nil
	}
	return loss / float64(len(batches)), acc / float64(len(batches)), nil
}

// Prediction holds the validation labels and arg-max predictions.
type Prediction struct {
	Truth     []int
	Predicted []int
}

// Validate makes one pass over the validation split without gradients and
// returns the mean batch loss and accuracy. The class weights only apply to
// training, validation loss is the plain cross entropy.
func (t *Trainer) Validate(ctx context.Context) (loss, acc float64, pred Prediction, err error) {
	batches := t.validation.Batches()
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return 0, 0, Prediction{}, err
		}

		logits, err := t.model.Logits(ctx, batch.InputIDs, batch.AttentionMask)
		if err != nil {
			return 0, 0, Prediction{}, err
		}
		batchLoss, _, err := gpt2.WeightedCrossEntropy(logits, batch.Labels, nil)
		if err != nil {
			return 0, 0, Prediction{}, err
		}

		loss += batchLoss
		acc += gpt2.Accuracy(logits, batch.Labels)
		for i, z := range logits {
			pred.Truth = append(pred.Truth, batch.Labels[i])
			pred.Predicted = append(pred.Predicted, floats.MaxIdx(z))
		}
	}
	if len(batches) == 0 {
		return 0, 0, pred, nil
	}
	return loss / float64(len(batches)), acc / float64(len(batches)), pred, nil
}

// LearningRate is the rate of the most recent optimizer step.
func (t *Trainer) LearningRate() float64 { return t.lastLR }
