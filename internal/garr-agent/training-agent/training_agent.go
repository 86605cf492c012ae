package training_agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/constants"
	"github.com/garr-ai/garr/pkg/dataset"
	"github.com/garr-ai/garr/pkg/evaluation"
	"github.com/garr-ai/garr/pkg/gpt2"
	"github.com/garr-ai/garr/pkg/logging"
	"github.com/garr-ai/garr/pkg/tokenizer"
)

type TrainingAgent struct {
	logger    logging.Interface
	Config    Config
	model     *gpt2.Model
	tokenizer tokenizer.Tokenizer
	uploader  Uploader
	runID     string
}

// NewTrainingAgent wires a loaded base model and tokenizer. uploader may be
// nil, which disables uploads.
func NewTrainingAgent(config *Config, model *gpt2.Model, tok tokenizer.Tokenizer, uploader Uploader) (*TrainingAgent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &TrainingAgent{
		logger:    config.AnotherLogger,
		Config:    *config,
		model:     model,
		tokenizer: tok,
		uploader:  uploader,
		runID:     uuid.NewString(),
	}, nil
}

// LoadBase reads the tokenizer and the pretrained model, re-targeting its
// classification head to the configured labels.
func LoadBase(fs afero.Fs, config *Config) (*gpt2.Model, tokenizer.Tokenizer, error) {
	tok, err := tokenizer.LoadGPT2(fs, config.ResolvedTokenizerDir())
	if err != nil {
		return nil, nil, fmt.Errorf("loading tokenizer: %w", err)
	}
	model, err := gpt2.LoadPretrained(fs, config.PretrainedModel,
		gpt2.WithLabels(config.Labels, tok.PadTokenID()),
		gpt2.WithSeed(config.Seed),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("loading pretrained model %s: %w", config.PretrainedModel, err)
	}
	return model, tok, nil
}

// Start trains until all epochs are done. SIGINT and SIGTERM stop the run
// between batches.
func (a *TrainingAgent) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}

// Run executes the whole fine-tuning run.
func (a *TrainingAgent) Run(ctx context.Context) error {
	c := &a.Config
	a.logger.WithField("run_id", a.runID).Infof("Starting training run on %s", c.DataPath)

	if err := a.checkOutputDir(); err != nil {
		return err
	}

	labels, err := dataset.NewLabelSet(c.Labels)
	if err != nil {
		return err
	}
	split, err := a.loadSplit(labels)
	if err != nil {
		return err
	}

	weights := dataset.BalancedClassWeights(split.Train, labels.Len())
	a.logger.Infof("Train examples %d, validation examples %d, class weights %v",
		len(split.Train), len(split.Test), weights)

	collator := dataset.Collator{Tokenizer: a.tokenizer, MaxLen: a.maxLength()}
	train := dataset.NewLoader(split.Train, c.BatchSize, collator, rand.New(rand.NewSource(c.Seed)))
	validation := dataset.NewLoader(split.Test, c.BatchSize, collator, nil)
	trainer := NewTrainer(a.model, train, validation, weights, c)

	history := &History{RunID: a.runID}
	for epoch := 1; epoch <= c.Epochs; epoch++ {
		start := time.Now()

		trainLoss, trainAcc, err := trainer.TrainEpoch(ctx, epoch)
		if err != nil {
			return err
		}
		valLoss, valAcc, _, err := trainer.Validate(ctx)
		if err != nil {
			return fmt.Errorf("validating epoch %d: %w", epoch, err)
		}

		m := EpochMetrics{
			Epoch:        epoch,
			TrainLoss:    trainLoss,
			ValLoss:      valLoss,
			TrainAcc:     trainAcc,
			ValAcc:       valAcc,
			LearningRate: trainer.LearningRate(),
			Duration:     time.Since(start),
		}
		history.Append(m)
		a.logger.Infof("Epoch %d/%d - %s", epoch, c.Epochs, m)

		dir, err := a.saveCheckpoint(epoch)
		if err != nil {
			return err
		}
		if err := history.Write(c.Fs, c.OutputDir, a.logger); err != nil {
			return fmt.Errorf("writing metrics history: %w", err)
		}
		if a.uploader != nil {
			if err := a.uploader.UploadDir(ctx, dir, constants.CheckpointDirName(epoch)); err != nil {
				return fmt.Errorf("uploading epoch %d: %w", epoch, err)
			}
		}
	}

	_, _, pred, err := trainer.Validate(ctx)
	if err != nil {
		return fmt.Errorf("final evaluation: %w", err)
	}
	files, err := a.writeReports(pred, labels, history)
	if err != nil {
		return err
	}
	if a.uploader != nil {
		for _, name := range files {
			if err := a.uploader.UploadFile(ctx, filepath.Join(c.OutputDir, name), name); err != nil {
				return err
			}
		}
	}

	a.logger.WithField("run_id", a.runID).Infof("Training finished, checkpoints in %s", c.OutputDir)
	return nil
}

func (a *TrainingAgent) maxLength() int {
	n := a.model.Config.NPositions
	if a.Config.MaxLength > 0 && a.Config.MaxLength < n {
		return a.Config.MaxLength
	}
	return n
}

// checkOutputDir refuses to start when any checkpoint of the run exists.
func (a *TrainingAgent) checkOutputDir() error {
	for epoch := 1; epoch <= a.Config.Epochs; epoch++ {
		dir := filepath.Join(a.Config.OutputDir, constants.CheckpointDirName(epoch))
		exists, err := afero.Exists(a.Config.Fs, dir)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("checkpoint directory %s already exists", dir)
		}
	}
	return nil
}

func (a *TrainingAgent) loadSplit(labels dataset.LabelSet) (dataset.Split, error) {
	records, err := dataset.ReadCSV(a.Config.Fs, a.Config.DataPath)
	if err != nil {
		return dataset.Split{}, err
	}
	examples, err := dataset.Prepare(records, labels)
	if err != nil {
		return dataset.Split{}, err
	}
	a.logger.Infof("Read %d records, %d after de-duplication", len(records), len(examples))

	return dataset.StratifiedSplit(examples, a.Config.TestSize, a.Config.Seed)
}

// saveCheckpoint writes the model and the tokenizer files next to it so the
// directory is servable on its own.
func (a *TrainingAgent) saveCheckpoint(epoch int) (string, error) {
	fs := a.Config.Fs
	dir := filepath.Join(a.Config.OutputDir, constants.CheckpointDirName(epoch))
	if err := a.model.SavePretrained(fs, dir); err != nil {
		return "", fmt.Errorf("saving checkpoint %s: %w", dir, err)
	}

	for _, name := range []string{constants.VocabFile, constants.MergesFile} {
		src := filepath.Join(a.Config.ResolvedTokenizerDir(), name)
		data, err := afero.ReadFile(fs, src)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		if err := afero.AtomicFileUpdate(fs, dir, name, data, 0o644, a.logger); err != nil {
			return "", err
		}
	}

	a.logger.Infof("Saved checkpoint %s", dir)
	return dir, nil
}

// writeReports writes the evaluation report and the training curves and
// returns their file names.
func (a *TrainingAgent) writeReports(pred Prediction, labels dataset.LabelSet, history *History) ([]string, error) {
	fs, dir := a.Config.Fs, a.Config.OutputDir

	report, err := evaluation.Evaluate(pred.Truth, pred.Predicted, labels.Names())
	if err != nil {
		return nil, fmt.Errorf("evaluating: %w", err)
	}
	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, err
	}
	var table bytes.Buffer
	if err := report.Render(&table); err != nil {
		return nil, err
	}
	a.logger.Infof("Classification report:\n%s", table.String())

	lossCurves, accCurves := history.Curves()
	var lossPNG, accPNG bytes.Buffer
	if err := evaluation.PlotCurves(&lossPNG, "Loss", "loss", lossCurves...); err != nil {
		return nil, err
	}
	if err := evaluation.PlotCurves(&accPNG, "Accuracy", "accuracy", accCurves...); err != nil {
		return nil, err
	}

	outputs := []struct {
		name string
		data []byte
	}{
		{constants.EvaluationFile, reportJSON},
		{constants.ReportFile, table.Bytes()},
		{constants.LossPlotFile, lossPNG.Bytes()},
		{constants.AccuracyPlotFile, accPNG.Bytes()},
	}
	names := []string{constants.MetricsFile}
	for _, out := range outputs {
		if err := afero.AtomicFileUpdate(fs, dir, out.name, out.data, 0o644, a.logger); err != nil {
			return nil, fmt.Errorf("writing %s: %w", out.name, err)
		}
		names = append(names, out.name)
	}
	return names, nil
}
