package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	trainingAgent "github.com/garr-ai/garr/internal/garr-agent/training-agent"
	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/logging"
)

// TrainingAgent implements the AgentModule interface for fine-tuning
type TrainingAgent struct {
	agent *trainingAgent.TrainingAgent
}

func (t *TrainingAgent) Name() string {
	return "training-agent"
}

func (t *TrainingAgent) ShortDescription() string {
	return "Run GARR fine-tuning"
}

func (t *TrainingAgent) LongDescription() string {
	return "GARR training agent fine-tunes a pretrained GPT-2 checkpoint on the labeled news dataset and writes one checkpoint per epoch, the metrics history and an evaluation report"
}

func (t *TrainingAgent) ConfigureCommand(cmd *cobra.Command) {
	cmd.Run = func(cmd *cobra.Command, args []string) {
		runAgentCommand(cmd, t, t.Start)
	}
}

func (t *TrainingAgent) FxModules() []fx.Option {
	return []fx.Option{
		afero.Module,
		logging.Module,
		logging.ModuleNamed("another_log"),
		trainingAgent.Module,
		fx.Populate(&t.agent),
	}
}

func (t *TrainingAgent) Start() error {
	return t.agent.Start()
}

func NewTrainingAgent() *TrainingAgent {
	return &TrainingAgent{}
}
