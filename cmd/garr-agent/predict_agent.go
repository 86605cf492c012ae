package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	predictClient "github.com/garr-ai/garr/internal/garr-agent/predict-client"
	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/logging"
)

// PredictAgent sends one prediction request to a running serving agent
type PredictAgent struct {
	client *predictClient.PredictClient
}

func (p *PredictAgent) Name() string {
	return "predict"
}

func (p *PredictAgent) ShortDescription() string {
	return "Query a GARR serving agent"
}

func (p *PredictAgent) LongDescription() string {
	return "Sends the configured text to GET /predict and prints the predicted label"
}

func (p *PredictAgent) ConfigureCommand(cmd *cobra.Command) {
	cmd.Flags().String("text", "", "text to classify")
	cmd.Flags().String("url", "", "base URL of the serving agent")
	cmd.Run = func(cmd *cobra.Command, args []string) {
		runAgentCommand(cmd, p, p.Start)
	}
}

func (p *PredictAgent) FxModules() []fx.Option {
	return []fx.Option{
		afero.Module,
		logging.Module,
		logging.ModuleNamed("another_log"),
		predictClient.Module,
		fx.Populate(&p.client),
	}
}

func (p *PredictAgent) Start() error {
	return p.client.Start()
}

func NewPredictAgent() *PredictAgent {
	return &PredictAgent{}
}
