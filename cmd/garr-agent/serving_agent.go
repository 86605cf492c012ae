package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	servingAgent "github.com/garr-ai/garr/internal/garr-agent/serving-agent"
	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/logging"
)

// ServingAgent implements the AgentModule interface for the prediction service
type ServingAgent struct {
	agent *servingAgent.ServingAgent
}

// Name returns the name of the agent
func (s *ServingAgent) Name() string {
	return "serving-agent"
}

// ShortDescription returns a short description of the agent
func (s *ServingAgent) ShortDescription() string {
	return "Run GARR prediction service"
}

// LongDescription returns a detailed description of the agent
func (s *ServingAgent) LongDescription() string {
	return "GARR serving agent loads a fine-tuned checkpoint once and answers GET /predict?text=... with the predicted label index"
}

// ConfigureCommand configures the agent command
func (s *ServingAgent) ConfigureCommand(cmd *cobra.Command) {
	cmd.Run = func(cmd *cobra.Command, args []string) {
		runAgentCommand(cmd, s, s.Start)
	}
}

// FxModules returns the fx modules needed by this agent
func (s *ServingAgent) FxModules() []fx.Option {
	return []fx.Option{
		afero.Module,
		logging.Module,
		logging.ModuleNamed("another_log"),
		servingAgent.Module,
		fx.Populate(&s.agent),
	}
}

// Start starts the agent
func (s *ServingAgent) Start() error {
	return s.agent.Start()
}

// NewServingAgent creates a new serving agent
func NewServingAgent() *ServingAgent {
	return &ServingAgent{}
}
