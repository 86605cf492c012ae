package serving_agent

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/logging"
)

type servingAgentParams struct {
	fx.In

	AnotherLogger logging.Interface `name:"another_log"`
	ZapLogger     *zap.Logger
	Fs            afero.Fs
}

var Module = fx.Provide(
	func(v *viper.Viper, params servingAgentParams) (*ServingAgent, error) {
		config, err := NewServingAgentConfig(
			WithViper(v),
			WithAnotherLog(params.AnotherLogger),
			WithAppParams(params),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating serving agent config: %+v", err)
		}
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid serving agent config: %+v", err)
		}

		predictor, err := LoadPredictor(config.Fs, config)
		if err != nil {
			return nil, err
		}
		return NewServingAgent(config, predictor)
	})
