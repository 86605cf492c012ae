package training_agent

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/logging"
)

type trainingAgentParams struct {
	fx.In

	AnotherLogger logging.Interface `name:"another_log"`
	Fs            afero.Fs
}

var Module = fx.Provide(
	func(v *viper.Viper, params trainingAgentParams) (*TrainingAgent, error) {
		config, err := NewTrainingAgentConfig(
			WithViper(v),
			WithAnotherLog(params.AnotherLogger),
			WithAppParams(params),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating training agent config: %+v", err)
		}
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid training agent config: %+v", err)
		}

		model, tok, err := LoadBase(config.Fs, config)
		if err != nil {
			return nil, err
		}

		var uploader Uploader
		if config.Upload.Enabled() {
			s3Uploader, err := NewS3Uploader(context.Background(), config.Fs, config.Upload, config.AnotherLogger)
			if err != nil {
				return nil, err
			}
			uploader = s3Uploader
		}
		return NewTrainingAgent(config, model, tok, uploader)
	})
