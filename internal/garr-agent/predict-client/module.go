package predict_client

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/garr-ai/garr/pkg/logging"
)

type predictClientParams struct {
	fx.In

	AnotherLogger logging.Interface `name:"another_log"`
}

var Module = fx.Provide(
	func(v *viper.Viper, params predictClientParams) (*PredictClient, error) {
		config, err := NewPredictClientConfig(
			WithViper(v),
			WithAnotherLog(params.AnotherLogger),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating predict client config: %+v", err)
		}
		return NewPredictClient(config, nil)
	})
