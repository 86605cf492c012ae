package hfhub

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/logging"
)

type downloaderParams struct {
	fx.In

	AnotherLogger logging.Interface `name:"another_log"`
	Fs            afero.Fs
}

var Module = fx.Provide(
	func(v *viper.Viper, params downloaderParams) (*Downloader, error) {
		config, err := NewConfig(
			WithViper(v),
			WithAnotherLog(params.AnotherLogger),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating hub download config: %w", err)
		}
		return NewDownloader(config, params.Fs, nil), nil
	})
