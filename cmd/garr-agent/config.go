package main

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/garr-ai/garr/pkg/configutils"
	"github.com/garr-ai/garr/pkg/constants"
)

func configProvider(cli *cobra.Command, module AgentModule) fx.Option {
	return fx.Provide(func() (*viper.Viper, error) {
		return newAgentViper(afero.NewOsFs(), cli, configFilePath)
	})
}

// newAgentViper resolves the agent configuration. The config file is
// optional, every key has a default in its agent config.
func newAgentViper(fs afero.Fs, cli *cobra.Command, path string) (*viper.Viper, error) {
	v, err := configutils.NewViper(fs, constants.AgentAppName, cli.Flags(), path)
	if err != nil {
		return nil, err
	}

	// agent specific flags override the file only when given
	var bindErr error
	cli.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return nil, bindErr
	}

	// Fix the issue where viper.UnmarshalKey only uses read config, neglects environment variables
	for _, key := range v.AllKeys() {
		v.Set(key, v.Get(key))
	}
	return v, nil
}
