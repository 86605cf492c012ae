package configutils

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// NewViper builds the viper instance every agent shares: environment
// overrides under envPrefix, the persistent debug flag, and an optional
// config file with imports.
func NewViper(fs afero.Fs, envPrefix string, pflags *pflag.FlagSet, configFilePath string) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if pflags != nil {
		if flag := pflags.Lookup("debug"); flag != nil {
			if err := v.BindPFlag("debug", flag); err != nil {
				return nil, fmt.Errorf("can't bind debug flag: %w", err)
			}
		}
	}

	if configFilePath == "" {
		return v, nil
	}
	if err := ResolveAndMergeFile(fs, v, configFilePath); err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	return v, nil
}

// ProvideViper wraps NewViper in an fx provider reading from the OS
// filesystem.
func ProvideViper(envPrefix string, pflags *pflag.FlagSet, configFilePath string) fx.Option {
	return fx.Provide(func() (*viper.Viper, error) {
		return NewViper(afero.NewOsFs(), envPrefix, pflags, configFilePath)
	})
}
