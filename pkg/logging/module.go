package logging

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the root *zap.Logger and Interface, configured from the
// "logging" viper key.
var Module fx.Option = fx.Provide(
	provideZapLogger(ConfigKey),
	provideInterface,
)

// ModuleNamed provides a *zap.Logger and Interface annotated with
// `name:"<configKey>"` and configured from that viper key. Agents inject the
// named Interface into their components, e.g. `name:"agent_log"`.
func ModuleNamed(configKey string) fx.Option {
	if configKey == ConfigKey {
		panic("use Module instead of ModuleNamed for root logging")
	}

	nameTag := fmt.Sprintf(`name:"%s"`, configKey)

	return fx.Provide(
		fx.Annotate(provideZapLogger(configKey),
			fx.ResultTags(nameTag),
		),
		fx.Annotate(provideInterface,
			fx.ParamTags(nameTag),
			fx.ResultTags(nameTag),
		),
	)
}

func provideZapLogger(configKey string) func(v *viper.Viper) (*zap.Logger, error) {
	return func(v *viper.Viper) (*zap.Logger, error) {
		desc := ""
		if configKey != ConfigKey {
			desc = fmt.Sprintf(" '%s'", configKey)
		}

		config, err := NewConfig(WithViperKey(v, configKey))
		if err != nil {
			return nil, fmt.Errorf("error reading logging configuration%s: %w", desc, err)
		}
		if v.GetBool("debug") {
			config.Debug = true
		}
		return NewLogger(config)
	}
}

func provideInterface(l *zap.Logger) Interface { return ForZap(l) }
