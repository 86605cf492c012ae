package logging

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNewConfig_Viper(t *testing.T) {
	v := viper.New()
	v.SetConfigType("YAML")
	require.NoError(t, v.ReadConfig(strings.NewReader(`---
logging:
  debug: true
  level: WARN
  maxage: 7
  maxsize: 64
  maxbackups: 3
  compress: true
  encodetimeasrfc3339nano: true
  disableConsoleOutput: true
  filename: /var/log/garr/serving.log
`)))

	c, err := NewConfig(WithViper(v))
	require.NoError(t, err)

	d := cmp.Diff(c, &Config{
		Debug:                   true,
		Level:                   LevelWarn,
		EncodeTimeAsRFC3339Nano: true,
		DisableConsoleOutput:    true,
		Logger: lumberjack.Logger{
			Filename:   "/var/log/garr/serving.log",
			MaxSize:    64,
			MaxAge:     7,
			MaxBackups: 3,
			Compress:   true,
		},
	}, cmpopts.IgnoreUnexported(lumberjack.Logger{}))
	require.Empty(t, d)
}

func TestConfig_Validate(t *testing.T) {
	// pointers, Config embeds lumberjack.Logger and its mutex
	tests := map[string]*struct {
		config  Config
		wantErr string
	}{
		"zero value":        {config: Config{}},
		"negative maxsize":  {config: Config{Logger: lumberjack.Logger{MaxSize: -1}}, wantErr: "maxsize"},
		"negative backups":  {config: Config{Logger: lumberjack.Logger{MaxBackups: -2}}, wantErr: "maxbackups"},
		"negative max age":  {config: Config{Logger: lumberjack.Logger{MaxAge: -3}}, wantErr: "maxage"},
		"bogus level":       {config: Config{Level: "loud"}, wantErr: "invalid level"},
		"lowercase level ok": {config: Config{Level: "debug"}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWithViperKey_NilViper(t *testing.T) {
	_, err := NewConfig(WithViperKey(nil, "agent_log"))
	require.EqualError(t, err, "nil Viper")
}
