package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"info":  LevelInfo,
		"InFo":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"debug": LevelDebug,
		"":      LevelInfo,
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			got, err := ParseLevel(in)
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}

	_, err := ParseLevel("trace")
	require.Error(t, err)
}

func TestConfig_toZapCoreLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"info":  zapcore.InfoLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"debug": zapcore.DebugLevel,
		"":      zapcore.InfoLevel,
	}

	for in, want := range cases {
		t.Run("level="+in, func(t *testing.T) {
			got, err := (&Config{Level: Level(in)}).toZapCoreLevel()
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
		t.Run("debug overrides level="+in, func(t *testing.T) {
			got, err := (&Config{Debug: true, Level: Level(in)}).toZapCoreLevel()
			require.NoError(t, err)
			require.Equal(t, zapcore.DebugLevel, got)
		})
	}
}
