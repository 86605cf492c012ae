package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is the logging level as written in configuration files.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var zapLevels = map[string]zapcore.Level{
	"":      zapcore.InfoLevel,
	"DEBUG": zapcore.DebugLevel,
	"INFO":  zapcore.InfoLevel,
	"WARN":  zapcore.WarnLevel,
	"ERROR": zapcore.ErrorLevel,
}

// ParseLevel parses a case-insensitive level name. An empty name means INFO.
func ParseLevel(level string) (Level, error) {
	if level == "" {
		return LevelInfo, nil
	}
	l := Level(strings.ToUpper(level))
	if err := l.Validate(); err != nil {
		return "", err
	}
	return l, nil
}

// Validate reports whether the level is one of the known names.
func (l Level) Validate() error {
	if _, ok := zapLevels[strings.ToUpper(string(l))]; !ok {
		return fmt.Errorf("unknown log level: %s", l)
	}
	return nil
}

// String implements fmt.Stringer.
func (l Level) String() string { return strings.ToUpper(string(l)) }

func (l Level) toZapCoreLevel() (zapcore.Level, error) {
	lvl, ok := zapLevels[strings.ToUpper(string(l))]
	if !ok {
		return zapcore.InfoLevel, fmt.Errorf("can't convert log level to zapcore.Level: %s", l)
	}
	return lvl, nil
}

// toZapCoreLevel returns the effective level; Debug wins over Level.
func (c *Config) toZapCoreLevel() (zapcore.Level, error) {
	if c.Debug {
		return zapcore.DebugLevel, nil
	}
	return c.Level.toZapCoreLevel()
}
