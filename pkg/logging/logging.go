package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimeNowFunc is the clock used by request logging. Tests replace it.
var TimeNowFunc = time.Now

// TimeFormat is the format of the "time" field in request logs.
var TimeFormat = time.RFC3339

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "request-id"

// RequestIDHeader is the inbound header carrying a caller supplied request ID.
const RequestIDHeader = "X-Request-ID"

// RequestLoggerKey is the gin context key holding the per-request logger.
const RequestLoggerKey = "request-logger"

// NewLogger builds a zap logger writing to the configured rotating file and,
// unless disabled, to stdout.
func NewLogger(config *Config) (*zap.Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	level, err := config.toZapCoreLevel()
	if err != nil {
		return nil, fmt.Errorf("constructing log level: %w", err)
	}
	encoder := newEncoder(config)

	core := zapcore.NewCore(encoder, zapcore.AddSync(&config.Logger), level)
	if !config.DisableConsoleOutput {
		console := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
		core = zapcore.NewTee(core, console)
	}

	// skip one frame so the caller is the agent code, not the wrapper
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

func newEncoder(config *Config) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	if config.Debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	if config.EncodeTimeAsRFC3339Nano {
		encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}

	if config.Debug {
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// NewTestLogger returns a logrus backed Interface writing to stderr.
func NewTestLogger() Interface {
	return ForLogrus(logrus.NewEntry(logrus.New()))
}
