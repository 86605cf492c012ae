package ginlog

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/garr-ai/garr/pkg/logging"
)

const (
	RequestIDKey     = logging.RequestIDKey
	RequestIDHeader  = logging.RequestIDHeader
	RequestLoggerKey = logging.RequestLoggerKey
)

// RequestLoggerConfig configures RequestLogger from viper.
type RequestLoggerConfig struct {
	// ExcludeQueryParameters drops the raw query from access logs. The predict
	// endpoint carries user text in the query string.
	ExcludeQueryParameters bool `mapstructure:"exclude_query_parameters"`

	// LevelByPath overrides the access log level per path,
	// e.g. "/healthz" -> "debug". Unknown level names fall back to info.
	LevelByPath map[string]string `mapstructure:"level_by_path"`
}

// Opts converts the config into RequestLogger options.
func (rec RequestLoggerConfig) Opts() []RequestLoggerOption {
	opts := []RequestLoggerOption{
		WithRequestLoggerExcludeQueryParameters(rec.ExcludeQueryParameters),
	}
	if len(rec.LevelByPath) == 0 {
		return opts
	}

	levels := make(map[string]zapcore.Level, len(rec.LevelByPath))
	for path, name := range rec.LevelByPath {
		lvl := zapcore.InfoLevel
		if err := lvl.UnmarshalText([]byte(name)); err != nil {
			lvl = zapcore.InfoLevel
		}
		levels[path] = lvl
	}
	return append(opts, WithRequestLoggerLevelByPath(levels))
}

// GetRequestLogger returns the logger bound to the current request. It
// carries the request ID field.
func GetRequestLogger(ctx *gin.Context) *zap.Logger {
	return ctx.MustGet(RequestLoggerKey).(*zap.Logger)
}

type requestLogger struct {
	logger                 *zap.Logger
	levelByPath            map[string]zapcore.Level
	excludeQueryParameters bool
}

func (rl *requestLogger) HandlerFunc(ctx *gin.Context) {
	start := logging.TimeNowFunc()

	// captured before handlers get a chance to rewrite the URL
	path := ctx.Request.URL.Path
	query := ctx.Request.URL.RawQuery

	requestID := GetOrCreateRequestID(ctx)
	reqLogger := rl.logger.With(zap.String(RequestIDKey, requestID))
	ctx.Set(RequestLoggerKey, reqLogger)
	ctx.Header(RequestIDHeader, requestID)

	ctx.Next()

	end := logging.TimeNowFunc()

	if len(ctx.Errors) > 0 {
		for _, err := range ctx.Errors.Errors() {
			reqLogger.Error(err, zap.String("path", path), zap.Int("status", ctx.Writer.Status()))
		}
		return
	}

	if ce := reqLogger.Check(rl.levelFor(path), path); ce != nil {
		fields := []zap.Field{
			zap.String("method", ctx.Request.Method),
			zap.String("path", path),
			zap.String("ip", ctx.ClientIP()),
			zap.String("user-agent", ctx.Request.UserAgent()),
			zap.Int("status", ctx.Writer.Status()),
			zap.String("time", end.Format(logging.TimeFormat)),
			zap.Duration("latency", end.Sub(start)),
		}
		if !rl.excludeQueryParameters {
			fields = append(fields, zap.String("query", query))
		}
		ce.Write(fields...)
	}
}

func (rl *requestLogger) levelFor(path string) zapcore.Level {
	if lvl, ok := rl.levelByPath[path]; ok {
		return lvl
	}
	return zapcore.InfoLevel
}

// RequestLoggerOption configures RequestLogger.
type RequestLoggerOption func(*requestLogger)

// WithRequestLoggerLevelByPath sets per-path access log levels.
func WithRequestLoggerLevelByPath(levelByPath map[string]zapcore.Level) RequestLoggerOption {
	return func(rl *requestLogger) {
		rl.levelByPath = levelByPath
	}
}

// WithRequestLoggerExcludeQueryParameters controls whether the raw query is
// logged. Queries are logged by default.
func WithRequestLoggerExcludeQueryParameters(value bool) RequestLoggerOption {
	return func(rl *requestLogger) {
		rl.excludeQueryParameters = value
	}
}

// RequestLogger returns a gin middleware writing one zap access log entry per
// request and binding a request scoped logger to the context.
func RequestLogger(logger *zap.Logger, opts ...RequestLoggerOption) gin.HandlerFunc {
	rl := &requestLogger{logger: logger}
	for _, opt := range opts {
		opt(rl)
	}
	return rl.HandlerFunc
}
