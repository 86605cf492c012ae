package logging

import "go.uber.org/zap"

type zapWrapper struct {
	logger *zap.Logger
}

func (l zapWrapper) WithField(key string, value interface{}) Interface {
	return zapWrapper{l.logger.With(zap.Any(key, value))}
}

func (l zapWrapper) WithError(err error) Interface {
	return zapWrapper{l.logger.With(zap.Error(err))}
}

// skipped returns the logger with one more caller frame skipped, so that the
// reported caller is the code using Interface.
func (l zapWrapper) skipped() *zap.Logger { return l.logger.WithOptions(zap.AddCallerSkip(1)) }

func (l zapWrapper) Debug(msg string) { l.skipped().Debug(msg) }
func (l zapWrapper) Info(msg string)  { l.skipped().Info(msg) }
func (l zapWrapper) Warn(msg string)  { l.skipped().Warn(msg) }
func (l zapWrapper) Error(msg string) { l.skipped().Error(msg) }
func (l zapWrapper) Fatal(msg string) { l.skipped().Fatal(msg) }

func (l zapWrapper) Debugf(format string, args ...interface{}) {
	l.skipped().Debug(fmtMsg(format, args))
}
func (l zapWrapper) Infof(format string, args ...interface{}) {
	l.skipped().Info(fmtMsg(format, args))
}
func (l zapWrapper) Warnf(format string, args ...interface{}) {
	l.skipped().Warn(fmtMsg(format, args))
}
func (l zapWrapper) Errorf(format string, args ...interface{}) {
	l.skipped().Error(fmtMsg(format, args))
}
func (l zapWrapper) Fatalf(format string, args ...interface{}) {
	l.skipped().Fatal(fmtMsg(format, args))
}

// ForZap adapts a zap logger to Interface.
func ForZap(logger *zap.Logger) Interface {
	return zapWrapper{logger: logger}
}
