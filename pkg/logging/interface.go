package logging

import (
	"fmt"
)

// Interface is the printf-style logger handed to agents and their components.
//
// It hides whether zap or logrus sits underneath. Hot paths (request handling,
// the training inner loop) should log through *zap.Logger directly.
type Interface interface {
	WithField(key string, value interface{}) Interface
	WithError(err error) Interface

	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

func fmtMsg(format string, args []interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
