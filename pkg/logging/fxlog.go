package logging

import (
	"strings"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// UseLoggingInterface routes fx's own lifecycle events to the Interface
// provided inside the application.
var UseLoggingInterface fx.Option = fx.WithLogger(
	func(logger Interface) fxevent.Logger {
		return &fxLoggerAdapter{Interface: logger}
	},
)

type fxLoggerAdapter struct{ Interface }

// LogEvent logs an fx event. Successful wiring events go to DEBUG so agent
// output stays readable; failures are always logged as errors.
func (f fxLoggerAdapter) LogEvent(event fxevent.Event) {
	log := f.Interface.WithField("fx", "event")

	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		reportResult("OnStart hook", e.Err,
			log.WithField("callee", e.FunctionName).
				WithField("caller", e.CallerName).
				WithField("runtime", e.Runtime.String()))
	case *fxevent.OnStopExecuted:
		reportResult("OnStop hook", e.Err,
			log.WithField("callee", e.FunctionName).
				WithField("caller", e.CallerName).
				WithField("runtime", e.Runtime.String()))
	case *fxevent.Provided:
		for _, rtype := range e.OutputTypeNames {
			log.WithField("constructor", e.ConstructorName).
				WithField("type", rtype).
				Debug("Provided")
		}
		if e.Err != nil {
			log.WithError(e.Err).Error("error encountered while applying options")
		}
	case *fxevent.Invoked:
		reportResult("Invoke", e.Err,
			log.WithField("function", e.FunctionName).
				WithField("stack", e.Trace))
	case *fxevent.Stopping:
		log.WithField("signal", strings.ToUpper(e.Signal.String())).
			Info("Stopping: received signal")
	case *fxevent.Stopped:
		reportResult("App stop", e.Err, log)
	case *fxevent.RollingBack:
		reportResult("Start failed, rolling back", e.StartErr, log)
	case *fxevent.Started:
		reportResult("App start", e.Err, log)
	default:
		// OnStartExecuting, Supplied, Invoking, LoggerInitialized, ...
		log.WithField("event", event).Debug("fx event")
	}
}

func reportResult(msg string, err error, log Interface) {
	if err == nil {
		log.Debug(msg + " succeeded")
		return
	}
	log.WithError(err).Error(msg + " failed")
}
