// Package log provides the structured logging abstraction used by every
// go2relay component.
//
// Components never talk to a logging library directly. They receive a
// Logger through their constructor and attach typed fields:
//
//	logger.Info("session connected",
//	    log.String("addr", addr),
//	    log.Int("attempt", attempt),
//	)
//
// The zerolog adapter is the production implementation:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Tests use the no-op logger:
//
//	logger := log.NewNoopLogger()
//
// Component-scoped loggers are derived with With:
//
//	hubLog := log.With(logger, log.String("component", "telemetry"))
package log
