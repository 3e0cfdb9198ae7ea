// Package logging provides the structured logging interface used across the
// engine. Components accept a Logger rather than calling the standard
// library logger directly so that tests can inject a silent implementation
// and hosts can route engine diagnostics into their own log pipeline.
package logging

// Logger is the structured logging surface the engine depends on, mirroring
// the teacher's Log/Warn/Debug/Error/Fatal method set one level for one
// level (Log is an alias for info).
type Logger interface {
	Log(args ...any)
	Logf(format string, args ...any)
	Debug(args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
}
