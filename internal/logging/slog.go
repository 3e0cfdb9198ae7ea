package logging

import (
	"fmt"
	"log/slog"
	"os"
)

// SlogLogger adapts Logger onto the standard library's structured logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewDefault returns a Logger writing to stderr at Info level, or Debug
// level if OMNI_DEBUG is set in the environment (mirrors the teacher's
// DEBUG-env toggle; the one variable applies to every component).
func NewDefault(component string) *SlogLogger {
	level := slog.LevelInfo
	if os.Getenv("OMNI_DEBUG") != "" {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &SlogLogger{l: slog.New(h).With("component", component)}
}

// Log and Logf sit at info level, matching the teacher's "Log is the plain
// info call, Logf its formatted sibling" split.
func (s *SlogLogger) Log(args ...any)                   { s.l.Info(fmt.Sprint(args...)) }
func (s *SlogLogger) Logf(format string, args ...any)   { s.l.Info(sprintf(format, args...)) }
func (s *SlogLogger) Debug(args ...any)                 { s.l.Debug(fmt.Sprint(args...)) }
func (s *SlogLogger) Debugf(format string, args ...any) { s.l.Debug(sprintf(format, args...)) }
func (s *SlogLogger) Infof(format string, args ...any)  { s.l.Info(sprintf(format, args...)) }
func (s *SlogLogger) Warn(args ...any)                  { s.l.Warn(fmt.Sprint(args...)) }
func (s *SlogLogger) Warnf(format string, args ...any)  { s.l.Warn(sprintf(format, args...)) }
func (s *SlogLogger) Error(args ...any)                 { s.l.Error(fmt.Sprint(args...)) }
func (s *SlogLogger) Errorf(format string, args ...any) { s.l.Error(sprintf(format, args...)) }

// Fatal and Fatalf log at error level and terminate the process, matching
// the standard library's log.Fatal semantics the teacher's DefaultLogger
// builds on.
func (s *SlogLogger) Fatal(args ...any) {
	s.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}

func (s *SlogLogger) Fatalf(format string, args ...any) {
	s.l.Error(sprintf(format, args...))
	os.Exit(1)
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
