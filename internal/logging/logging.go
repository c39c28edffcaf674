package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the service-wide structured logger. Messages take
// alternating key/value pairs after the message, e.g.
// logger.Info("run started", "run_id", id).
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a new Logger writing to stdout.
func NewLogger() *Logger {
	zl := zerolog.New(os.Stdout).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...any) {
	l.emit(l.zl.Info(), msg, args)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.emit(l.zl.Warn(), msg, args)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.emit(l.zl.Error(), msg, args)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.emit(l.zl.Debug(), msg, args)
}

func (l *Logger) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}
