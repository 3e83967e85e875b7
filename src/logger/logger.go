package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// -----------------------------------------------------------------------------

// Logger is a named printf-style logger on top of zerolog.
type Logger struct {
	name   string
	base   zerolog.Logger // without the component field
	logger zerolog.Logger
	config interface{}
}

// levelSource is implemented by the application config.
type levelSource interface {
	LogLevelName() string
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance writing to stdout.
// config may carry the log level (DEBUG, INFO, WARNING, ERROR); INFO otherwise.
func NewLogger(config interface{}, name string) *Logger {
	return NewLoggerWithWriter(config, name, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
}

// NewLoggerWithWriter is NewLogger with an explicit destination.
func NewLoggerWithWriter(config interface{}, name string, w io.Writer) *Logger {
	level := zerolog.InfoLevel
	if src, ok := config.(levelSource); ok {
		level = ParseLevel(src.LogLevelName())
	}

	base := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{
		name:   name,
		base:   base,
		logger: base.With().Str("component", name).Logger(),
		config: config,
	}
}

// -----------------------------------------------------------------------------

// ParseLevel maps config level names to zerolog levels.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARNING", "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// -----------------------------------------------------------------------------

// Named returns a logger for a sub component sharing the same output and level.
func (l *Logger) Named(name string) *Logger {
	full := l.name + "." + name
	return &Logger{
		name:   full,
		base:   l.base,
		logger: l.base.With().Str("component", full).Logger(),
		config: l.config,
	}
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger.Debug().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.logger.Warn().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.Info().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Error().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.WithLevel(zerolog.FatalLevel).Msg(fmt.Sprintf(format, args...))
	os.Exit(1)
}
