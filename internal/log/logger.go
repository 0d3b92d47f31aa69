// Package log configures slog for the service and carries per-request
// loggers through contexts.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is an slog.Logger tagged with the component that owns it.
type Logger struct {
	*slog.Logger
	component string
	// handler carries every attribute except the component, so the
	// component can be swapped without repeating the key.
	handler slog.Handler
}

type Config struct {
	Level     slog.Level
	Component string
	JSON      bool
	Output    io.Writer
	Handler   slog.Handler
}

func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Output:    os.Stdout,
	}
}

func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		opts := &slog.HandlerOptions{Level: config.Level}
		if config.JSON {
			handler = slog.NewJSONHandler(out, opts)
		} else {
			handler = slog.NewTextHandler(out, opts)
		}
	}

	component := config.Component
	if component == "" {
		component = ComponentApp
	}
	return newLogger(handler, component)
}

func newLogger(h slog.Handler, component string) *Logger {
	return &Logger{
		Logger:    slog.New(h).With(FieldComponent, component),
		component: component,
		handler:   h,
	}
}

// ParseLevel maps debug, info, warn and error to slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (l *Logger) With(args ...any) *Logger {
	return newLogger(slog.New(l.handler).With(args...).Handler(), l.component)
}

// WithComponent returns a child logger for another component. Attributes
// added with With are kept and output goes to the same place.
func (l *Logger) WithComponent(component string) *Logger {
	return newLogger(l.handler, component)
}

func (l *Logger) Component() string {
	return l.component
}

// SetDefault installs logger as the process-wide slog default.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
