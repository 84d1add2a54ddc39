package logger

import (
	"log"
	"strings"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a Level, falling back to LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var LoggerEnabled = true

type DefaultLogger struct {
	name  string
	level Level
	out   *log.Logger
}

func NewDefaultLogger(name string) *DefaultLogger {
	return &DefaultLogger{name: name, level: LevelInfo, out: log.Default()}
}

// WithLevel sets the minimum level that gets printed.
func (d *DefaultLogger) WithLevel(level Level) *DefaultLogger {
	d.level = level
	return d
}

// WithOutput swaps the underlying std logger, mostly for tests and the CLI.
func (d *DefaultLogger) WithOutput(out *log.Logger) *DefaultLogger {
	if out != nil {
		d.out = out
	}
	return d
}

// Named returns a logger sharing level and output under a sub name.
func (d *DefaultLogger) Named(name string) *DefaultLogger {
	return &DefaultLogger{name: d.name + "." + name, level: d.level, out: d.out}
}

func (d *DefaultLogger) Debug(format string, args ...any) {
	d.print(LevelDebug, format, args...)
}

func (d *DefaultLogger) Info(format string, args ...any) {
	d.print(LevelInfo, format, args...)
}

func (d *DefaultLogger) Warn(format string, args ...any) {
	d.print(LevelWarn, format, args...)
}

func (d *DefaultLogger) Error(format string, args ...any) {
	d.print(LevelError, format, args...)
}

func (d *DefaultLogger) print(level Level, format string, args ...any) {
	if !LoggerEnabled || level < d.level {
		return
	}
	d.out.Printf("["+level.String()+"] "+d.name+" | "+format+"\n", args...)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
