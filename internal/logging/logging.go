// Package logging centralizes the bracketed-tag log.Printf idiom used
// throughout the upstream player (e.g. "[API] ...", "[HTTP] ..."), adding
// the four verbosity levels this daemon's config names (quiet, warn,
// debug, trace) in place of the single Debug bool the upstream config
// carries.
package logging

import "log"

// Level is a verbosity tier, ordered from quietest to loudest.
type Level int

const (
	Quiet Level = iota
	Warn
	Debug
	Trace
)

// ParseLevel maps a config string to a Level, defaulting to Warn.
func ParseLevel(s string) Level {
	switch s {
	case "quiet":
		return Quiet
	case "debug":
		return Debug
	case "trace":
		return Trace
	default:
		return Warn
	}
}

// Logger tags every message with a bracketed component name and gates
// Debug/Trace calls on the configured level.
type Logger struct {
	tag   string
	level Level
}

// New builds a Logger for a component, e.g. logging.New("CONNECT", level).
func New(tag string, level Level) *Logger {
	return &Logger{tag: tag, level: level}
}

func (l *Logger) Warnf(format string, args ...any) {
	log.Printf("[%s] "+format, append([]any{l.tag}, args...)...)
}

func (l *Logger) Debugf(format string, args ...any) {
	if l.level < Debug {
		return
	}
	log.Printf("[%s] "+format, append([]any{l.tag}, args...)...)
}

func (l *Logger) Tracef(format string, args ...any) {
	if l.level < Trace {
		return
	}
	log.Printf("[%s] "+format, append([]any{l.tag}, args...)...)
}

// Fatalf always logs and exits, mirroring the upstream player's
// log.Fatalf use for unrecoverable startup errors.
func (l *Logger) Fatalf(format string, args ...any) {
	log.Fatalf("[%s] "+format, append([]any{l.tag}, args...)...)
}
