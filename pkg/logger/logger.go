package logger

import "slices"

// LoggerInstance defines the interface for logging backends.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

// Logger holds multiple logging backends and dispatches log calls to all of them.
type Logger struct {
	instances []LoggerInstance
}

var singleton *Logger

// Init initializes the global logger with one or more logging backends.
// Calls made before Init are dropped.
func Init(instances ...LoggerInstance) {
	singleton = &Logger{
		instances: instances,
	}
}

type level int

const (
	levelLog level = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelFatal
)

func dispatch(l level, message string, keyvals []any) {
	logger := singleton
	if logger == nil {
		return
	}

	for _, instance := range logger.instances {
		switch l {
		case levelDebug:
			instance.Debug(message, keyvals...)
		case levelInfo:
			instance.Info(message, keyvals...)
		case levelWarn:
			instance.Warn(message, keyvals...)
		case levelError:
			instance.Error(message, keyvals...)
		case levelFatal:
			instance.Fatal(message, keyvals...)
		default:
			instance.Log(message, keyvals...)
		}
	}
}

// Log writes a message at the default log level to all configured backends.
func Log(message string, keyvals ...any) { dispatch(levelLog, message, keyvals) }

// Info writes a message at INFO level to all configured backends.
func Info(message string, keyvals ...any) { dispatch(levelInfo, message, keyvals) }

// Warn writes a message at WARN level to all configured backends.
func Warn(message string, keyvals ...any) { dispatch(levelWarn, message, keyvals) }

// Error writes a message at ERROR level to all configured backends.
func Error(message string, keyvals ...any) { dispatch(levelError, message, keyvals) }

// Debug writes a message at DEBUG level to all configured backends.
func Debug(message string, keyvals ...any) { dispatch(levelDebug, message, keyvals) }

// Fatal writes a message at FATAL level and terminates the program.
func Fatal(message string, keyvals ...any) { dispatch(levelFatal, message, keyvals) }

// Prefixed returns a message prefix helper so a subsystem can tag its lines
// the same way everywhere, e.g. Prefixed("Triage")("Scored article").
func Prefixed(subsystem string) func(message string) string {
	prefix := "[" + subsystem + "] "
	return func(message string) string {
		return prefix + message
	}
}

// Scope logs through the global backends with a subsystem prefix and a
// fixed set of key/value pairs in front of the call's own.
type Scope struct {
	prefix  func(string) string
	keyvals []any
}

// Named returns a scope whose messages start with "[subsystem] ".
func Named(subsystem string) Scope {
	return Scope{prefix: Prefixed(subsystem)}
}

// With returns a copy of s that adds keyvals to every line.
func (s Scope) With(keyvals ...any) Scope {
	return Scope{prefix: s.prefix, keyvals: append(slices.Clip(s.keyvals), keyvals...)}
}

func (s Scope) log(l level, message string, keyvals []any) {
	if s.prefix != nil {
		message = s.prefix(message)
	}
	if len(s.keyvals) > 0 {
		keyvals = append(slices.Clip(s.keyvals), keyvals...)
	}
	dispatch(l, message, keyvals)
}

func (s Scope) Debug(message string, keyvals ...any) { s.log(levelDebug, message, keyvals) }
func (s Scope) Info(message string, keyvals ...any)  { s.log(levelInfo, message, keyvals) }
func (s Scope) Warn(message string, keyvals ...any)  { s.log(levelWarn, message, keyvals) }
func (s Scope) Error(message string, keyvals ...any) { s.log(levelError, message, keyvals) }
