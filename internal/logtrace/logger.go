// Package logtrace provides structured logging and event-timeline recording
// for the simulator core.
package logtrace

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/accelsim/tilenoc/internal/interfaces"
)

// Level mirrors the teacher's LogLevel enum, mapped onto zerolog's levels.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (lv Level) zerolog() zerolog.Level {
	switch lv {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config holds logger construction parameters.
type Config struct {
	Level  Level
	Output io.Writer
	// Pretty selects zerolog's human-readable ConsoleWriter instead of
	// raw JSON, matching cmd/tilesim-demo's interactive use.
	Pretty bool
}

// DefaultConfig returns a sensible default configuration: info level,
// pretty-printed to stderr.
func DefaultConfig() *Config {
	return &Config{Level: LevelInfo, Output: os.Stderr, Pretty: true}
}

// Logger wraps zerolog.Logger behind the interfaces.Logger capability set.
type Logger struct {
	zl zerolog.Logger
}

var _ interfaces.Logger = (*Logger)(nil)

// NewLogger builds a Logger from cfg, defaulting any unset field.
func NewLogger(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}
	zl := zerolog.New(out).With().Timestamp().Logger().Level(cfg.Level.zerolog())
	return &Logger{zl: zl}
}

func kvFields(e *zerolog.Event, kv []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	return e
}

func (l *Logger) Debug(msg string, kv ...interface{}) { kvFields(l.zl.Debug(), kv).Msg(msg) }
func (l *Logger) Info(msg string, kv ...interface{})  { kvFields(l.zl.Info(), kv).Msg(msg) }
func (l *Logger) Warn(msg string, kv ...interface{})  { kvFields(l.zl.Warn(), kv).Msg(msg) }
func (l *Logger) Error(msg string, kv ...interface{}) { kvFields(l.zl.Error(), kv).Msg(msg) }

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Default returns the process-wide default logger, creating it on first use.
func Default() *Logger {
	defaultMu.RLock()
	if defaultLogger != nil {
		defer defaultMu.RUnlock()
		return defaultLogger
	}
	defaultMu.RUnlock()

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}
