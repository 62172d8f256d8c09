package app

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

type Level string

const (
	TRACE Level = "TRACE"
	DEBUG Level = "DEBUG"
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
	PANIC Level = "PANIC"
)

var zeroLevels = map[Level]zerolog.Level{
	TRACE: zerolog.TraceLevel,
	DEBUG: zerolog.DebugLevel,
	INFO:  zerolog.InfoLevel,
	WARN:  zerolog.WarnLevel,
	ERROR: zerolog.ErrorLevel,
	PANIC: zerolog.PanicLevel,
}

type loggerCfg struct {
	out     io.Writer
	console bool
}

type LoggerOption func(*loggerCfg)

// WithOutput sends log lines to w instead of stdout.
func WithOutput(w io.Writer) LoggerOption {
	return func(cfg *loggerCfg) {
		cfg.out = w
	}
}

// WithConsole writes human readable lines, for interactive commands.
func WithConsole() LoggerOption {
	return func(cfg *loggerCfg) {
		cfg.console = true
	}
}

// NewZeroLogger builds the process logger. Unknown levels fall back to INFO.
func NewZeroLogger(logLevel Level, opts ...LoggerOption) zerolog.Logger {
	cfg := &loggerCfg{out: os.Stdout}
	for _, opt := range opts {
		opt(cfg)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	out := cfg.out
	if cfg.console {
		out = zerolog.ConsoleWriter{Out: cfg.out, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).
		Level(logLevelToZero(logLevel)).
		With().
		Timestamp().
		Caller().
		Logger()
}

func logLevelToZero(level Level) zerolog.Level {
	if l, ok := zeroLevels[Level(strings.ToUpper(string(level)))]; ok {
		return l
	}
	return zerolog.InfoLevel
}
