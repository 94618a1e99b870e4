// Package logging builds the zerolog loggers used by the command line tools.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "THERMOFOM_LOG_LEVEL"
	EnvLogTimestamp = "THERMOFOM_LOG_TIMESTAMP"
	EnvLogNoColor   = "THERMOFOM_LOG_NOCOLOR"
	EnvLogJSON      = "THERMOFOM_LOG_JSON"
)

// Options configure New. Zero values take the defaults: info level,
// colored console output on stderr with timestamps.
type Options struct {
	// Level overrides THERMOFOM_LOG_LEVEL when set.
	Level string

	Out       io.Writer
	NoColor   bool
	JSON      bool
	Timestamp *bool
}

// New builds a logger tagged with app. Environment variables fill in
// anything opts leaves unset; an explicit opts.Level wins over the
// environment.
func New(app string, opts Options) zerolog.Logger {
	applyEnvOverrides(&opts)

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if lvl, ok := ParseLevel(opts.Level); ok {
		level = lvl
	}

	if !opts.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		}
	}

	ctx := zerolog.New(out).Level(level).With()
	if opts.Timestamp == nil || *opts.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Str("app", app).Logger()
}

func applyEnvOverrides(opts *Options) {
	if opts.Level == "" {
		opts.Level = os.Getenv(EnvLogLevel)
	}
	if opts.Timestamp == nil {
		if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
			opts.Timestamp = &v
		}
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok && v {
		opts.NoColor = true
	}
	if v, ok := parseBool(os.Getenv(EnvLogJSON)); ok && v {
		opts.JSON = true
	}
}

// ParseLevel maps a level name to a zerolog level. The second result is
// false for empty or unknown names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
