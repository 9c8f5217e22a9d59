// Package logging sets up the zerolog console logger shared by the copterlink
// commands.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "COPTERLINK_LOG_LEVEL"
	EnvLogTimestamp = "COPTERLINK_LOG_TIMESTAMP"
	EnvLogNoColor   = "COPTERLINK_LOG_NOCOLOR"
)

type Options struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Out       io.Writer
}

func DefaultOptions() Options {
	return Options{
		Level:     zerolog.InfoLevel,
		Timestamp: true,
		Out:       os.Stderr,
	}
}

// New builds the console logger for app, applies environment overrides on top
// of opts and installs the result as the global logger.
func New(app string, opts Options) zerolog.Logger {
	ApplyEnv(&opts, os.Getenv)
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	output := zerolog.ConsoleWriter{
		Out:        opts.Out,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}
	ctx := zerolog.New(output).Level(opts.Level).With()
	if opts.Timestamp {
		ctx = ctx.Timestamp()
	}
	logger := ctx.Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// ApplyEnv overrides opts from the COPTERLINK_LOG_* variables. Unparseable
// values are ignored.
func ApplyEnv(opts *Options, getenv func(string) string) {
	if lvl, ok := parseLevel(getenv(EnvLogLevel)); ok {
		opts.Level = lvl
	}
	if v, ok := parseBool(getenv(EnvLogTimestamp)); ok {
		opts.Timestamp = v
	}
	if v, ok := parseBool(getenv(EnvLogNoColor)); ok {
		opts.NoColor = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "":
		return zerolog.InfoLevel, false
	case "warning":
		return zerolog.WarnLevel, true
	case "disable", "off", "none":
		return zerolog.Disabled, true
	}
	lvl, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.InfoLevel, false
	}
	return lvl, true
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
