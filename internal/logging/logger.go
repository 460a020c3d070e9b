// Package logging wires the process-wide zerolog logger and hands out
// component-scoped child loggers. Every package that logs (manager,
// engine) asks for its own logger by name rather than writing through
// the global log.Logger directly, so a log line can always be traced
// back to the component that emitted it.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// settings holds the resolved configuration an Option mutates.
type settings struct {
	development bool
	level       zerolog.Level
	writer      io.Writer
}

// Option configures Initialize. Initialize's defaults (production, info
// level, stdout) are used for any field no Option touches.
type Option func(*settings)

// WithDevelopment switches the writer to a human-readable console and
// raises the default level to debug, matching the split a developer
// running the binary locally expects versus a deployed instance.
func WithDevelopment(development bool) Option {
	return func(s *settings) {
		s.development = development
		if development {
			s.level = zerolog.DebugLevel
		}
	}
}

// WithLevel overrides the default level Initialize would otherwise pick
// from WithDevelopment. An unrecognized name leaves the level as it was.
func WithLevel(name string) Option {
	return func(s *settings) {
		if lvl, ok := levelsByName[name]; ok {
			s.level = lvl
		}
	}
}

// WithWriter overrides the destination io.Writer, primarily for tests
// that want to capture log output instead of writing to stdout.
func WithWriter(w io.Writer) Option {
	return func(s *settings) { s.writer = w }
}

var levelsByName = map[string]zerolog.Level{
	"trace": zerolog.TraceLevel,
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
	"fatal": zerolog.FatalLevel,
	"panic": zerolog.PanicLevel,
}

var componentLoggers sync.Map // string -> zerolog.Logger

// Initialize configures the global zerolog logger. Called once at
// process startup before any GetLogger calls are made.
func Initialize(opts ...Option) {
	s := settings{level: zerolog.InfoLevel, writer: os.Stdout}
	for _, opt := range opts {
		opt(&s)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	w := s.writer
	if s.development {
		w = zerolog.ConsoleWriter{Out: s.writer, TimeFormat: "15:04:05"}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()
	zerolog.SetGlobalLevel(s.level)

	componentLoggers = sync.Map{}
}

// GetLogger returns the logger for component, tagged with a "component"
// field. Loggers are cached per name so repeated calls (one per
// package-level var, as engine and manager do) don't rebuild the same
// child logger on every call.
func GetLogger(component string) zerolog.Logger {
	if cached, ok := componentLoggers.Load(component); ok {
		return cached.(zerolog.Logger)
	}
	l := log.With().Str("component", component).Logger()
	componentLoggers.Store(component, l)
	return l
}

// SetLogLevel changes the global level at runtime. Unrecognized names
// are ignored, leaving the current level in place.
func SetLogLevel(name string) {
	if lvl, ok := levelsByName[name]; ok {
		zerolog.SetGlobalLevel(lvl)
	}
}
