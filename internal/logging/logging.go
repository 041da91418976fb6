// Package logging sets up the structured, leveled logger every component
// uses in place of the original's LOG/DEBUG kprintf macros. -v raises the
// level from info to debug, mirroring the __log_level bump in GetOpts.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the base logger (see Component for a component-scoped child) writing to w (os.Stderr in
// production, a buffer in tests) at debug level iff verbose is set.
func New(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the given component name,
// the idiom used throughout the server (claimworker, regen, httpserver, ...).
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// Default returns New(os.Stderr, verbose); cmd/turfwar uses it for the
// process logger.
func Default(verbose bool) zerolog.Logger {
	return New(os.Stderr, verbose)
}
