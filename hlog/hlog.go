// Package hlog sets up the logr logger of the icedash tools.
package hlog

import (
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level converts the command line flags to a zerolog level. Debug enables the
// V(1) wire traffic logs.
func Level(verbose, debug bool) zerolog.Level {
	switch {
	case debug:
		return zerolog.DebugLevel
	case verbose:
		return zerolog.InfoLevel
	}
	return zerolog.WarnLevel
}

// IsTerminal reports whether stderr is a terminal.
func IsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Init returns the process logger. Logs go to stderr, human readable on a
// terminal. If file is set they go to that file instead, as JSON, rotated by
// size.
func Init(verbose, debug bool, file string) logr.Logger {
	var w io.Writer = os.Stderr
	if file != "" {
		w = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	} else if IsTerminal() {
		_, noColor := os.LookupEnv("NO_COLOR")
		w = zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor, TimeFormat: time.RFC3339}
	}
	return New(w, Level(verbose, debug))
}

// New returns a logger writing to w at the given level.
func New(w io.Writer, level zerolog.Level) logr.Logger {
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"
	zerologr.SetMaxV(1)
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return zerologr.New(&zl)
}
