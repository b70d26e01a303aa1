// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

import (
	"os"

	"github.com/btcsuite/btclog"
)

// LogType is the kind of logging selected by the build tags.
type LogType byte

const (
	// LogTypeNone indicates no logging.
	LogTypeNone LogType = iota

	// LogTypeConsole writes every subsystem straight to stderr. Tools
	// print their results on stdout, so logs never go there.
	LogTypeConsole

	// LogTypeDefault routes all subsystems through the caller's backend,
	// usually a RotatingLogWriter.
	LogTypeDefault
)

// String returns a human readable identifier for the logging type.
func (t LogType) String() string {
	switch t {
	case LogTypeNone:
		return "none"
	case LogTypeConsole:
		return "console"
	case LogTypeDefault:
		return "default"
	default:
		return "unknown"
	}
}

// NewSubLogger returns the logger of a subsystem. genSubLogger creates it from
// the shared backend; a nil constructor disables the subsystem unless the
// build logs to the console.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	switch {
	case LoggingType == LogTypeNone:
		return btclog.Disabled

	// Development builds with the stdlog tag log each subsystem to its own
	// console backend at the level picked by the debug tag.
	case Deployment == Development && LoggingType == LogTypeConsole:
		logger := btclog.NewBackend(os.Stderr).Logger(subsystem)
		level, _ := btclog.LevelFromString(LogLevel)
		logger.SetLevel(level)
		return logger

	case genSubLogger != nil:
		return genSubLogger(subsystem)
	}

	return btclog.Disabled
}
