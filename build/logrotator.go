// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

// RotatingLogWriter is a log writer that copies every message to a console
// writer and, once InitLogRotator was called, to a rotating log file.
type RotatingLogWriter struct {
	console io.Writer
	rotator *rotator.Rotator
}

// NewRotatingLogWriter creates a new log writer echoing to console. A nil
// console disables the echo.
//
// NOTE: InitLogRotator must be called to set up log rotation after creating
// the writer.
func NewRotatingLogWriter(console io.Writer) *RotatingLogWriter {
	return &RotatingLogWriter{console: console}
}

// InitLogRotator initializes the log file rotator to write logs to logFile and
// create roll files in the same directory. Files are rolled once they reach
// maxFileSizeKB and at most maxFiles rolls are kept. A rotator set up by an
// earlier call is closed first.
func (r *RotatingLogWriter) InitLogRotator(logFile string, maxFileSizeKB int64,
	maxFiles int) error {

	if err := r.Close(); err != nil {
		return err
	}

	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	var err error
	r.rotator, err = rotator.New(logFile, maxFileSizeKB, false, maxFiles)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	return nil
}

// Write writes the byte slice to the console and the log rotator, if present.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	if r.console != nil {
		_, _ = r.console.Write(b)
	}
	if r.rotator != nil {
		return r.rotator.Write(b)
	}

	return len(b), nil
}

// Close closes the underlying log rotator if it has already been created.
func (r *RotatingLogWriter) Close() error {
	if r.rotator == nil {
		return nil
	}

	err := r.rotator.Close()
	r.rotator = nil
	return err
}
