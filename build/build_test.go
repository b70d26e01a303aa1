// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/stretchr/testify/require"
)

// TestStringers checks the names of the build enums.
func TestStringers(t *testing.T) {
	t.Parallel()

	require.Equal(t, "none", LogTypeNone.String())
	require.Equal(t, "console", LogTypeConsole.String())
	require.Equal(t, "default", LogTypeDefault.String())
	require.Equal(t, "unknown", LogType(9).String())

	require.Equal(t, "development", Development.String())
	require.Equal(t, "production", Production.String())
	require.Equal(t, "unknown", DeploymentType(9).String())
}

// TestRotatingLogWriter checks log lines reach both the console and the log
// file.
func TestRotatingLogWriter(t *testing.T) {
	t.Parallel()

	var console bytes.Buffer
	w := NewRotatingLogWriter(&console)

	// Writing before the rotator is set up only echoes.
	n, err := w.Write([]byte("early\n"))
	require.NoError(t, err)
	require.Equal(t, 6, n)

	logFile := filepath.Join(t.TempDir(), "logs", "test.log")
	require.NoError(t, w.InitLogRotator(logFile, 10, 3))

	backend := btclog.NewBackend(w)
	logger := NewSubLogger("TEST", backend.Logger)
	logger.SetLevel(btclog.LevelInfo)
	logger.Infof("hello %s", "rotator")
	require.NoError(t, w.Close())

	require.Contains(t, console.String(), "early")
	require.Contains(t, console.String(), "TEST: hello rotator")

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(content), "TEST: hello rotator")
	require.NotContains(t, string(content), "early")
}
