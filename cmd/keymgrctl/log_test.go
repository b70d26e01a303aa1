// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"strings"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/stretchr/testify/require"
)

func TestParseAndSetDebugLevels(t *testing.T) {
	require.NoError(t, parseAndSetDebugLevels("debug"))
	require.Equal(t, btclog.LevelDebug, kmgrLog.Level())
	require.Equal(t, btclog.LevelDebug, log.Level())

	require.NoError(t, parseAndSetDebugLevels("KMGR=trace,KCHE=warn"))
	require.Equal(t, btclog.LevelTrace, kmgrLog.Level())
	require.Equal(t, btclog.LevelWarn, cacheLog.Level())
	require.Equal(t, btclog.LevelDebug, log.Level())

	tests := []string{
		"loud",
		"KMGR=loud",
		"NOPE=info",
		"KMGR=info,debug",
	}
	for _, test := range tests {
		require.Errorf(t, parseAndSetDebugLevels(test), "level %q", test)
	}

	require.Equal(t, "KCHE,KCTL,KMGR",
		strings.Join(supportedSubsystems(), ","))

	require.NoError(t, parseAndSetDebugLevels(defaultLogLevel))
}
