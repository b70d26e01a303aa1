// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadSecretLine(t *testing.T) {
	t.Parallel()

	r := bufio.NewReader(strings.NewReader("  word word\npassphrase\n\n"))

	seed, err := readSecretLine(r)
	require.NoError(t, err)
	require.Equal(t, "word word", seed)

	passphrase, err := readSecretLine(r)
	require.NoError(t, err)
	require.Equal(t, "passphrase", passphrase)

	_, err = readSecretLine(r)
	require.Error(t, err)

	// A final line without a newline is accepted.
	seed, err = readSecretLine(bufio.NewReader(strings.NewReader("c2VlZA==")))
	require.NoError(t, err)
	require.Equal(t, "c2VlZA==", seed)
}
