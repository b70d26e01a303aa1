// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/require"
)

// TestParseScheme checks scheme names round trip and unknown names fail.
func TestParseScheme(t *testing.T) {
	t.Parallel()

	for _, s := range []Scheme{SchemeBIP32, SchemeBIP44, SchemeBIP49} {
		parsed, err := ParseScheme(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}

	parsed, err := ParseScheme("BIP49")
	require.NoError(t, err)
	require.Equal(t, SchemeBIP49, parsed)

	_, err = ParseScheme("bip84")
	requireErrorCode(t, err, ErrConfig)

	require.Equal(t, "unknown(9)", Scheme(9).String())
	require.Equal(t, "branch(7)", Branch(7).String())
}

// TestMasterPath checks the account paths of every scheme.
func TestMasterPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scheme   Scheme
		coinType uint32
		account  uint32
		want     string
	}{
		{SchemeBIP32, 0, 5, "m/0"},
		{SchemeBIP44, 0, 0, "m/44'/0'/0'"},
		{SchemeBIP44, 145, 2, "m/44'/145'/2'"},
		{SchemeBIP49, 1, 0, "m/49'/1'/0'"},
	}
	for _, test := range tests {
		path, err := test.scheme.masterPath(test.coinType, test.account)
		require.NoError(t, err)
		require.Equal(t, test.want, formatPath(path))
	}

	_, err := Scheme(9).masterPath(0, 0)
	requireErrorCode(t, err, ErrConfig)

	require.True(t, SchemeBIP49.nested())
	require.False(t, SchemeBIP44.nested())
	require.False(t, SchemeBIP32.separateChange())
	require.True(t, SchemeBIP44.separateChange())
}

// TestParseChildPath checks child paths are split below the account path.
func TestParseChildPath(t *testing.T) {
	t.Parallel()

	const master = "m/44'/0'/0'"

	branch, index, err := parseChildPath(master, "m/44'/0'/0'/1/17")
	require.NoError(t, err)
	require.Equal(t, BranchChange, branch)
	require.Equal(t, uint32(17), index)

	branch, index, err = parseChildPath("m/0", "m/0/0/3")
	require.NoError(t, err)
	require.Equal(t, BranchReceive, branch)
	require.Equal(t, uint32(3), index)

	bad := []string{
		"m/44'/0'/1'/0/0",
		"m/44'/0'/0'/0",
		"m/44'/0'/0'/0/1/2",
		"m/44'/0'/0'/2/0",
		"m/44'/0'/0'/0/x",
		"m/44'/0'/0'/0/4294967295",
		"m/44'/0'/0'",
	}
	for _, path := range bad {
		_, _, err := parseChildPath(master, path)
		require.Errorf(t, err, "path %s", path)
	}

	require.Equal(t, "m", formatPath(nil))
	require.Equal(t, "m/0'/1", formatPath([]uint32{
		hdkeychain.HardenedKeyStart, 1,
	}))
}
