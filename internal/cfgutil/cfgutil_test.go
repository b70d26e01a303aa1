// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btckeymgr/pkg/unit"
	"github.com/stretchr/testify/require"
)

func TestAmountFlag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    btcutil.Amount
		wantErr bool
	}{
		{in: "0.0001", want: 10000},
		{in: "1 BTC", want: btcutil.SatoshiPerBitcoin},
		{in: "546 sat", want: 546},
		{in: "abc", wantErr: true},
		{in: "1.5 sat", wantErr: true},
	}
	for _, test := range tests {
		flag := NewAmountFlag(0)
		err := flag.UnmarshalFlag(test.in)
		if test.wantErr {
			require.Errorf(t, err, "input %q", test.in)
			continue
		}
		require.NoErrorf(t, err, "input %q", test.in)
		require.Equal(t, test.want, flag.Amount)
	}

	s, err := NewAmountFlag(10000).MarshalFlag()
	require.NoError(t, err)
	require.Equal(t, "0.00010000 BTC", s)

	// Marshaled amounts parse back to the same value.
	flag := NewAmountFlag(0)
	require.NoError(t, flag.UnmarshalFlag(s))
	require.Equal(t, btcutil.Amount(10000), flag.Amount)
}

func TestFeeRateFlag(t *testing.T) {
	t.Parallel()

	flag := NewFeeRateFlag(1)
	require.NoError(t, flag.UnmarshalFlag("12 sat/vB"))
	require.Equal(t, unit.SatPerVByte(12), flag.SatPerVByte)

	require.NoError(t, flag.UnmarshalFlag("3"))
	require.Equal(t, unit.SatPerVByte(3), flag.SatPerVByte)

	require.Error(t, flag.UnmarshalFlag("-1"))
	require.Error(t, flag.UnmarshalFlag("fast"))
}

func TestExplicitString(t *testing.T) {
	t.Parallel()

	s := NewExplicitString("default")
	require.False(t, s.ExplicitlySet())
	require.Equal(t, "default", s.String())

	require.NoError(t, s.UnmarshalFlag("default"))
	require.True(t, s.ExplicitlySet())
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "file")

	exists, err := FileExists(path)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, os.WriteFile(path, nil, 0600))
	exists, err = FileExists(path)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestCleanAndExpandPath(t *testing.T) {
	t.Setenv("KEYMGR_TEST_DIR", "/tmp/keymgr")

	require.Equal(t, "", CleanAndExpandPath(""))
	require.Equal(t, "/tmp/keymgr/data",
		CleanAndExpandPath("$KEYMGR_TEST_DIR/./data/"))

	u, err := user.Current()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(u.HomeDir, "wallet"),
		CleanAndExpandPath("~/wallet"))
}
