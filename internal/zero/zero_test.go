// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zero_test

import (
	"testing"

	. "github.com/btcsuite/btckeymgr/internal/zero"
	"github.com/stretchr/testify/require"
)

func makeOneBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 1
	}
	return b
}

func TestBytes(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 31, 32, 33, 64, 127} {
		b := makeOneBytes(n)
		Bytes(b)
		require.Equal(t, make([]byte, n), b, "length %d", n)
	}
}
