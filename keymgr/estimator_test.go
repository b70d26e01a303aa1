// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btckeymgr/pkg/unit"
	"github.com/stretchr/testify/require"
)

var (
	p2pkhScript = append(append([]byte{0x76, 0xa9, 0x14},
		bytes.Repeat([]byte{0x11}, 20)...), 0x88, 0xac)
	p2shScript = append(append([]byte{0xa9, 0x14},
		bytes.Repeat([]byte{0x22}, 20)...), 0x87)
)

// TestEstimateInputSize checks the per input estimates of both address
// kinds.
func TestEstimateInputSize(t *testing.T) {
	t.Parallel()

	legacy := EstimateInputSize(SchemeBIP44, p2pkhScript)
	require.Equal(t, 109, legacy.SigScriptSize)
	require.Zero(t, legacy.WitnessSize)
	require.Equal(t, unit.VByte(149), legacy.VSize())

	nested := EstimateInputSize(SchemeBIP49, p2shScript)
	require.Equal(t, 24, nested.SigScriptSize)
	require.Equal(t, 109, nested.WitnessSize)
	require.Equal(t, unit.WeightUnit(365), nested.Weight())

	// Nested inputs carry more redeem data but weigh less.
	require.Greater(t, nested.Size(), legacy.Size())
	require.Less(t, nested.VSize(), legacy.VSize())

	// Only nested schemes redeem script hash outputs with a witness.
	require.Equal(t, legacy, EstimateInputSize(SchemeBIP44, p2shScript))
	require.Equal(t, legacy, EstimateInputSize(SchemeBIP49, p2pkhScript))
}

// TestEstimateVirtualSize checks whole transaction estimates.
func TestEstimateVirtualSize(t *testing.T) {
	t.Parallel()

	legacy := EstimateInputSize(SchemeBIP44, p2pkhScript)
	nested := EstimateInputSize(SchemeBIP49, p2shScript)
	out := wire.NewTxOut(1000, p2pkhScript)

	tests := []struct {
		name    string
		inputs  []InputSizeEstimate
		outputs []*wire.TxOut
		weight  unit.WeightUnit
		vsize   unit.VByte
	}{
		{
			name:    "p2pkh 1-in 2-out",
			inputs:  []InputSizeEstimate{legacy},
			outputs: []*wire.TxOut{out, out},
			weight:  908,
			vsize:   227,
		},
		{
			name:    "nested 1-in 1-out",
			inputs:  []InputSizeEstimate{nested},
			outputs: []*wire.TxOut{out},
			weight:  543,
			vsize:   136,
		},
		{
			name:    "mixed 2-in 1-out",
			inputs:  []InputSizeEstimate{nested, legacy},
			outputs: []*wire.TxOut{out},
			weight:  176 + 365 + 596 + 2 + 1,
			vsize:   285,
		},
		{
			name:    "no outputs",
			inputs:  []InputSizeEstimate{legacy},
			outputs: nil,
			weight:  40 + 596,
			vsize:   159,
		},
	}
	for _, test := range tests {
		require.Equal(t, test.weight,
			EstimateWeight(test.inputs, test.outputs), test.name)
		require.Equal(t, test.vsize,
			EstimateVirtualSize(test.inputs, test.outputs), test.name)
	}
}
