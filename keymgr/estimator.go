// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btckeymgr/pkg/unit"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

const (
	// inputOverhead is the serialized size of an input without its
	// signature script: previous outpoint and sequence.
	inputOverhead = 32 + 4 + 4

	// txOverhead is the serialized size of the version and lock time.
	txOverhead = 4 + 4

	// witnessHeader is the size of the segwit marker and flag.
	witnessHeader = 2
)

// InputSizeEstimate is the worst case size of the data needed to redeem an
// input.
type InputSizeEstimate struct {
	// SigScriptSize is the size of the signature script including its
	// length prefix.
	SigScriptSize int

	// WitnessSize is the size of the witness stack including the item
	// count. It is zero for inputs without witness data.
	WitnessSize int
}

// Size returns the number of redeem bytes of the input, counting witness
// bytes at full size.
func (e InputSizeEstimate) Size() int {
	return e.SigScriptSize + e.WitnessSize
}

// Weight returns the weight of the complete input.
func (e InputSizeEstimate) Weight() unit.WeightUnit {
	base := inputOverhead + e.SigScriptSize
	return unit.WeightUnit(
		base*blockchain.WitnessScaleFactor + e.WitnessSize,
	)
}

// VSize returns the virtual size of the complete input.
func (e InputSizeEstimate) VSize() unit.VByte {
	return e.Weight().ToVB()
}

// EstimateInputSize returns the size estimate for spending pkScript with a
// key of the given scheme. Pay-to-script-hash outputs of nested schemes are
// redeemed by a witness program push and a witness stack; everything else is
// redeemed by a pay-to-pubkey-hash signature script.
func EstimateInputSize(scheme Scheme, pkScript []byte) InputSizeEstimate {
	if scheme.nested() && txscript.IsPayToScriptHash(pkScript) {
		return InputSizeEstimate{
			SigScriptSize: wire.VarIntSerializeSize(
				txsizes.RedeemNestedP2WPKHScriptSize,
			) + txsizes.RedeemNestedP2WPKHScriptSize,
			WitnessSize: txsizes.RedeemP2WPKHInputWitnessWeight,
		}
	}

	return InputSizeEstimate{
		SigScriptSize: wire.VarIntSerializeSize(
			txsizes.RedeemP2PKHSigScriptSize,
		) + txsizes.RedeemP2PKHSigScriptSize,
	}
}

// EstimateWeight returns the worst case weight of a transaction redeeming
// the given inputs and paying to outputs.
func EstimateWeight(inputs []InputSizeEstimate,
	outputs []*wire.TxOut) unit.WeightUnit {

	base := txOverhead +
		wire.VarIntSerializeSize(uint64(len(inputs))) +
		wire.VarIntSerializeSize(uint64(len(outputs)))
	for _, out := range outputs {
		base += out.SerializeSize()
	}

	weight := unit.WeightUnit(base * blockchain.WitnessScaleFactor)

	hasWitness := false
	for _, in := range inputs {
		weight += in.Weight()
		if in.WitnessSize > 0 {
			hasWitness = true
		}
	}

	// Once any input carries a witness, every input needs at least an
	// empty witness stack.
	if hasWitness {
		weight += witnessHeader
		for _, in := range inputs {
			if in.WitnessSize == 0 {
				weight++
			}
		}
	}

	return weight
}

// EstimateVirtualSize returns the worst case virtual size of a transaction
// redeeming the given inputs and paying to outputs.
func EstimateVirtualSize(inputs []InputSizeEstimate,
	outputs []*wire.TxOut) unit.VByte {

	return EstimateWeight(inputs, outputs).ToVB()
}
