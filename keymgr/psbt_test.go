// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btckeymgr/netparams"
	"github.com/stretchr/testify/require"
)

// TestExportPSBT checks the key origins and previous outputs attached to the
// inputs of an exported packet.
func TestExportPSBT(t *testing.T) {
	t.Parallel()

	const h = hdkeychain.HardenedKeyStart

	net := &netparams.MainNetParams
	m := newTestManager(t, SchemeBIP49, 2, net)
	addr := m.Addresses(BranchChange)[1]

	foreignTx := fundingTx(p2pkhScript, 7, 30000)
	utxos := []SpendableUtxo{{
		OutPoint: wire.OutPoint{Hash: foreignTx.TxHash()},
		Height:   10,
		Tx:       foreignTx,
	}}
	walletTx := fundingTx(addr.PkScript, 8, 30000)
	utxos = append(utxos, fund(t, m, addr, walletTx, 20)...)

	tx, err := m.CreateTransaction(&TxRequest{
		Outputs: []SpendTarget{{
			Address: foreignAddress(t, net),
			Amount:  50000,
		}},
		Utxos:   utxos,
		Height:  100,
		FeeRate: 1,
	})
	require.NoError(t, err)
	require.Len(t, tx.Tx.TxIn, 2)

	packet, err := m.ExportPSBT(tx)
	require.NoError(t, err)
	require.Len(t, packet.Inputs, 2)
	require.Len(t, packet.Outputs, 2)

	foreign := packet.Inputs[0]
	require.Same(t, foreignTx, foreign.NonWitnessUtxo)
	require.Empty(t, foreign.Bip32Derivation)
	require.Nil(t, foreign.WitnessUtxo)
	require.Equal(t, txscript.SigHashAll, foreign.SighashType)

	wallet := packet.Inputs[1]
	require.Same(t, walletTx, wallet.NonWitnessUtxo)
	require.NotNil(t, wallet.WitnessUtxo)
	require.Equal(t, int64(30000), wallet.WitnessUtxo.Value)
	require.Equal(t, addr.PkScript, wallet.WitnessUtxo.PkScript)
	require.Equal(t, addr.RedeemScript, wallet.RedeemScript)

	require.Len(t, wallet.Bip32Derivation, 1)
	derivation := wallet.Bip32Derivation[0]
	require.Equal(t, []uint32{49 + h, h, h, 1, 1}, derivation.Bip32Path)
	require.Len(t, derivation.PubKey, 33)
	require.Equal(t,
		binary.LittleEndian.Uint32([]byte{0x73, 0xc5, 0xda, 0x0a}),
		derivation.MasterKeyFingerprint)

	// The packet survives serialization.
	encoded, err := packet.B64Encode()
	require.NoError(t, err)
	decoded, err := psbt.NewFromRawBytes(
		bytes.NewReader([]byte(encoded)), true,
	)
	require.NoError(t, err)
	require.Equal(t, tx.Tx.TxHash(), decoded.UnsignedTx.TxHash())
	require.Equal(t, derivation.Bip32Path,
		decoded.Inputs[1].Bip32Derivation[0].Bip32Path)

	// The transaction passed in is left untouched.
	for _, in := range tx.Tx.TxIn {
		require.Empty(t, in.SignatureScript)
	}
}

// TestExportPSBTLegacy checks pay-to-pubkey-hash inputs carry no witness
// data.
func TestExportPSBTLegacy(t *testing.T) {
	t.Parallel()

	net := &netparams.MainNetParams
	m := newTestManager(t, SchemeBIP44, 2, net)
	addr := m.Addresses(BranchReceive)[0]

	utxos := fund(t, m, addr, fundingTx(addr.PkScript, 0, 30000), 20)
	tx, err := m.CreateTransaction(&TxRequest{
		Outputs: []SpendTarget{{
			Address: foreignAddress(t, net),
			Amount:  10000,
		}},
		Utxos:   utxos,
		Height:  100,
		FeeRate: 1,
	})
	require.NoError(t, err)

	packet, err := m.ExportPSBT(tx)
	require.NoError(t, err)

	in := packet.Inputs[0]
	require.Nil(t, in.WitnessUtxo)
	require.Nil(t, in.RedeemScript)
	require.Len(t, in.Bip32Derivation, 1)
	require.Equal(t, addr.Path, formatPath(in.Bip32Derivation[0].Bip32Path))

	tx.PrevTxs = nil
	_, err = m.ExportPSBT(tx)
	requireErrorCode(t, err, ErrInvalidUtxo)
}
