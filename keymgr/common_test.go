// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btckeymgr/netparams"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

// testMnemonic is the well known all-abandon BIP39 test mnemonic.
const testMnemonic = "abandon abandon abandon abandon abandon abandon " +
	"abandon abandon abandon abandon abandon about"

// otherMnemonic is a second valid mnemonic used for foreign wallets.
const otherMnemonic = "legal winner thank year wave sausage worth " +
	"useful legal winner thank yellow"

// newTestManager creates and loads a manager over testMnemonic.
func newTestManager(t *testing.T, scheme Scheme, gapLimit int,
	net *netparams.Params) *KeyManager {

	t.Helper()

	m, err := New(&Config{
		Scheme:   scheme,
		Seed:     testMnemonic,
		GapLimit: gapLimit,
		Net:      net,
	})
	require.NoError(t, err)
	require.NoError(t, m.Load())

	return m
}

// foreignAddress returns a receive address of an unrelated wallet on the
// same network.
func foreignAddress(t *testing.T, net *netparams.Params) string {
	t.Helper()

	m, err := New(&Config{
		Scheme:   SchemeBIP44,
		Seed:     otherMnemonic,
		GapLimit: 1,
		Net:      net,
	})
	require.NoError(t, err)
	require.NoError(t, m.Load())

	addr := m.ReceiveAddress()
	require.NotEmpty(t, addr)

	return addr
}

// fundingTx creates a transaction paying the given values to pkScript. The
// nonce makes the transaction hash unique.
func fundingTx(pkScript []byte, nonce uint32,
	values ...btcutil.Amount) *wire.MsgTx {

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{
		Hash:  chainhash.Hash{0x01},
		Index: nonce,
	}, nil, nil))
	for _, v := range values {
		tx.AddTxOut(wire.NewTxOut(int64(v), pkScript))
	}
	return tx
}

// fund records the outputs of tx as held by addr and returns them as
// spendable coins confirmed at height.
func fund(t *testing.T, m *KeyManager, addr Address, tx *wire.MsgTx,
	height int32) []SpendableUtxo {

	t.Helper()

	info := &AddressInfo{
		DisplayAddress: addr.DisplayAddress,
		Path:           addr.Path,
		Used:           true,
	}
	var utxos []SpendableUtxo
	for i, out := range tx.TxOut {
		op := wire.OutPoint{Hash: tx.TxHash(), Index: uint32(i)}
		info.Utxos = append(info.Utxos, UtxoInfo{
			OutPoint: op,
			Value:    btcutil.Amount(out.Value),
		})
		utxos = append(utxos, SpendableUtxo{
			OutPoint: op,
			Height:   height,
			Tx:       tx,
		})
	}
	m.UpdateAddressInfo(addr.ScriptHash, info)

	return utxos
}

// requireErrorCode asserts err is a ManagerError with the given code.
func requireErrorCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()

	require.Error(t, err)
	require.Truef(t, IsError(err, code), "want %v, got %s", code,
		spew.Sdump(err))
}

// requireIndexInvariant checks that every ring lists its children in index
// order and that both indexes hold exactly the derived addresses.
func requireIndexInvariant(t *testing.T, m *KeyManager) {
	t.Helper()

	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, branch := range []Branch{BranchReceive, BranchChange} {
		for i, addr := range m.keys.branch(branch).children {
			require.Equal(t, uint32(i), addr.Index)
			require.Equal(t, branch, addr.Branch)
			require.Same(t, addr, m.addrsByDisplay[addr.DisplayAddress])
			require.Same(t, addr, m.addrsByScript[addr.ScriptHash])
			total++
		}
	}
	require.Len(t, m.addrsByDisplay, total)
	require.Len(t, m.addrsByScript, total)
}
