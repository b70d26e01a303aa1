// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"testing"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btckeymgr/netparams"
	"github.com/stretchr/testify/require"
)

// spendFromBothBranches funds the first receive and change address of m and
// builds a transaction spending both coins.
func spendFromBothBranches(t *testing.T, m *KeyManager,
	net *netparams.Params) *UnsignedTx {

	t.Helper()

	receive := m.Addresses(BranchReceive)[0]
	change := m.Addresses(m.changeBranch())[0]
	if change.ScriptHash == receive.ScriptHash {
		change = m.Addresses(BranchReceive)[1]
	}

	utxos := fund(
		t, m, receive, fundingTx(receive.PkScript, 0, 40000), 100,
	)
	utxos = append(utxos, fund(
		t, m, change, fundingTx(change.PkScript, 1, 40000), 110,
	)...)

	tx, err := m.CreateTransaction(&TxRequest{
		Outputs: []SpendTarget{{
			Address: foreignAddress(t, net),
			Amount:  60000,
		}},
		Utxos:   utxos,
		Height:  200,
		FeeRate: 5,
	})
	require.NoError(t, err)
	require.Len(t, tx.Tx.TxIn, 2)

	return tx
}

// requireSignedVSize checks the signed transaction is not larger than its
// estimate.
func requireSignedVSize(t *testing.T, tx *UnsignedTx) {
	t.Helper()

	weight := blockchain.GetTransactionWeight(btcutil.NewTx(tx.Tx))
	vsize := (weight + blockchain.WitnessScaleFactor - 1) /
		blockchain.WitnessScaleFactor
	require.LessOrEqual(t, vsize, int64(tx.VSize))
}

// TestSignP2PKH signs pay-to-pubkey-hash inputs of both branches.
func TestSignP2PKH(t *testing.T) {
	t.Parallel()

	net := &netparams.MainNetParams
	m := newTestManager(t, SchemeBIP44, 2, net)
	tx := spendFromBothBranches(t, m, net)
	m.DrainEvents()

	require.NoError(t, m.Sign(tx))

	for _, in := range tx.Tx.TxIn {
		require.NotEmpty(t, in.SignatureScript)
		require.Empty(t, in.Witness)
	}
	require.NoError(t, validateMsgTx(&tx.AuthoredTx))
	requireSignedVSize(t, tx)

	// Both branch private keys were derived and announced.
	keys := m.Keys()
	require.NotEmpty(t, keys.Receive.XPriv)
	require.NotEmpty(t, keys.Change.XPriv)
	_, keyEvents := splitEvents(m.DrainEvents())
	require.Len(t, keyEvents, 2)
	require.Equal(t, keys, keyEvents[1].Keys)
}

// TestSignNested signs nested segwit inputs.
func TestSignNested(t *testing.T) {
	t.Parallel()

	net := &netparams.TestNet3Params
	m := newTestManager(t, SchemeBIP49, 2, net)
	tx := spendFromBothBranches(t, m, net)

	require.NoError(t, m.Sign(tx))

	for _, in := range tx.Tx.TxIn {
		// A single push of the 22 byte witness program.
		require.Len(t, in.SignatureScript, 23)
		require.Len(t, in.Witness, 2)
	}
	require.NoError(t, validateMsgTx(&tx.AuthoredTx))
	requireSignedVSize(t, tx)
}

// TestSignBIP32 signs from the shared branch.
func TestSignBIP32(t *testing.T) {
	t.Parallel()

	net := &netparams.RegressionNetParams
	m := newTestManager(t, SchemeBIP32, 3, net)
	tx := spendFromBothBranches(t, m, net)

	require.NoError(t, m.Sign(tx))
	require.NoError(t, validateMsgTx(&tx.AuthoredTx))
	require.Empty(t, m.Keys().Change.XPriv)
}

// TestSignForkID checks inputs on fork-id networks are signed over the
// BIP143 digest with the fork-id hash type.
func TestSignForkID(t *testing.T) {
	t.Parallel()

	net := &netparams.BitcoinCashParams
	m := newTestManager(t, SchemeBIP44, 2, net)
	require.Equal(t, "m/44'/145'/0'/0/0", m.Addresses(BranchReceive)[0].Path)

	tx := spendFromBothBranches(t, m, net)
	require.NoError(t, m.Sign(tx))

	hashType := txscript.SigHashAll | SigHashForkID |
		txscript.SigHashType(net.ForkID<<8)

	fetcher := prevOutFetcher(&tx.AuthoredTx)
	sigHashes := txscript.NewTxSigHashes(tx.Tx, fetcher)
	for i, in := range tx.Tx.TxIn {
		require.Empty(t, in.Witness)

		pushes, err := txscript.PushedData(in.SignatureScript)
		require.NoError(t, err)
		require.Len(t, pushes, 2)

		sig, pubKeyBytes := pushes[0], pushes[1]
		require.Equal(t, byte(0x41), sig[len(sig)-1])

		pubKey, err := btcec.ParsePubKey(pubKeyBytes)
		require.NoError(t, err)
		require.Equal(t, tx.PrevScripts[i][3:23],
			btcutil.Hash160(pubKeyBytes))

		hash, err := txscript.CalcWitnessSigHash(
			tx.PrevScripts[i], sigHashes, hashType, tx.Tx, i,
			int64(tx.PrevInputValues[i]),
		)
		require.NoError(t, err)

		signature, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
		require.NoError(t, err)
		require.True(t, signature.Verify(hash, pubKey))
	}

	// The legacy digest does not validate the fork-id signature.
	require.Error(t, validateMsgTx(&tx.AuthoredTx))
}

// TestSignFromAccountKey checks a manager holding the account public key and
// the seed derives the private key on demand.
func TestSignFromAccountKey(t *testing.T) {
	t.Parallel()

	net := &netparams.MainNetParams
	full := newTestManager(t, SchemeBIP44, 2, net)
	xpub := full.Keys().Master.XPub

	m, err := New(&Config{
		Scheme:   SchemeBIP44,
		RawKeys:  RawKeys{Master: RawKeyRing{XPub: xpub}},
		Seed:     testMnemonic,
		GapLimit: 2,
		Net:      net,
	})
	require.NoError(t, err)
	require.NoError(t, m.Load())
	require.Empty(t, m.Keys().Master.XPriv)

	tx := spendFromBothBranches(t, m, net)
	require.NoError(t, m.Sign(tx))
	require.Equal(t, full.Keys().Master.XPriv, m.Keys().Master.XPriv)

	// A seed of another wallet does not match the cached key.
	wrong, err := New(&Config{
		Scheme:   SchemeBIP44,
		RawKeys:  RawKeys{Master: RawKeyRing{XPub: xpub}},
		Seed:     otherMnemonic,
		GapLimit: 2,
		Net:      net,
	})
	require.NoError(t, err)
	require.NoError(t, wrong.Load())

	tx = spendFromBothBranches(t, wrong, net)
	requireErrorCode(t, wrong.Sign(tx), ErrKeyChain)
}

// TestSignErrors checks the signer refuses inputs it cannot resolve.
func TestSignErrors(t *testing.T) {
	t.Parallel()

	net := &netparams.MainNetParams
	full := newTestManager(t, SchemeBIP44, 2, net)

	watch, err := New(&Config{
		Scheme: SchemeBIP44,
		RawKeys: RawKeys{Master: RawKeyRing{
			XPub: full.Keys().Master.XPub,
		}},
		GapLimit: 2,
		Net:      net,
	})
	require.NoError(t, err)
	require.NoError(t, watch.Load())

	tx := spendFromBothBranches(t, watch, net)
	requireErrorCode(t, watch.Sign(tx), ErrMissingPrivateKey)

	// After closing, the manager is watch-only.
	tx = spendFromBothBranches(t, full, net)
	closed := newTestManager(t, SchemeBIP44, 2, net)
	closed.Close()
	requireErrorCode(t, closed.Sign(tx), ErrMissingPrivateKey)

	// Outputs no longer held by any address cannot be signed.
	receive := full.Addresses(BranchReceive)[0]
	full.UpdateAddressInfo(receive.ScriptHash, nil)
	requireErrorCode(t, full.Sign(tx), ErrUnknownAddress)

	// Neither can inputs whose script does not match the address.
	tx = spendFromBothBranches(t, full, net)
	tx.PrevScripts[0] = p2pkhScript
	requireErrorCode(t, full.Sign(tx), ErrUnknownAddress)

	tx = spendFromBothBranches(t, full, net)
	tx.PrevScripts = tx.PrevScripts[:1]
	requireErrorCode(t, full.Sign(tx), ErrUnknownAddress)
}

// TestResolvePath checks outputs are mapped to the address holding them.
func TestResolvePath(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, SchemeBIP44, 3, &netparams.MainNetParams)
	change := m.Addresses(BranchChange)[2]

	utxos := fund(t, m, change, fundingTx(change.PkScript, 0, 1000, 2000), 1)

	for _, u := range utxos {
		branch, index, err := m.ResolvePath(u.OutPoint)
		require.NoError(t, err)
		require.Equal(t, BranchChange, branch)
		require.Equal(t, uint32(2), index)
	}

	// An info for a script hash that was never derived does not resolve.
	other := fundingTx(p2pkhScript, 1, 5000)
	m.UpdateAddressInfo(ScriptHash(p2pkhScript), &AddressInfo{
		Utxos: []UtxoInfo{{
			OutPoint: utxos[0].OutPoint,
			Value:    1000,
		}},
	})
	_, _, err := m.ResolvePath(utxos[0].OutPoint)
	requireErrorCode(t, err, ErrUnknownAddress)

	_, _, err = m.ResolvePath(utxos[1].OutPoint)
	require.NoError(t, err)

	_, _, err = m.ResolvePath(other.TxIn[0].PreviousOutPoint)
	requireErrorCode(t, err, ErrUnknownAddress)
}
