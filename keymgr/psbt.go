// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ExportPSBT converts an unsigned transaction into a PSBT packet for an
// external signer. Every input carries the full previous transaction. Inputs
// resolving to a wallet address also carry the key derivation, and nested
// ones the spent output and redeem script. The root fingerprint is only
// known once the seed has been used and is zero otherwise.
func (m *KeyManager) ExportPSBT(tx *UnsignedTx) (*psbt.Packet, error) {
	if len(tx.PrevTxs) != len(tx.Tx.TxIn) ||
		len(tx.PrevScripts) != len(tx.Tx.TxIn) {

		return nil, managerError(ErrInvalidUtxo, "previous output data "+
			"does not match the inputs", nil)
	}

	packet, err := psbt.NewFromUnsignedTx(tx.Tx.Copy())
	if err != nil {
		return nil, managerError(ErrSanityCheck, "unable to create psbt",
			err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, txIn := range tx.Tx.TxIn {
		in := &packet.Inputs[i]
		in.NonWitnessUtxo = tx.PrevTxs[i]
		in.SighashType = txscript.SigHashAll

		pkScript := tx.PrevScripts[i]
		addr, err := m.resolveOutPoint(txIn.PreviousOutPoint)
		if err != nil || !bytes.Equal(addr.PkScript, pkScript) {
			log.Debugf("Input %d of PSBT is not a wallet output", i)
			continue
		}

		derivation, redeemScript, err := m.keyOrigin(addr)
		if err != nil {
			return nil, err
		}
		in.Bip32Derivation = []*psbt.Bip32Derivation{derivation}

		if redeemScript != nil {
			in.WitnessUtxo = wire.NewTxOut(
				int64(tx.PrevInputValues[i]), pkScript,
			)
			in.RedeemScript = redeemScript
		}
	}

	return packet, nil
}

// keyOrigin returns the PSBT key origin of a wallet address and, for nested
// addresses, its redeem script.
func (m *KeyManager) keyOrigin(addr *Address) (*psbt.Bip32Derivation,
	[]byte, error) {

	branchKey := m.keys.branch(addr.Branch).pub
	if branchKey == nil {
		str := fmt.Sprintf("%s branch key is not loaded", addr.Branch)
		return nil, nil, managerError(ErrMissingKey, str, nil)
	}
	child, err := branchKey.Derive(addr.Index)
	if err != nil {
		str := fmt.Sprintf("unable to derive %s key %d", addr.Branch,
			addr.Index)
		return nil, nil, managerError(ErrKeyChain, str, err)
	}
	pubKey, err := child.ECPubKey()
	if err != nil {
		return nil, nil, managerError(ErrKeyChain, "invalid child key",
			err)
	}

	var redeemScript []byte
	if m.scheme.nested() {
		_, redeemScript, err = newAddress(child, true, m.net.Params)
		if err != nil {
			return nil, nil, managerError(ErrKeyChain, "unable to "+
				"build redeem script", err)
		}
	}

	path := append(append([]uint32(nil), m.masterPath...),
		uint32(addr.Branch), addr.Index)

	return &psbt.Bip32Derivation{
		PubKey:               pubKey.SerializeCompressed(),
		MasterKeyFingerprint: m.rootFingerprint,
		Bip32Path:            path,
	}, redeemScript, nil
}
