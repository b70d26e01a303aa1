// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Address is a derived wallet address. Addresses are created by the gap
// limit scanner and never change afterwards.
type Address struct {
	// DisplayAddress is the encoded address handed out to payers.
	DisplayAddress string

	// ScriptHash is the Electrum style identifier of the output script:
	// the SHA256 of the script, byte reversed and hex encoded.
	ScriptHash string

	// Path is the full derivation path of the address key.
	Path string

	// Branch and Index locate the key below the account key.
	Branch Branch
	Index  uint32

	// PkScript is the output script paying to the address.
	PkScript []byte

	// RedeemScript is the witness program wrapped by nested addresses. It
	// is nil for pay-to-pubkey-hash addresses.
	RedeemScript []byte
}

// UtxoInfo describes an unspent output paying to an address.
type UtxoInfo struct {
	OutPoint wire.OutPoint
	Value    btcutil.Amount
}

// AddressInfo is the externally maintained state of an address, keyed by
// script hash. The manager only reads it.
type AddressInfo struct {
	DisplayAddress string
	Path           string
	Used           bool
	Utxos          []UtxoInfo
}

// copyInfo returns a deep copy of the address info.
func copyInfo(info *AddressInfo) *AddressInfo {
	c := *info
	c.Utxos = append([]UtxoInfo(nil), info.Utxos...)
	return &c
}

// ScriptHash returns the Electrum style script hash of an output script.
func ScriptHash(pkScript []byte) string {
	return chainhash.HashH(pkScript).String()
}

// newAddress builds the address paying to the public key of child, wrapping
// the witness program in a script hash when nested is set.
func newAddress(child *hdkeychain.ExtendedKey, nested bool,
	params *chaincfg.Params) (btcutil.Address, []byte, error) {

	pubKey, err := child.ECPubKey()
	if err != nil {
		return nil, nil, err
	}
	pkHash := btcutil.Hash160(pubKey.SerializeCompressed())

	if !nested {
		addr, err := btcutil.NewAddressPubKeyHash(pkHash, params)
		return addr, nil, err
	}

	witnessAddr, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, params)
	if err != nil {
		return nil, nil, err
	}
	redeemScript, err := txscript.PayToAddrScript(witnessAddr)
	if err != nil {
		return nil, nil, err
	}
	addr, err := btcutil.NewAddressScriptHash(redeemScript, params)
	if err != nil {
		return nil, nil, err
	}

	return addr, redeemScript, nil
}

// deriveAddress derives the child at index below the public branch key and
// returns its address record.
func (m *KeyManager) deriveAddress(branchKey *hdkeychain.ExtendedKey,
	branch Branch, index uint32) (*Address, error) {

	child, err := branchKey.Derive(index)
	if err != nil {
		str := fmt.Sprintf("failed to derive %s address %d", branch,
			index)
		return nil, managerError(ErrKeyChain, str, err)
	}

	addr, redeemScript, err := newAddress(
		child, m.scheme.nested(), m.net.Params,
	)
	if err != nil {
		str := fmt.Sprintf("failed to encode %s address %d", branch,
			index)
		return nil, managerError(ErrKeyChain, str, err)
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		str := fmt.Sprintf("failed to build script for %s address %d",
			branch, index)
		return nil, managerError(ErrKeyChain, str, err)
	}

	path := append(append([]uint32(nil), m.masterPath...),
		uint32(branch), index)

	return &Address{
		DisplayAddress: addr.EncodeAddress(),
		ScriptHash:     ScriptHash(pkScript),
		Path:           formatPath(path),
		Branch:         branch,
		Index:          index,
		PkScript:       pkScript,
		RedeemScript:   redeemScript,
	}, nil
}

// cachedAddress rebuilds an address record from cached metadata. The script
// hash is recomputed from the display address and must match the key the
// metadata was stored under.
func (m *KeyManager) cachedAddress(scriptHash string, info *AddressInfo,
	branch Branch, index uint32) (*Address, error) {

	addr, err := btcutil.DecodeAddress(info.DisplayAddress, m.net.Params)
	if err != nil {
		return nil, err
	}
	if !addr.IsForNet(m.net.Params) {
		return nil, fmt.Errorf("address %s is not for %s",
			info.DisplayAddress, m.net.Name)
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	if ScriptHash(pkScript) != scriptHash {
		return nil, fmt.Errorf("script hash mismatch for %s",
			info.DisplayAddress)
	}

	return &Address{
		DisplayAddress: info.DisplayAddress,
		ScriptHash:     scriptHash,
		Path:           info.Path,
		Branch:         branch,
		Index:          index,
		PkScript:       pkScript,
	}, nil
}
