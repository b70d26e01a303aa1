// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btckeymgr/netparams"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
)

// SigHashForkID is the hash type flag selecting the replay protected
// BIP143 digest on Bitcoin Cash style networks.
const SigHashForkID txscript.SigHashType = 0x40

// secretSource is an implementation of txauthor.SecretsSource over the keys
// of the inputs being signed.
type secretSource struct {
	keys   map[string]*btcec.PrivateKey
	params *chaincfg.Params
}

func (s secretSource) GetKey(addr btcutil.Address) (*btcec.PrivateKey,
	bool, error) {

	key, ok := s.keys[addr.EncodeAddress()]
	if !ok {
		return nil, false, fmt.Errorf("no key for address %s",
			addr.EncodeAddress())
	}
	return key, true, nil
}

func (s secretSource) GetScript(addr btcutil.Address) ([]byte, error) {
	return nil, fmt.Errorf("no redeem script for address %s",
		addr.EncodeAddress())
}

func (s secretSource) ChainParams() *chaincfg.Params {
	return s.params
}

// Sign adds signature scripts and witnesses to every input of tx. The keys
// are found through the address infos holding each spent output, and the
// digest follows the network's policy. Keys derived on the way are kept and
// announced.
func (m *KeyManager) Sign(tx *UnsignedTx) error {
	defer m.events.dispatch()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys.master.priv == nil && len(m.seed) == 0 {
		return managerError(ErrMissingPrivateKey, "watch-only manager "+
			"cannot sign", nil)
	}
	if len(tx.PrevScripts) != len(tx.Tx.TxIn) ||
		len(tx.PrevInputValues) != len(tx.Tx.TxIn) {

		return managerError(ErrUnknownAddress, "previous output data "+
			"does not match the inputs", nil)
	}

	if m.keys.master.priv == nil {
		if err := m.deriveMasterPriv(); err != nil {
			return err
		}
	}

	secrets := secretSource{
		keys:   make(map[string]*btcec.PrivateKey, len(tx.Tx.TxIn)),
		params: m.net.Params,
	}
	inputKeys := make([]*btcec.PrivateKey, len(tx.Tx.TxIn))
	for i, txIn := range tx.Tx.TxIn {
		addr, err := m.resolveOutPoint(txIn.PreviousOutPoint)
		if err != nil {
			return err
		}
		if !bytes.Equal(addr.PkScript, tx.PrevScripts[i]) {
			str := fmt.Sprintf("input %d spends a script that does "+
				"not pay to %s", i, addr.DisplayAddress)
			return managerError(ErrUnknownAddress, str, nil)
		}

		key, err := m.privKey(addr.Branch, addr.Index)
		if err != nil {
			return err
		}
		secrets.keys[addr.DisplayAddress] = key
		inputKeys[i] = key
	}

	switch m.net.Digest {
	case netparams.DigestForkID:
		err := signForkID(&tx.AuthoredTx, inputKeys, m.net.ForkID)
		if err != nil {
			return err
		}

	default:
		if err := tx.AddAllInputScripts(secrets); err != nil {
			return managerError(ErrKeyChain, "unable to sign "+
				"transaction", err)
		}
		if err := validateMsgTx(&tx.AuthoredTx); err != nil {
			return err
		}
	}

	log.Debugf("Signed transaction %v with %d inputs", tx.Tx.TxHash(),
		len(tx.Tx.TxIn))

	return nil
}

// privKey returns the private key of an address, deriving and caching the
// private branch key when needed. The caller must hold the write lock and
// have the master private key loaded.
func (m *KeyManager) privKey(branch Branch, index uint32) (*btcec.PrivateKey,
	error) {

	ring := m.keys.branch(branch)
	if ring.priv == nil {
		priv, err := m.keys.master.priv.Derive(uint32(branch))
		if err != nil {
			str := fmt.Sprintf("unable to derive %s branch key",
				branch)
			return nil, managerError(ErrKeyChain, str, err)
		}
		ring.priv = priv
		m.queueKeys()
	}

	child, err := ring.priv.Derive(index)
	if err != nil {
		str := fmt.Sprintf("unable to derive %s key %d", branch, index)
		return nil, managerError(ErrKeyChain, str, err)
	}
	key, err := child.ECPrivKey()
	if err != nil {
		str := fmt.Sprintf("unable to derive %s key %d", branch, index)
		return nil, managerError(ErrKeyChain, str, err)
	}

	return key, nil
}

// signForkID signs every input with the BIP143 digest and the fork-id hash
// type. Only pay-to-pubkey-hash inputs are supported.
func signForkID(tx *txauthor.AuthoredTx, keys []*btcec.PrivateKey,
	forkID uint32) error {

	hashType := txscript.SigHashAll | SigHashForkID |
		txscript.SigHashType(forkID<<8)

	fetcher := prevOutFetcher(tx)
	sigHashes := txscript.NewTxSigHashes(tx.Tx, fetcher)

	for i, txIn := range tx.Tx.TxIn {
		pkScript := tx.PrevScripts[i]
		if !txscript.IsPayToPubKeyHash(pkScript) {
			str := fmt.Sprintf("input %d: only pay-to-pubkey-hash "+
				"outputs can be signed with fork id", i)
			return managerError(ErrKeyChain, str, nil)
		}

		sig, err := txscript.RawTxInWitnessSignature(
			tx.Tx, sigHashes, i, int64(tx.PrevInputValues[i]),
			pkScript, hashType, keys[i],
		)
		if err != nil {
			str := fmt.Sprintf("unable to sign input %d", i)
			return managerError(ErrKeyChain, str, err)
		}

		pubKey := keys[i].PubKey().SerializeCompressed()
		sigScript, err := txscript.NewScriptBuilder().
			AddData(sig).AddData(pubKey).Script()
		if err != nil {
			str := fmt.Sprintf("unable to build script for input %d",
				i)
			return managerError(ErrKeyChain, str, err)
		}
		txIn.SignatureScript = sigScript
	}

	return nil
}

// validateMsgTx runs every input script of the signed transaction through
// the script engine.
func validateMsgTx(tx *txauthor.AuthoredTx) error {
	fetcher := prevOutFetcher(tx)
	sigHashes := txscript.NewTxSigHashes(tx.Tx, fetcher)

	for i, prevScript := range tx.PrevScripts {
		vm, err := txscript.NewEngine(
			prevScript, tx.Tx, i, txscript.StandardVerifyFlags, nil,
			sigHashes, int64(tx.PrevInputValues[i]), fetcher,
		)
		if err != nil {
			str := fmt.Sprintf("cannot create script engine for "+
				"input %d", i)
			return managerError(ErrKeyChain, str, err)
		}
		if err := vm.Execute(); err != nil {
			str := fmt.Sprintf("cannot validate input %d", i)
			return managerError(ErrKeyChain, str, err)
		}
	}

	return nil
}

// prevOutFetcher returns a fetcher for the outputs spent by tx.
func prevOutFetcher(tx *txauthor.AuthoredTx) *txscript.MultiPrevOutFetcher {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, txIn := range tx.Tx.TxIn {
		fetcher.AddPrevOut(txIn.PreviousOutPoint, wire.NewTxOut(
			int64(tx.PrevInputValues[i]), tx.PrevScripts[i],
		))
	}
	return fetcher
}
