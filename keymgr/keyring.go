// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// RawKeyRing is the serialized form of one key ring. Empty strings mark keys
// that have not been materialized yet.
type RawKeyRing struct {
	XPriv string
	XPub  string
}

// RawKeys is the serialized form of the manager's key tree, as handed to the
// key cache.
type RawKeys struct {
	Master  RawKeyRing
	Receive RawKeyRing
	Change  RawKeyRing
}

// keyRing is one node of the derivation tree together with the addresses
// derived below it. children[i].Index == i always holds.
type keyRing struct {
	pub      *hdkeychain.ExtendedKey
	priv     *hdkeychain.ExtendedKey
	children []*Address
}

// raw serializes the keys of the ring.
func (r *keyRing) raw() RawKeyRing {
	var raw RawKeyRing
	if r.pub != nil {
		raw.XPub = r.pub.String()
	}
	if r.priv != nil {
		raw.XPriv = r.priv.String()
	}
	return raw
}

// keys is the fixed set of key rings of an account.
type keys struct {
	master  keyRing
	receive keyRing
	change  keyRing
}

// branch returns the key ring of the given branch.
func (k *keys) branch(b Branch) *keyRing {
	if b == BranchChange {
		return &k.change
	}
	return &k.receive
}

// raw serializes all key rings.
func (k *keys) raw() RawKeys {
	return RawKeys{
		Master:  k.master.raw(),
		Receive: k.receive.raw(),
		Change:  k.change.raw(),
	}
}

// parseKeyRing restores the keys of a ring from their serialized form. A
// private key without its public counterpart gets the public key derived.
func parseKeyRing(name string, raw RawKeyRing,
	params *chaincfg.Params) (keyRing, error) {

	var ring keyRing

	if raw.XPriv != "" {
		priv, err := parseExtendedKey(raw.XPriv, true, params)
		if err != nil {
			str := fmt.Sprintf("invalid %s private key", name)
			return ring, managerError(ErrConfig, str, err)
		}
		ring.priv = priv
	}

	if raw.XPub != "" {
		pub, err := parseExtendedKey(raw.XPub, false, params)
		if err != nil {
			str := fmt.Sprintf("invalid %s public key", name)
			return ring, managerError(ErrConfig, str, err)
		}
		ring.pub = pub
	}

	if ring.priv != nil && ring.pub != nil {
		pub, err := ring.priv.Neuter()
		if err != nil {
			str := fmt.Sprintf("unable to neuter %s key", name)
			return ring, managerError(ErrKeyChain, str, err)
		}
		if pub.String() != ring.pub.String() {
			str := fmt.Sprintf("%s private and public keys do "+
				"not match", name)
			return ring, managerError(ErrKeyChain, str, nil)
		}
	}

	return ring, nil
}

// parseExtendedKey decodes a base58 extended key and checks its kind and
// network.
func parseExtendedKey(s string, private bool,
	params *chaincfg.Params) (*hdkeychain.ExtendedKey, error) {

	key, err := hdkeychain.NewKeyFromString(s)
	if err != nil {
		return nil, err
	}
	if key.IsPrivate() != private {
		return nil, fmt.Errorf("expected private=%v key", private)
	}
	if !key.IsForNet(params) {
		return nil, fmt.Errorf("key is not for network %s", params.Name)
	}

	return key, nil
}
