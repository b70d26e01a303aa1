// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
)

// ErrUnknownNetwork is returned by ByName when no profile carries the
// requested name.
var ErrUnknownNetwork = errors.New("unknown network")

// DigestPolicy selects how input signature digests are computed on a
// network.
type DigestPolicy uint8

const (
	// DigestStandard signs legacy inputs with the original sighash
	// algorithm and segwit inputs with BIP143.
	DigestStandard DigestPolicy = iota

	// DigestForkID signs every input with the BIP143 digest and sets the
	// fork-id bit (0x40) in the hash type, as required by Bitcoin Cash
	// style replay protection.
	DigestForkID
)

// String returns the policy as a human readable name.
func (d DigestPolicy) String() string {
	switch d {
	case DigestStandard:
		return "standard"
	case DigestForkID:
		return "forkid"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// Params is used to group parameters for various networks such as the main
// network and test networks.
type Params struct {
	*chaincfg.Params

	// Digest is the signature digest policy of the network.
	Digest DigestPolicy

	// ForkID is the value placed in the upper bits of the hash type when
	// Digest is DigestForkID. It is zero for Bitcoin Cash.
	ForkID uint32

	// SegWit reports whether the network accepts witness spends. Nested
	// (bip49) wallets are rejected on networks without it.
	SegWit bool
}

// MainNetParams contains parameters specific to the bitcoin main network
// (wire.MainNet).
var MainNetParams = Params{
	Params: &chaincfg.MainNetParams,
	SegWit: true,
}

// TestNet3Params contains parameters specific to the bitcoin test network
// (version 3) (wire.TestNet3).
var TestNet3Params = Params{
	Params: &chaincfg.TestNet3Params,
	SegWit: true,
}

// RegressionNetParams contains parameters specific to the bitcoin regression
// test network (wire.TestNet).
var RegressionNetParams = Params{
	Params: &chaincfg.RegressionNetParams,
	SegWit: true,
}

// SimNetParams contains parameters specific to the simulation test network
// (wire.SimNet).
var SimNetParams = Params{
	Params: &chaincfg.SimNetParams,
	SegWit: true,
}

// profiles maps every known profile by its name.
var profiles = map[string]*Params{}

func addProfile(p *Params) {
	profiles[p.Name] = p
}

func init() {
	addProfile(&MainNetParams)
	addProfile(&TestNet3Params)
	addProfile(&RegressionNetParams)
	addProfile(&SimNetParams)
	addProfile(&TestNet4Params)
	addProfile(&BitcoinCashParams)
	addProfile(&BitcoinCashTestNetParams)
	addProfile(&LitecoinParams)
	addProfile(&LitecoinTestNetParams)

	// Extended keys of the fork networks must be neuterable, which
	// requires their HD version bytes to be known to chaincfg.
	for _, p := range profiles {
		err := chaincfg.RegisterHDKeyID(
			p.HDPublicKeyID[:], p.HDPrivateKeyID[:],
		)
		if err != nil {
			panic(fmt.Sprintf("unable to register HD key ids "+
				"for %s: %v", p.Name, err))
		}
	}
}

// ByName returns the network profile with the given name.
func ByName(name string) (*Params, error) {
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}

	return p, nil
}

// Names returns the names of all known profiles in sorted order.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
