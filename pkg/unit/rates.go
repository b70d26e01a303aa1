// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package unit provides a set of types for dealing with bitcoin units.
package unit

import (
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
)

// SatsPerKilo is the number of satoshis in a kilo-satoshi.
const SatsPerKilo = 1000

// SatPerVByte represents a fee rate in sat/vbyte.
type SatPerVByte btcutil.Amount

// ParseSatPerVByte parses a decimal sat/vbyte fee rate.
func ParseSatPerVByte(s string) (SatPerVByte, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative fee rate %d", v)
	}

	return SatPerVByte(v), nil
}

// FeeForVSize calculates the fee resulting from this fee rate and the given
// vsize in vbytes.
func (s SatPerVByte) FeeForVSize(vb VByte) btcutil.Amount {
	return btcutil.Amount(s) * btcutil.Amount(vb)
}

// FeePerKVByte converts the current fee rate from sat/vb to sat/kvb.
func (s SatPerVByte) FeePerKVByte() SatPerKVByte {
	return SatPerKVByte(s * SatsPerKilo)
}

// FeePerKWeight converts the current fee rate from sat/vb to sat/kw.
func (s SatPerVByte) FeePerKWeight() SatPerKWeight {
	return SatPerKWeight(
		s * SatsPerKilo / blockchain.WitnessScaleFactor,
	)
}

// String returns a human-readable string of the fee rate.
func (s SatPerVByte) String() string {
	return fmt.Sprintf("%d sat/vb", int64(s))
}

// SatPerKVByte represents a fee rate in sat/kvb.
type SatPerKVByte btcutil.Amount

// FeeForVSize calculates the fee resulting from this fee rate and the given
// vsize in vbytes, rounded down.
func (s SatPerKVByte) FeeForVSize(vb VByte) btcutil.Amount {
	return btcutil.Amount(s) * btcutil.Amount(vb) / SatsPerKilo
}

// FeePerVByte converts the current fee rate from sat/kvb to sat/vb, rounded
// down.
func (s SatPerKVByte) FeePerVByte() SatPerVByte {
	return SatPerVByte(s / SatsPerKilo)
}

// String returns a human-readable string of the fee rate.
func (s SatPerKVByte) String() string {
	return fmt.Sprintf("%d sat/kvb", int64(s))
}

// SatPerKWeight represents a fee rate in sat/kw.
type SatPerKWeight btcutil.Amount

// FeeForWeight calculates the fee resulting from this fee rate and the given
// weight in weight units, rounded down.
func (s SatPerKWeight) FeeForWeight(wu WeightUnit) btcutil.Amount {
	return btcutil.Amount(s) * btcutil.Amount(wu) / SatsPerKilo
}

// FeePerVByte converts the current fee rate from sat/kw to sat/vb, rounded
// down.
func (s SatPerKWeight) FeePerVByte() SatPerVByte {
	return SatPerVByte(s * blockchain.WitnessScaleFactor / SatsPerKilo)
}

// String returns a human-readable string of the fee rate.
func (s SatPerKWeight) String() string {
	return fmt.Sprintf("%d sat/kw", int64(s))
}
