// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btckeymgr/pkg/unit"
)

// AmountFlag embeds a btcutil.Amount and implements the flags.Marshaler and
// Unmarshaler interfaces so it can be used as a config struct field. Values
// are read as BTC unless they carry a " sat" suffix.
type AmountFlag struct {
	btcutil.Amount
}

// NewAmountFlag creates an AmountFlag with a default btcutil.Amount.
func NewAmountFlag(defaultValue btcutil.Amount) *AmountFlag {
	return &AmountFlag{defaultValue}
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (a *AmountFlag) MarshalFlag() (string, error) {
	return a.Amount.String(), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (a *AmountFlag) UnmarshalFlag(value string) error {
	if sats, ok := strings.CutSuffix(value, " sat"); ok {
		v, err := strconv.ParseInt(sats, 10, 64)
		if err != nil {
			return err
		}
		a.Amount = btcutil.Amount(v)
		return nil
	}

	value = strings.TrimSuffix(value, " BTC")
	valueF64, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	amount, err := btcutil.NewAmount(valueF64)
	if err != nil {
		return err
	}
	a.Amount = amount
	return nil
}

// FeeRateFlag embeds a unit.SatPerVByte so a fee rate can be used as a config
// struct field. An optional " sat/vb" suffix is
// accepted, so marshaled values parse back.
type FeeRateFlag struct {
	unit.SatPerVByte
}

// NewFeeRateFlag creates a FeeRateFlag with a default rate.
func NewFeeRateFlag(defaultValue unit.SatPerVByte) *FeeRateFlag {
	return &FeeRateFlag{defaultValue}
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (f *FeeRateFlag) MarshalFlag() (string, error) {
	return f.SatPerVByte.String(), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (f *FeeRateFlag) UnmarshalFlag(value string) error {
	rate, err := unit.ParseSatPerVByte(
		strings.TrimSuffix(strings.ToLower(value), " sat/vb"),
	)
	if err != nil {
		return err
	}
	f.SatPerVByte = rate
	return nil
}
