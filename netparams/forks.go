// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	litecoinCfg "github.com/ltcsuite/ltcd/chaincfg"
)

const (
	// bitcoinCashNet is the network magic of the Bitcoin Cash main
	// network.
	bitcoinCashNet wire.BitcoinNet = 0xe8f3e1e3

	// bitcoinCashTestNet is the network magic of the Bitcoin Cash test
	// network.
	bitcoinCashTestNet wire.BitcoinNet = 0xf4f3e5f4

	// bitcoinCashCoinType is the SLIP-0044 coin type of Bitcoin Cash.
	bitcoinCashCoinType = 145
)

// BitcoinCashParams contains parameters specific to the Bitcoin Cash main
// network. Addresses use the legacy base58 encoding shared with bitcoin.
var BitcoinCashParams = Params{
	Params: forkParams(
		&chaincfg.MainNetParams, "bitcoincash", bitcoinCashNet,
		"8333", bitcoinCashCoinType,
	),
	Digest: DigestForkID,
}

// BitcoinCashTestNetParams contains parameters specific to the Bitcoin Cash
// test network.
var BitcoinCashTestNetParams = Params{
	Params: forkParams(
		&chaincfg.TestNet3Params, "bitcoincash-testnet",
		bitcoinCashTestNet, "18333", 1,
	),
	Digest: DigestForkID,
}

// LitecoinParams contains parameters specific to the Litecoin main network.
var LitecoinParams = Params{
	Params: applyLitecoinParams(
		&chaincfg.MainNetParams, &litecoinCfg.MainNetParams, "litecoin",
	),
	SegWit: true,
}

// LitecoinTestNetParams contains parameters specific to the 4th version of
// the Litecoin test network.
var LitecoinTestNetParams = Params{
	Params: applyLitecoinParams(
		&chaincfg.TestNet3Params, &litecoinCfg.TestNet4Params,
		"litecoin-testnet4",
	),
	SegWit: true,
}

// forkParams copies base and overrides the fields that identify a fork of
// bitcoin sharing its address and extended key encodings.
func forkParams(base *chaincfg.Params, name string, net wire.BitcoinNet,
	port string, coinType uint32) *chaincfg.Params {

	params := *base
	params.Name = name
	params.Net = net
	params.DefaultPort = port
	params.HDCoinType = coinType

	// No segwit on the fork, so there is no bech32 prefix to claim.
	params.Bech32HRPSegwit = ""

	return &params
}

// applyLitecoinParams copies base and overlays the litecoin parameters that
// affect key derivation and address encoding, converting them to the types
// expected by the btcsuite packages.
func applyLitecoinParams(base *chaincfg.Params, ltc *litecoinCfg.Params,
	name string) *chaincfg.Params {

	params := *base
	params.Name = name
	params.Net = wire.BitcoinNet(ltc.Net)
	params.DefaultPort = ltc.DefaultPort
	params.CoinbaseMaturity = ltc.CoinbaseMaturity

	var genesis chainhash.Hash
	copy(genesis[:], ltc.GenesisHash[:])
	params.GenesisHash = &genesis

	// Address encoding magics
	params.PubKeyHashAddrID = ltc.PubKeyHashAddrID
	params.ScriptHashAddrID = ltc.ScriptHashAddrID
	params.PrivateKeyID = ltc.PrivateKeyID
	params.WitnessPubKeyHashAddrID = ltc.WitnessPubKeyHashAddrID
	params.WitnessScriptHashAddrID = ltc.WitnessScriptHashAddrID
	params.Bech32HRPSegwit = ltc.Bech32HRPSegwit

	copy(params.HDPrivateKeyID[:], ltc.HDPrivateKeyID[:])
	copy(params.HDPublicKeyID[:], ltc.HDPublicKeyID[:])

	params.HDCoinType = ltc.HDCoinType

	checkpoints := make([]chaincfg.Checkpoint, len(ltc.Checkpoints))
	for i, cp := range ltc.Checkpoints {
		var hash chainhash.Hash
		copy(hash[:], cp.Hash[:])

		checkpoints[i] = chaincfg.Checkpoint{
			Height: cp.Height,
			Hash:   &hash,
		}
	}
	params.Checkpoints = checkpoints

	return &params
}
