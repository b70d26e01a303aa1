// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"encoding/hex"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// testNet4 is the network magic of the bitcoin test network (version 4).
const testNet4 wire.BitcoinNet = 0x1c163f28

// TestNet4Params contains parameters specific to the bitcoin test network
// (version 4). It shares address and key encodings with testnet3.
var TestNet4Params = Params{
	Params: testNet4ChainParams(),
	SegWit: true,
}

func testNet4ChainParams() *chaincfg.Params {
	params := chaincfg.TestNet3Params
	params.Name = "testnet4"
	params.Net = testNet4
	params.DefaultPort = "48333"
	params.DNSSeeds = []chaincfg.DNSSeed{
		{Host: "seed.testnet4.bitcoin.sprovoost.nl", HasFiltering: true},
		{Host: "seed.testnet4.wiz.biz", HasFiltering: true},
	}
	params.Checkpoints = nil

	genesis := testNet4GenesisBlock()
	hash := genesis.BlockHash()
	params.GenesisBlock = genesis
	params.GenesisHash = &hash

	return &params
}

// testNet4GenesisBlock builds the genesis block of the test network
// (version 4).
func testNet4GenesisBlock() *wire.MsgBlock {
	sigScript, _ := hex.DecodeString("04ffff001d01044c4c30332f4d61792f" +
		"32303234203030303030303030303030303030303030303030316562" +
		"6435386332343439373062336161396437383362623030313031316662" +
		"653865613865393865303065")
	pkScript, _ := hex.DecodeString("2100000000000000000000000000000000" +
		"0000000000000000000000000000000000ac")

	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		SignatureScript:  sigScript,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	coinbase.AddTxOut(wire.NewTxOut(0x12a05f200, pkScript))

	return &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    1,
			PrevBlock:  chainhash.Hash{},
			MerkleRoot: coinbase.TxHash(),
			Timestamp:  time.Unix(1714777860, 0),
			Bits:       0x1d00ffff,
			Nonce:      393743547,
		},
		Transactions: []*wire.MsgTx{coinbase},
	}
}
