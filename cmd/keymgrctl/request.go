// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btckeymgr/keymgr"
	"github.com/btcsuite/btckeymgr/pkg/unit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// outputJSON is a payment of a transaction request.
type outputJSON struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// utxoJSON is a spendable output of a transaction request. RawTx is the hex
// serialized transaction creating the output.
type utxoJSON struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Height int32  `json:"height"`
	RawTx  string `json:"rawtx"`
}

// txRequestJSON is the document read by the createtx and sign commands.
// Amounts are in satoshi and the fee rate in sat/vB.
type txRequestJSON struct {
	Outputs    []outputJSON `json:"outputs"`
	Utxos      []utxoJSON   `json:"utxos"`
	Height     int32        `json:"height"`
	FeeRate    int64        `json:"feerate"`
	MaxFee     int64        `json:"maxfee"`
	RBF        bool         `json:"rbf"`
	ReplaceTx  string       `json:"replacetx"`
	CPFPParent string       `json:"cpfpparent"`
	CPFPLimit  int          `json:"cpfplimit"`
}

// txResultJSON is printed by the createtx and sign commands.
type txResultJSON struct {
	TxID        string `json:"txid"`
	Fee         int64  `json:"fee"`
	VSize       uint64 `json:"vsize"`
	ChangeIndex int    `json:"changeindex"`
	PSBT        string `json:"psbt,omitempty"`
	Hex         string `json:"hex,omitempty"`
}

// readRequest reads a request document from path, or from r when path is
// "-".
func readRequest(path string, r io.Reader) (*txRequestJSON, error) {
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var req txRequestJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	return &req, nil
}

// decodeTx parses a hex serialized transaction.
func decodeTx(s string) (*wire.MsgTx, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return tx, nil
}

// encodeTx returns the hex serialization of tx.
func encodeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// txRequest converts the document to a manager request. The fee rate and
// cap of the document take precedence over the passed defaults.
func (r *txRequestJSON) txRequest(feeRate unit.SatPerVByte,
	maxFee btcutil.Amount) (*keymgr.TxRequest, error) {

	req := &keymgr.TxRequest{
		Height:    r.Height,
		FeeRate:   feeRate,
		MaxFee:    maxFee,
		RBF:       r.RBF,
		CPFPLimit: r.CPFPLimit,
	}
	if r.FeeRate != 0 {
		req.FeeRate = unit.SatPerVByte(r.FeeRate)
	}
	if r.MaxFee != 0 {
		req.MaxFee = btcutil.Amount(r.MaxFee)
	}

	for _, o := range r.Outputs {
		req.Outputs = append(req.Outputs, keymgr.SpendTarget{
			Address: o.Address,
			Amount:  btcutil.Amount(o.Amount),
		})
	}

	for i, u := range r.Utxos {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, fmt.Errorf("utxo %d: invalid txid: %w", i,
				err)
		}
		tx, err := decodeTx(u.RawTx)
		if err != nil {
			return nil, fmt.Errorf("utxo %d: invalid rawtx: %w", i,
				err)
		}
		req.Utxos = append(req.Utxos, keymgr.SpendableUtxo{
			OutPoint: wire.OutPoint{Hash: *hash, Index: u.Vout},
			Height:   u.Height,
			Tx:       tx,
		})
	}

	if r.ReplaceTx != "" {
		tx, err := decodeTx(r.ReplaceTx)
		if err != nil {
			return nil, fmt.Errorf("invalid replacetx: %w", err)
		}
		req.ReplaceTx = fn.Some(tx)
	}

	if r.CPFPParent != "" {
		hash, err := chainhash.NewHashFromStr(r.CPFPParent)
		if err != nil {
			return nil, fmt.Errorf("invalid cpfpparent: %w", err)
		}
		req.CPFPParent = fn.Some(*hash)
	}

	return req, nil
}

// newTxResult describes a built transaction.
func newTxResult(tx *keymgr.UnsignedTx) txResultJSON {
	return txResultJSON{
		TxID:        tx.Tx.TxHash().String(),
		Fee:         int64(tx.Fee),
		VSize:       uint64(tx.VSize),
		ChangeIndex: tx.ChangeIndex,
	}
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
