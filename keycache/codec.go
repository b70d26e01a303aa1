// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keycache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btckeymgr/keymgr"
	"github.com/lightningnetwork/lnd/tlv"
)

const (
	typeKeyRingXPriv    tlv.Type = 1
	typeKeyRingXPub     tlv.Type = 2
	typeKeyRingXPrivEnc tlv.Type = 3

	typeAddrDisplay tlv.Type = 1
	typeAddrPath    tlv.Type = 2
	typeAddrUsed    tlv.Type = 3
	typeAddrUtxos   tlv.Type = 4
)

// utxoSize is the serialized size of one UTXO entry: the outpoint hash and
// index followed by the value.
const utxoSize = chainhash.HashSize + 4 + 8

// encodeStream serializes the records as a TLV stream.
func encodeStream(records ...tlv.Record) ([]byte, error) {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// keyRingRecord is the stored form of a key ring. The private key is kept
// either in clear or sealed with the cache's secret key.
type keyRingRecord struct {
	xpriv    []byte
	xprivEnc []byte
	xpub     []byte
}

// encodeKeyRing serializes a key ring record. Missing keys are omitted.
func encodeKeyRing(rec *keyRingRecord) ([]byte, error) {
	var records []tlv.Record
	if len(rec.xpriv) > 0 {
		records = append(records, tlv.MakePrimitiveRecord(
			typeKeyRingXPriv, &rec.xpriv,
		))
	}
	if len(rec.xpub) > 0 {
		records = append(records, tlv.MakePrimitiveRecord(
			typeKeyRingXPub, &rec.xpub,
		))
	}
	if len(rec.xprivEnc) > 0 {
		records = append(records, tlv.MakePrimitiveRecord(
			typeKeyRingXPrivEnc, &rec.xprivEnc,
		))
	}

	return encodeStream(records...)
}

// decodeKeyRing parses a record serialized by encodeKeyRing.
func decodeKeyRing(b []byte) (*keyRingRecord, error) {
	rec := &keyRingRecord{}
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeKeyRingXPriv, &rec.xpriv),
		tlv.MakePrimitiveRecord(typeKeyRingXPub, &rec.xpub),
		tlv.MakePrimitiveRecord(typeKeyRingXPrivEnc, &rec.xprivEnc),
	)
	if err != nil {
		return nil, err
	}
	if err := stream.Decode(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return rec, nil
}

// encodeAddressInfo serializes the metadata of an address.
func encodeAddressInfo(info *keymgr.AddressInfo) ([]byte, error) {
	var (
		display = []byte(info.DisplayAddress)
		path    = []byte(info.Path)
		used    uint8
		utxos   = info.Utxos
	)
	if info.Used {
		used = 1
	}

	return encodeStream(
		tlv.MakePrimitiveRecord(typeAddrDisplay, &display),
		tlv.MakePrimitiveRecord(typeAddrPath, &path),
		tlv.MakePrimitiveRecord(typeAddrUsed, &used),
		tlv.MakeDynamicRecord(
			typeAddrUtxos, &utxos, func() uint64 {
				return uint64(len(utxos) * utxoSize)
			}, utxosEncoder, utxosDecoder,
		),
	)
}

// decodeAddressInfo parses metadata serialized by encodeAddressInfo.
func decodeAddressInfo(b []byte) (*keymgr.AddressInfo, error) {
	var (
		display, path []byte
		used          uint8
		utxos         []keymgr.UtxoInfo
	)
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeAddrDisplay, &display),
		tlv.MakePrimitiveRecord(typeAddrPath, &path),
		tlv.MakePrimitiveRecord(typeAddrUsed, &used),
		tlv.MakeDynamicRecord(
			typeAddrUtxos, &utxos, func() uint64 {
				return uint64(len(utxos) * utxoSize)
			}, utxosEncoder, utxosDecoder,
		),
	)
	if err != nil {
		return nil, err
	}
	if err := stream.Decode(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return &keymgr.AddressInfo{
		DisplayAddress: string(display),
		Path:           string(path),
		Used:           used != 0,
		Utxos:          utxos,
	}, nil
}

// utxosEncoder is a custom TLV encoder for a slice of UTXO entries.
func utxosEncoder(w io.Writer, val interface{}, buf *[8]byte) error {
	if v, ok := val.(*[]keymgr.UtxoInfo); ok {
		for _, u := range *v {
			if _, err := w.Write(u.OutPoint.Hash[:]); err != nil {
				return err
			}
			err := tlv.EUint32T(w, u.OutPoint.Index, buf)
			if err != nil {
				return err
			}
			err = tlv.EUint64T(w, uint64(u.Value), buf)
			if err != nil {
				return err
			}
		}
		return nil
	}

	return tlv.NewTypeForEncodingErr(val, "[]keymgr.UtxoInfo")
}

// utxosDecoder is a custom TLV decoder for a slice of UTXO entries.
func utxosDecoder(r io.Reader, val interface{}, buf *[8]byte,
	l uint64) error {

	if v, ok := val.(*[]keymgr.UtxoInfo); ok && l%utxoSize == 0 {
		if l == 0 {
			*v = nil
			return nil
		}

		utxos := make([]keymgr.UtxoInfo, 0, l/utxoSize)
		for i := uint64(0); i < l/utxoSize; i++ {
			var (
				hash  chainhash.Hash
				index uint32
				value uint64
			)
			if _, err := io.ReadFull(r, hash[:]); err != nil {
				return err
			}
			if err := tlv.DUint32(r, &index, buf, 4); err != nil {
				return err
			}
			if err := tlv.DUint64(r, &value, buf, 8); err != nil {
				return err
			}
			utxos = append(utxos, keymgr.UtxoInfo{
				OutPoint: wire.OutPoint{Hash: hash, Index: index},
				Value:    btcutil.Amount(value),
			})
		}
		*v = utxos
		return nil
	}

	return tlv.NewTypeForDecodingErr(val, "[]keymgr.UtxoInfo", l, l)
}
