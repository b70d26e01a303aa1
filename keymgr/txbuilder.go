// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btckeymgr/pkg/unit"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// mempoolHeight is the height assigned to unconfirmed outputs when
	// checking a transaction against the outputs it spends.
	mempoolHeight = 0x7fffffff

	// rbfSequence signals replaceability as defined in BIP125.
	rbfSequence = wire.MaxTxInSequenceNum - 2
)

// SpendTarget is a requested payment.
type SpendTarget struct {
	Address string
	Amount  btcutil.Amount
}

// SpendableUtxo is a candidate input. Height is the confirmation height,
// zero or negative for unconfirmed outputs. Tx is the transaction creating
// the output and must hash to OutPoint.Hash.
type SpendableUtxo struct {
	OutPoint wire.OutPoint
	Height   int32
	Tx       *wire.MsgTx
}

// TxRequest describes a transaction to build.
type TxRequest struct {
	// Outputs are the payments, kept in order. They may only be empty
	// when CPFPParent is set.
	Outputs []SpendTarget

	// Utxos are the coins that may be spent.
	Utxos []SpendableUtxo

	// Height is the current chain height used for the consensus checks.
	Height int32

	// FeeRate is the fee rate to pay.
	FeeRate unit.SatPerVByte

	// MaxFee caps the absolute fee. Zero disables the cap.
	MaxFee btcutil.Amount

	// RBF makes every input signal replaceability.
	RBF bool

	// ReplaceTx is a transaction being replaced by fee. All of its inputs
	// must be among Utxos; they are spent first and the new fee must be
	// higher than the one it paid.
	ReplaceTx fn.Option[*wire.MsgTx]

	// CPFPParent restricts the coins to the outputs of this transaction.
	// Without Outputs they are swept to a change address.
	CPFPParent fn.Option[chainhash.Hash]

	// CPFPLimit caps the number of parent outputs swept, largest first.
	// Zero means all of them.
	CPFPLimit int
}

// UnsignedTx is a built transaction ready for signing.
type UnsignedTx struct {
	txauthor.AuthoredTx

	// Fee is the absolute fee paid.
	Fee btcutil.Amount

	// VSize is the estimated virtual size after signing.
	VSize unit.VByte

	// PrevTxs are the transactions creating each input.
	PrevTxs []*wire.MsgTx
}

// CreateTransaction selects coins from req.Utxos and builds an unsigned
// transaction paying req.Outputs, with change going to the first unused
// change address. The transaction passes the context free and input
// consensus checks before it is returned.
func (m *KeyManager) CreateTransaction(req *TxRequest) (*UnsignedTx, error) {
	cpfp := req.CPFPParent.IsSome()
	if len(req.Outputs) == 0 && !cpfp {
		return nil, managerError(ErrEmptyOutputs, "transaction has no "+
			"outputs", nil)
	}

	outputs, err := m.targetOutputs(req.Outputs)
	if err != nil {
		return nil, err
	}

	coins, err := m.makeCoins(req.Utxos)
	if err != nil {
		return nil, err
	}
	req.CPFPParent.WhenSome(func(parent chainhash.Hash) {
		coins = filterParent(coins, parent)
	})

	changeAddr, err := m.changeAddressForSpend()
	if err != nil {
		return nil, err
	}

	var funding *fundingResult
	if cpfp && len(outputs) == 0 {
		funding, err = fundChild(
			coins, req.CPFPLimit, changeAddr.PkScript, req.FeeRate,
			req.MaxFee,
		)
	} else {
		var forced int
		coins, forced, err = orderCoins(coins, req.ReplaceTx)
		if err != nil {
			return nil, err
		}
		funding, err = fundOutputs(
			outputs, coins, forced, changeAddr.PkScript,
			req.FeeRate, req.MaxFee,
		)
	}
	if err != nil {
		return nil, err
	}

	tx := assemble(funding, req.RBF)
	if err := m.checkTransaction(tx, funding, req.Height); err != nil {
		return nil, err
	}

	var replaceErr error
	req.ReplaceTx.WhenSome(func(orig *wire.MsgTx) {
		replaceErr = checkReplacementFee(orig, coins, tx.Fee)
	})
	if replaceErr != nil {
		return nil, replaceErr
	}

	log.Debugf("Built transaction %v: %d inputs, %d outputs, fee %v "+
		"(%v)", tx.Tx.TxHash(), len(tx.Tx.TxIn), len(tx.Tx.TxOut),
		tx.Fee, tx.VSize)

	return tx, nil
}

// targetOutputs decodes the payment destinations into outputs.
func (m *KeyManager) targetOutputs(targets []SpendTarget) ([]*wire.TxOut,
	error) {

	outputs := make([]*wire.TxOut, 0, len(targets))
	for _, target := range targets {
		addr, err := btcutil.DecodeAddress(target.Address, m.net.Params)
		if err != nil {
			str := fmt.Sprintf("invalid address %q", target.Address)
			return nil, managerError(ErrInvalidAddress, str, err)
		}
		if !addr.IsForNet(m.net.Params) {
			str := fmt.Sprintf("address %s is not for %s",
				target.Address, m.net.Name)
			return nil, managerError(ErrInvalidAddress, str, nil)
		}

		pkScript, err := txscript.PayToAddrScript(addr)
		if err != nil {
			str := fmt.Sprintf("unsupported address %s",
				target.Address)
			return nil, managerError(ErrInvalidAddress, str, err)
		}

		out := wire.NewTxOut(int64(target.Amount), pkScript)
		err = txrules.CheckOutput(out, txrules.DefaultRelayFeePerKb)
		if err != nil {
			str := fmt.Sprintf("output of %v to %s", target.Amount,
				target.Address)
			return nil, managerError(ErrDustOutput, str, err)
		}
		outputs = append(outputs, out)
	}

	return outputs, nil
}

// changeAddressForSpend returns the first unused change address, rescanning
// once when the pool is exhausted.
func (m *KeyManager) changeAddressForSpend() (*Address, error) {
	defer m.events.dispatch()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys.master.pub == nil {
		return nil, managerError(ErrMissingKey, "manager is not loaded",
			nil)
	}

	branch := m.changeBranch()
	if addr := m.nextAvailableAddr(branch); addr != nil {
		return addr, nil
	}

	if err := m.scan(); err != nil {
		return nil, err
	}
	if addr := m.nextAvailableAddr(branch); addr != nil {
		return addr, nil
	}

	return nil, managerError(ErrNoUnusedAddress, "no unused change "+
		"address", nil)
}

// orderCoins sorts the coins by age. The inputs of a replaced transaction
// are moved to the front in their original order; their number is returned.
func orderCoins(coins []*coin,
	replace fn.Option[*wire.MsgTx]) ([]*coin, int, error) {

	sortByAge(coins)

	orig := replace.UnwrapOr(nil)
	if orig == nil {
		return coins, 0, nil
	}

	byOutPoint := make(map[wire.OutPoint]*coin, len(coins))
	for _, c := range coins {
		byOutPoint[c.OutPoint] = c
	}

	ordered := make([]*coin, 0, len(coins))
	forced := make(map[wire.OutPoint]struct{}, len(orig.TxIn))
	for _, in := range orig.TxIn {
		c, ok := byOutPoint[in.PreviousOutPoint]
		if !ok {
			str := fmt.Sprintf("input %v of the replaced "+
				"transaction is not spendable",
				in.PreviousOutPoint)
			return nil, 0, managerError(ErrReplacement, str, nil)
		}
		ordered = append(ordered, c)
		forced[c.OutPoint] = struct{}{}
	}
	for _, c := range coins {
		if _, ok := forced[c.OutPoint]; !ok {
			ordered = append(ordered, c)
		}
	}

	return ordered, len(orig.TxIn), nil
}

// checkReplacementFee makes sure the replacement pays a higher absolute fee
// than the transaction it replaces.
func checkReplacementFee(orig *wire.MsgTx, coins []*coin,
	fee btcutil.Amount) error {

	values := make(map[wire.OutPoint]btcutil.Amount, len(coins))
	for _, c := range coins {
		values[c.OutPoint] = c.Amount
	}

	var in btcutil.Amount
	for _, txIn := range orig.TxIn {
		in += values[txIn.PreviousOutPoint]
	}
	origFee := in - txauthor.SumOutputValues(orig.TxOut)

	if fee <= origFee {
		str := fmt.Sprintf("replacement fee %v does not exceed "+
			"original fee %v", fee, origFee)
		return managerError(ErrReplacement, str, nil)
	}

	return nil
}

// assemble creates the unsigned transaction for a funding result.
func assemble(funding *fundingResult, rbf bool) *UnsignedTx {
	sequence := uint32(wire.MaxTxInSequenceNum)
	if rbf {
		sequence = rbfSequence
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	n := len(funding.inputs)
	utx := &UnsignedTx{
		AuthoredTx: txauthor.AuthoredTx{
			Tx:              tx,
			PrevScripts:     make([][]byte, 0, n),
			PrevInputValues: make([]btcutil.Amount, 0, n),
			ChangeIndex:     funding.changeIndex,
		},
		Fee:     funding.fee,
		VSize:   funding.vsize,
		PrevTxs: make([]*wire.MsgTx, 0, n),
	}

	for _, c := range funding.inputs {
		txIn := wire.NewTxIn(&c.OutPoint, nil, nil)
		txIn.Sequence = sequence
		tx.AddTxIn(txIn)

		utx.PrevScripts = append(utx.PrevScripts, c.PkScript)
		utx.PrevInputValues = append(utx.PrevInputValues, c.Amount)
		utx.PrevTxs = append(utx.PrevTxs, c.tx)
		utx.TotalInput += c.Amount
	}
	for _, out := range funding.outputs {
		tx.AddTxOut(out)
	}

	return utx
}

// checkTransaction runs the consensus checks on the transaction, both
// context free and against the outputs it spends at the given height.
func (m *KeyManager) checkTransaction(utx *UnsignedTx,
	funding *fundingResult, height int32) error {

	tx := btcutil.NewTx(utx.Tx)
	if err := blockchain.CheckTransactionSanity(tx); err != nil {
		return managerError(ErrSanityCheck, "transaction failed "+
			"sanity check", err)
	}

	view := blockchain.NewUtxoViewpoint()
	for _, c := range funding.inputs {
		coinHeight := c.Height
		if !c.confirmed() {
			coinHeight = mempoolHeight
		}
		view.AddTxOut(btcutil.NewTx(c.tx), c.OutPoint.Index, coinHeight)
	}

	fee, err := blockchain.CheckTransactionInputs(
		tx, height, view, m.net.Params,
	)
	if err != nil {
		return managerError(ErrContextCheck, "transaction failed "+
			"input check", err)
	}
	if btcutil.Amount(fee) != utx.Fee {
		str := fmt.Sprintf("input check fee %v differs from %v",
			btcutil.Amount(fee), utx.Fee)
		return managerError(ErrContextCheck, str, nil)
	}

	return nil
}
