// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btckeymgr/pkg/unit"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wtxmgr"
)

// unminedHeight is the credit height of outputs that are not in a block yet.
const unminedHeight = -1

// coin is a candidate input together with the transaction creating it.
type coin struct {
	wtxmgr.Credit

	tx       *wire.MsgTx
	estimate InputSizeEstimate
}

func (c *coin) confirmed() bool {
	return c.Height != unminedHeight
}

// fundingResult is the outcome of input selection.
type fundingResult struct {
	inputs      []*coin
	outputs     []*wire.TxOut
	changeIndex int
	fee         btcutil.Amount
	vsize       unit.VByte
}

// makeCoins validates the candidate outputs against their raw transactions
// and converts them to credits.
func (m *KeyManager) makeCoins(utxos []SpendableUtxo) ([]*coin, error) {
	coins := make([]*coin, 0, len(utxos))
	seen := make(map[wire.OutPoint]struct{}, len(utxos))

	for _, u := range utxos {
		if u.Tx == nil {
			str := fmt.Sprintf("no transaction for output %v",
				u.OutPoint)
			return nil, managerError(ErrInvalidUtxo, str, nil)
		}
		if u.Tx.TxHash() != u.OutPoint.Hash {
			str := fmt.Sprintf("transaction %v does not create "+
				"output %v", u.Tx.TxHash(), u.OutPoint)
			return nil, managerError(ErrInvalidUtxo, str, nil)
		}
		if int(u.OutPoint.Index) >= len(u.Tx.TxOut) {
			str := fmt.Sprintf("transaction %v has no output %d",
				u.OutPoint.Hash, u.OutPoint.Index)
			return nil, managerError(ErrInvalidUtxo, str, nil)
		}
		if _, ok := seen[u.OutPoint]; ok {
			str := fmt.Sprintf("duplicate output %v", u.OutPoint)
			return nil, managerError(ErrInvalidUtxo, str, nil)
		}
		seen[u.OutPoint] = struct{}{}

		height := u.Height
		if height <= 0 {
			height = unminedHeight
		}

		out := u.Tx.TxOut[u.OutPoint.Index]
		coins = append(coins, &coin{
			Credit: wtxmgr.Credit{
				OutPoint: u.OutPoint,
				BlockMeta: wtxmgr.BlockMeta{
					Block: wtxmgr.Block{Height: height},
				},
				Amount:       btcutil.Amount(out.Value),
				PkScript:     out.PkScript,
				FromCoinBase: blockchain.IsCoinBaseTx(u.Tx),
			},
			tx:       u.Tx,
			estimate: EstimateInputSize(m.scheme, out.PkScript),
		})
	}

	return coins, nil
}

// sortByAge orders coins oldest first with unconfirmed coins last.
func sortByAge(coins []*coin) {
	sort.SliceStable(coins, func(i, j int) bool {
		ci, cj := coins[i], coins[j]
		if ci.confirmed() != cj.confirmed() {
			return ci.confirmed()
		}
		return ci.Height < cj.Height
	})
}

// sortByValue orders coins largest first.
func sortByValue(coins []*coin) {
	sort.SliceStable(coins, func(i, j int) bool {
		return coins[i].Amount > coins[j].Amount
	})
}

// filterParent keeps the coins created by the parent transaction.
func filterParent(coins []*coin, parent chainhash.Hash) []*coin {
	var kept []*coin
	for _, c := range coins {
		if c.OutPoint.Hash == parent {
			kept = append(kept, c)
		}
	}
	return kept
}

// isDust reports whether an output of the given value paying to pkScript
// would be rejected by relay policy.
func isDust(value btcutil.Amount, pkScript []byte) bool {
	return txrules.IsDustOutput(
		wire.NewTxOut(int64(value), pkScript),
		txrules.DefaultRelayFeePerKb,
	)
}

// fundOutputs selects coins in order until they pay for the outputs and the
// fee. The first forced coins are always spent. A change output is added
// unless it would be dust, in which case its value goes to the fee.
func fundOutputs(outputs []*wire.TxOut, coins []*coin, forced int,
	changeScript []byte, feeRate unit.SatPerVByte,
	maxFee btcutil.Amount) (*fundingResult, error) {

	target := txauthor.SumOutputValues(outputs)
	change := wire.NewTxOut(0, changeScript)
	withChange := append(outputs[:len(outputs):len(outputs)], change)

	var (
		selected   []*coin
		estimates  []InputSizeEstimate
		total      btcutil.Amount
		feeLimited bool
	)
	for _, c := range coins {
		selected = append(selected, c)
		estimates = append(estimates, c.estimate)
		total += c.Amount

		vsize := EstimateVirtualSize(estimates, withChange)
		fee := feeRate.FeeForVSize(vsize)
		if maxFee > 0 && fee > maxFee {
			str := fmt.Sprintf("fee %v exceeds maximum %v", fee,
				maxFee)
			return nil, managerError(ErrFeeExceeded, str, nil)
		}

		if len(selected) < forced || total < target+fee {
			continue
		}

		changeValue := total - target - fee
		if !isDust(changeValue, changeScript) {
			change.Value = int64(changeValue)
			return &fundingResult{
				inputs:      selected,
				outputs:     withChange,
				changeIndex: len(outputs),
				fee:         fee,
				vsize:       vsize,
			}, nil
		}

		// Dropping the change hands its value to the miner, which may
		// push the fee over the limit. A further coin can turn the
		// change into a real output.
		if maxFee > 0 && total-target > maxFee {
			feeLimited = true
			continue
		}

		return &fundingResult{
			inputs:      selected,
			outputs:     outputs,
			changeIndex: -1,
			fee:         total - target,
			vsize:       EstimateVirtualSize(estimates, outputs),
		}, nil
	}

	if feeLimited {
		str := fmt.Sprintf("dust change pushes the fee over maximum %v",
			maxFee)
		return nil, managerError(ErrFeeExceeded, str, nil)
	}

	str := fmt.Sprintf("%v available, %v needed plus fee", total, target)
	return nil, managerError(ErrInsufficientFunds, str, nil)
}

// fundChild spends the largest limit coins, or all when limit is zero, into
// a single output paying to changeScript, with the fee subtracted from that
// output.
func fundChild(coins []*coin, limit int, changeScript []byte,
	feeRate unit.SatPerVByte, maxFee btcutil.Amount) (*fundingResult,
	error) {

	sortByValue(coins)
	if limit > 0 && len(coins) > limit {
		coins = coins[:limit]
	}
	if len(coins) == 0 {
		return nil, managerError(ErrInsufficientFunds, "parent "+
			"transaction has no spendable outputs", nil)
	}

	var (
		total     btcutil.Amount
		estimates = make([]InputSizeEstimate, 0, len(coins))
	)
	for _, c := range coins {
		total += c.Amount
		estimates = append(estimates, c.estimate)
	}

	out := wire.NewTxOut(0, changeScript)
	outputs := []*wire.TxOut{out}
	vsize := EstimateVirtualSize(estimates, outputs)
	fee := feeRate.FeeForVSize(vsize)
	if maxFee > 0 && fee > maxFee {
		str := fmt.Sprintf("fee %v exceeds maximum %v", fee, maxFee)
		return nil, managerError(ErrFeeExceeded, str, nil)
	}

	value := total - fee
	if value <= 0 || isDust(value, changeScript) {
		str := fmt.Sprintf("%v from the parent does not cover fee %v",
			total, fee)
		return nil, managerError(ErrInsufficientFunds, str, nil)
	}
	out.Value = int64(value)

	return &fundingResult{
		inputs:      coins,
		outputs:     outputs,
		changeIndex: 0,
		fee:         fee,
		vsize:       vsize,
	}, nil
}
