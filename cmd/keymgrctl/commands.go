// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btckeymgr/internal/zero"
	"github.com/btcsuite/btckeymgr/keycache"
	"github.com/btcsuite/btckeymgr/keymgr"
	flags "github.com/jessevdk/go-flags"
	"github.com/tyler-smith/go-bip39"
)

// stdout receives command results.
var stdout io.Writer = os.Stdout

// wallet is a key manager running on top of its key cache.
type wallet struct {
	mgr   *keymgr.KeyManager
	store *keycache.Store
}

// openWallet opens the key cache of the configured account and loads a
// manager from it. The seed is read when the cache holds no keys yet, or
// when signing is requested and no private key is cached.
func (c *config) openWallet(signing bool) (*wallet, error) {
	opts, err := c.cacheOptions()
	if err != nil {
		return nil, err
	}
	store, err := keycache.Open(
		c.cacheDir(), keycache.DefaultDBTimeout, opts...,
	)
	if err != nil {
		return nil, err
	}

	w, err := c.loadManager(store, signing)
	if err != nil {
		if cerr := store.Close(); cerr != nil {
			log.Errorf("Unable to close key cache: %v", cerr)
		}
		return nil, err
	}

	return w, nil
}

func (c *config) loadManager(store *keycache.Store, signing bool) (*wallet,
	error) {

	if err := store.Bind(c.accountDescriptor()); err != nil {
		return nil, err
	}

	mgrCfg, err := store.Config(keymgr.Config{
		Account:  c.Account,
		Scheme:   c.scheme,
		GapLimit: c.GapLimit,
		Net:      c.net,
	})
	if err != nil {
		return nil, err
	}

	master := mgrCfg.RawKeys.Master
	if master == (keymgr.RawKeyRing{}) || (signing && master.XPriv == "") {
		mgrCfg.Seed, err = readSeed()
		if err != nil {
			return nil, err
		}
	}

	mgr, err := keymgr.New(mgrCfg)
	if err != nil {
		return nil, err
	}
	if err := mgr.Load(); err != nil {
		mgr.Close()
		return nil, err
	}

	log.Infof("Loaded %s account %d with %d receive addresses",
		c.scheme, c.Account, len(mgr.Addresses(keymgr.BranchReceive)))

	return &wallet{mgr: mgr, store: store}, nil
}

// Close forgets the private keys and closes the key cache.
func (w *wallet) Close() {
	w.mgr.Close()
	if err := w.store.Close(); err != nil {
		log.Errorf("Unable to close key cache: %v", err)
	}
}

// recordUtxos adds the request coins paying to derived addresses to the
// metadata of those addresses, so the signer can resolve them, and marks
// the addresses used.
func (w *wallet) recordUtxos(utxos []keymgr.SpendableUtxo) error {
	found := 0
	for _, u := range utxos {
		if u.Tx == nil || int(u.OutPoint.Index) >= len(u.Tx.TxOut) {
			continue
		}
		out := u.Tx.TxOut[u.OutPoint.Index]
		scriptHash := keymgr.ScriptHash(out.PkScript)

		info, err := w.store.FetchAddressInfo(scriptHash)
		switch {
		case errors.Is(err, keycache.ErrNotFound):
			continue
		case err != nil:
			return err
		}

		utxo := keymgr.UtxoInfo{
			OutPoint: u.OutPoint,
			Value:    btcutil.Amount(out.Value),
		}
		known := false
		for _, existing := range info.Utxos {
			if existing.OutPoint == u.OutPoint {
				known = true
				break
			}
		}
		if !known {
			info.Utxos = append(info.Utxos, utxo)
		}
		info.Used = true

		if err := w.store.PutAddressInfo(scriptHash, info); err != nil {
			return err
		}
		w.mgr.UpdateAddressInfo(scriptHash, info)
		found++
	}

	log.Debugf("Request spends %d wallet coins", found)

	return w.mgr.ScanAddresses()
}

// addCommands registers every command with the parser.
func addCommands(parser *flags.Parser, cfg *config) error {
	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{
			"genseed", "Generate a new mnemonic",
			"Print a new BIP39 mnemonic. Nothing is stored.",
			&genSeedCommand{},
		},
		{
			"load", "Load the account",
			"Derive the account keys and addresses and store them " +
				"in the key cache.",
			&loadCommand{cfg: cfg},
		},
		{
			"addresses", "List derived addresses",
			"List the addresses of a branch with their used flag.",
			&addressesCommand{cfg: cfg},
		},
		{
			"markused", "Mark an address used",
			"Set the used flag of an address and extend the gap " +
				"limit window.",
			&markUsedCommand{cfg: cfg},
		},
		{
			"createtx", "Build an unsigned transaction",
			"Build a transaction from a JSON request and print it " +
				"as a base64 PSBT.",
			&createTxCommand{cfg: cfg},
		},
		{
			"sign", "Build and sign a transaction",
			"Build a transaction from a JSON request, sign it and " +
				"print the raw transaction.",
			&signCommand{cfg: cfg},
		},
	}
	for _, c := range commands {
		_, err := parser.AddCommand(c.name, c.short, c.long, c.data)
		if err != nil {
			return err
		}
	}

	return nil
}

type genSeedCommand struct {
	Bits int `long:"bits" default:"128" description:"Entropy bits of the mnemonic {128, 160, 192, 224, 256}"`
}

func (cmd *genSeedCommand) Execute(args []string) error {
	entropy, err := bip39.NewEntropy(cmd.Bits)
	if err != nil {
		return err
	}
	defer zero.Bytes(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, mnemonic)
	return err
}

type loadCommand struct {
	cfg *config
}

func (cmd *loadCommand) Execute(args []string) error {
	if err := cmd.cfg.setup(); err != nil {
		return err
	}
	w, err := cmd.cfg.openWallet(false)
	if err != nil {
		return err
	}
	defer w.Close()

	return writeJSON(stdout, struct {
		Receive string `json:"receive"`
		Change  string `json:"change"`
	}{
		Receive: w.mgr.ReceiveAddress(),
		Change:  w.mgr.ChangeAddress(),
	})
}

type addressesCommand struct {
	Branch string `long:"branch" default:"receive" choice:"receive" choice:"change" description:"Branch to list"`

	cfg *config
}

// addressJSON is an entry printed by the addresses command.
type addressJSON struct {
	Index      uint32 `json:"index"`
	Path       string `json:"path"`
	Address    string `json:"address"`
	ScriptHash string `json:"scripthash"`
	Used       bool   `json:"used"`
}

func (cmd *addressesCommand) Execute(args []string) error {
	if err := cmd.cfg.setup(); err != nil {
		return err
	}
	w, err := cmd.cfg.openWallet(false)
	if err != nil {
		return err
	}
	defer w.Close()

	branch := keymgr.BranchReceive
	if cmd.Branch == "change" {
		branch = keymgr.BranchChange
	}

	infos, err := w.store.AddressInfos()
	if err != nil {
		return err
	}

	addrs := w.mgr.Addresses(branch)
	entries := make([]addressJSON, 0, len(addrs))
	for _, a := range addrs {
		entry := addressJSON{
			Index:      a.Index,
			Path:       a.Path,
			Address:    a.DisplayAddress,
			ScriptHash: a.ScriptHash,
		}
		if info, ok := infos[a.ScriptHash]; ok {
			entry.Used = info.Used
		}
		entries = append(entries, entry)
	}

	return writeJSON(stdout, entries)
}

type markUsedCommand struct {
	Unused bool `long:"unused" description:"Clear the used flag instead"`
	Args   struct {
		Address string `positional-arg-name:"address" required:"yes"`
	} `positional-args:"yes"`

	cfg *config
}

func (cmd *markUsedCommand) Execute(args []string) error {
	if err := cmd.cfg.setup(); err != nil {
		return err
	}
	w, err := cmd.cfg.openWallet(false)
	if err != nil {
		return err
	}
	defer w.Close()

	addr, ok := w.mgr.LookupAddress(cmd.Args.Address)
	if !ok {
		return fmt.Errorf("address %s is not derived by this account",
			cmd.Args.Address)
	}

	info, err := w.store.MarkUsed(addr.ScriptHash, !cmd.Unused)
	if err != nil {
		return err
	}
	w.mgr.UpdateAddressInfo(addr.ScriptHash, info)
	if err := w.mgr.ScanAddresses(); err != nil {
		return err
	}

	log.Infof("Marked %s (%s) used=%v", addr.DisplayAddress, addr.Path,
		info.Used)

	return writeJSON(stdout, struct {
		Receive string `json:"receive"`
	}{
		Receive: w.mgr.ReceiveAddress(),
	})
}

// requestArgs is the positional argument of the transaction commands.
type requestArgs struct {
	Request string `positional-arg-name:"request" required:"yes" description:"JSON request file, - for stdin"`
}

type createTxCommand struct {
	Args requestArgs `positional-args:"yes"`

	cfg *config
}

func (cmd *createTxCommand) Execute(args []string) error {
	return buildTransaction(cmd.cfg, cmd.Args.Request, false)
}

type signCommand struct {
	Args requestArgs `positional-args:"yes"`

	cfg *config
}

func (cmd *signCommand) Execute(args []string) error {
	return buildTransaction(cmd.cfg, cmd.Args.Request, true)
}

// buildTransaction builds the requested transaction and prints it either as
// a PSBT or, when sign is set, as a signed raw transaction.
func buildTransaction(cfg *config, requestPath string, sign bool) error {
	if err := cfg.setup(); err != nil {
		return err
	}

	doc, err := readRequest(requestPath, stdin)
	if err != nil {
		return err
	}
	req, err := doc.txRequest(cfg.FeeRate.SatPerVByte, cfg.MaxFee.Amount)
	if err != nil {
		return err
	}

	w, err := cfg.openWallet(sign)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.recordUtxos(req.Utxos); err != nil {
		return err
	}

	tx, err := w.mgr.CreateTransaction(req)
	if err != nil {
		return err
	}
	result := newTxResult(tx)

	if !sign {
		packet, err := w.mgr.ExportPSBT(tx)
		if err != nil {
			return err
		}
		result.PSBT, err = packet.B64Encode()
		if err != nil {
			return err
		}
		return writeJSON(stdout, result)
	}

	if err := w.mgr.Sign(tx); err != nil {
		return err
	}
	result.TxID = tx.Tx.TxHash().String()
	result.Hex, err = encodeTx(tx.Tx)
	if err != nil {
		return err
	}

	log.Infof("Signed transaction %s paying %v fee", result.TxID, tx.Fee)

	return writeJSON(stdout, result)
}
