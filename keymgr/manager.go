// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btckeymgr/internal/zero"
	"github.com/btcsuite/btckeymgr/netparams"
	"github.com/tyler-smith/go-bip39"
)

const (
	// DefaultGapLimit is the number of consecutive unused addresses kept
	// ahead of the last used one when no limit is configured.
	DefaultGapLimit = 10
)

// Config holds the parameters of a KeyManager.
type Config struct {
	// Account is the BIP44/BIP49 account number. It is ignored by the
	// bip32 scheme.
	Account uint32

	// Scheme is the derivation layout. The zero value is SchemeBIP32.
	Scheme Scheme

	// RawKeys are the cached keys from a previous session.
	RawKeys RawKeys

	// Seed is either a BIP39 mnemonic or base64 encoded seed bytes.
	Seed string

	// SeedBytes is a raw seed used when Seed is empty. The manager keeps
	// its own copy.
	SeedBytes []byte

	// GapLimit is the number of unused addresses kept ahead of the last
	// used one on each branch. Zero selects DefaultGapLimit.
	GapLimit int

	// Net is the network profile. It is required.
	Net *netparams.Params

	// OnNewAddress is called for every derived address once the manager
	// state is unlocked.
	OnNewAddress func(scriptHash, address, path string) error

	// OnNewKey is called with the complete key set whenever a key is
	// materialized.
	OnNewKey func(RawKeys) error

	// AddressInfos is the externally maintained state of the addresses,
	// keyed by script hash. Entries below the account path are used to
	// restore previously derived addresses.
	AddressInfos map[string]*AddressInfo
}

// KeyManager derives and tracks the addresses of a single HD account and
// builds and signs transactions spending from them. It is safe for
// concurrent use.
type KeyManager struct {
	net        *netparams.Params
	scheme     Scheme
	account    uint32
	gapLimit   int
	masterPath []uint32

	events outbox

	mu              sync.RWMutex
	seed            []byte
	rootFingerprint uint32
	keys            keys
	addrsByDisplay  map[string]*Address
	addrsByScript   map[string]*Address
	infos           map[string]*AddressInfo
	outPointScripts map[wire.OutPoint]string
}

// New creates a key manager from the passed configuration. The cached keys
// and addresses are restored, but nothing is derived until Load is called.
func New(cfg *Config) (*KeyManager, error) {
	if cfg.Seed == "" && len(cfg.SeedBytes) == 0 &&
		cfg.RawKeys.Master.XPriv == "" && cfg.RawKeys.Master.XPub == "" {

		return nil, managerError(ErrMissingKey, "either a seed or a "+
			"master extended key is required", nil)
	}
	if cfg.Net == nil {
		return nil, managerError(ErrConfig, "no network profile", nil)
	}

	masterPath, err := cfg.Scheme.masterPath(cfg.Net.HDCoinType, cfg.Account)
	if err != nil {
		return nil, err
	}
	if cfg.Scheme.nested() && !cfg.Net.SegWit {
		str := fmt.Sprintf("scheme %s requires segwit, which %s does "+
			"not support", cfg.Scheme, cfg.Net.Name)
		return nil, managerError(ErrConfig, str, nil)
	}

	gapLimit := cfg.GapLimit
	switch {
	case gapLimit == 0:
		gapLimit = DefaultGapLimit
	case gapLimit < 0:
		str := fmt.Sprintf("invalid gap limit %d", gapLimit)
		return nil, managerError(ErrConfig, str, nil)
	}

	m := &KeyManager{
		net:             cfg.Net,
		scheme:          cfg.Scheme,
		account:         cfg.Account,
		gapLimit:        gapLimit,
		masterPath:      masterPath,
		addrsByDisplay:  make(map[string]*Address),
		addrsByScript:   make(map[string]*Address),
		infos:           make(map[string]*AddressInfo),
		outPointScripts: make(map[wire.OutPoint]string),
		events: outbox{
			onNewAddress: cfg.OnNewAddress,
			onNewKey:     cfg.OnNewKey,
		},
	}

	m.seed, err = decodeSeed(cfg.Seed, cfg.SeedBytes)
	if err != nil {
		return nil, err
	}

	rings := []struct {
		name string
		raw  RawKeyRing
		ring *keyRing
	}{
		{"master", cfg.RawKeys.Master, &m.keys.master},
		{"receive", cfg.RawKeys.Receive, &m.keys.receive},
		{"change", cfg.RawKeys.Change, &m.keys.change},
	}
	for _, r := range rings {
		*r.ring, err = parseKeyRing(r.name, r.raw, m.net.Params)
		if err != nil {
			return nil, err
		}
	}

	for scriptHash, info := range cfg.AddressInfos {
		if info == nil {
			continue
		}
		m.setInfo(scriptHash, copyInfo(info))
	}
	m.restoreAddresses()

	log.Debugf("Created %s key manager for account %d (%s) with %d "+
		"receive and %d change addresses", m.scheme, m.account,
		m.net.Name, len(m.keys.receive.children),
		len(m.keys.change.children))

	return m, nil
}

// decodeSeed interprets the configured seed. A string seed is tried as a
// BIP39 mnemonic first and as base64 seed bytes second.
func decodeSeed(seed string, seedBytes []byte) ([]byte, error) {
	if seed == "" {
		if len(seedBytes) == 0 {
			return nil, nil
		}
		return append([]byte(nil), seedBytes...), nil
	}

	mnemonic := strings.Join(strings.Fields(seed), " ")
	if bip39.IsMnemonicValid(mnemonic) {
		b, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
		if err != nil {
			return nil, managerError(ErrConfig, "invalid mnemonic",
				err)
		}
		return b, nil
	}

	b, err := base64.StdEncoding.DecodeString(seed)
	if err != nil {
		return nil, managerError(ErrConfig, "seed is neither a valid "+
			"mnemonic nor base64 encoded", nil)
	}
	return b, nil
}

// restoreAddresses rebuilds the derived address lists from the address
// infos. Entries outside the account are skipped and each list is cut at
// the first missing index so children[i].Index == i holds.
func (m *KeyManager) restoreAddresses() {
	masterPath := formatPath(m.masterPath)

	cached := map[Branch]map[uint32]*Address{
		BranchReceive: {},
		BranchChange:  {},
	}
	for scriptHash, info := range m.infos {
		branch, index, err := parseChildPath(masterPath, info.Path)
		if err != nil {
			continue
		}
		if branch == BranchChange && !m.scheme.separateChange() {
			continue
		}
		addr, err := m.cachedAddress(scriptHash, info, branch, index)
		if err != nil {
			log.Warnf("Ignoring cached address %s: %v",
				info.DisplayAddress, err)
			continue
		}
		cached[branch][index] = addr
	}

	for _, branch := range []Branch{BranchReceive, BranchChange} {
		indexes := make([]uint32, 0, len(cached[branch]))
		for i := range cached[branch] {
			indexes = append(indexes, i)
		}
		sort.Slice(indexes, func(i, j int) bool {
			return indexes[i] < indexes[j]
		})

		ring := m.keys.branch(branch)
		for i, index := range indexes {
			if index != uint32(i) {
				log.Warnf("Cached %s addresses skip index %d, "+
					"dropping %d entries", branch, i,
					len(indexes)-i)
				break
			}
			m.addAddress(ring, cached[branch][index])
		}
	}
}

// addAddress appends a derived address to its ring and indexes it.
func (m *KeyManager) addAddress(ring *keyRing, addr *Address) {
	ring.children = append(ring.children, addr)
	m.addrsByDisplay[addr.DisplayAddress] = addr
	m.addrsByScript[addr.ScriptHash] = addr
}

// setInfo replaces the info of a script hash and reindexes its outputs.
func (m *KeyManager) setInfo(scriptHash string, info *AddressInfo) {
	m.removeInfo(scriptHash)

	m.infos[scriptHash] = info
	for _, utxo := range info.Utxos {
		m.outPointScripts[utxo.OutPoint] = scriptHash
	}
}

// removeInfo drops the info of a script hash and its indexed outputs.
func (m *KeyManager) removeInfo(scriptHash string) {
	old, ok := m.infos[scriptHash]
	if !ok {
		return
	}
	for _, utxo := range old.Utxos {
		if m.outPointScripts[utxo.OutPoint] == scriptHash {
			delete(m.outPointScripts, utxo.OutPoint)
		}
	}
	delete(m.infos, scriptHash)
}

// queueKeys records a key materialization.
func (m *KeyManager) queueKeys() {
	m.events.push(NewKeysEvent{Keys: m.keys.raw()})
}

// Load materializes the account keys and runs the gap limit scanner. A
// missing master public key is derived from the master private key, and
// both are derived from the seed when neither is cached.
func (m *KeyManager) Load() error {
	defer m.events.dispatch()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadMasterKeys(); err != nil {
		return err
	}

	return m.scan()
}

// loadMasterKeys makes sure the master public key is available.
func (m *KeyManager) loadMasterKeys() error {
	master := &m.keys.master
	if master.pub != nil {
		return nil
	}

	if master.priv == nil {
		return m.deriveMasterPriv()
	}

	pub, err := master.priv.Neuter()
	if err != nil {
		return managerError(ErrKeyChain, "unable to neuter master key",
			err)
	}
	master.pub = pub
	m.queueKeys()

	return nil
}

// deriveMasterPriv derives the account private key from the seed. If a
// master public key is cached, the derived key must match it.
func (m *KeyManager) deriveMasterPriv() error {
	if len(m.seed) == 0 {
		return managerError(ErrMissingPrivateKey, "no seed to derive "+
			"the master private key from", nil)
	}

	key, err := hdkeychain.NewMaster(m.seed, m.net.Params)
	if err != nil {
		return managerError(ErrKeyChain, "unable to create root key",
			err)
	}
	rootPub, err := key.ECPubKey()
	if err != nil {
		return managerError(ErrKeyChain, "invalid root key", err)
	}
	fingerprint := btcutil.Hash160(rootPub.SerializeCompressed())[:4]

	for _, i := range m.masterPath {
		key, err = key.Derive(i)
		if err != nil {
			str := fmt.Sprintf("unable to derive %s",
				formatPath(m.masterPath))
			return managerError(ErrKeyChain, str, err)
		}
	}

	pub, err := key.Neuter()
	if err != nil {
		return managerError(ErrKeyChain, "unable to neuter master key",
			err)
	}

	master := &m.keys.master
	if master.pub != nil && master.pub.String() != pub.String() {
		return managerError(ErrKeyChain, "seed does not match the "+
			"cached master public key", nil)
	}

	master.priv = key
	master.pub = pub
	m.rootFingerprint = binary.LittleEndian.Uint32(fingerprint)
	m.queueKeys()

	return nil
}

// ReceiveAddress returns the first receive address that is not known to be
// used, or an empty string if all derived addresses are used.
func (m *KeyManager) ReceiveAddress() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.nextAvailable(BranchReceive)
}

// ChangeAddress returns the first change address that is not known to be
// used, or an empty string if all derived addresses are used. The bip32
// scheme shares its single branch between receive and change.
func (m *KeyManager) ChangeAddress() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.nextAvailable(m.changeBranch())
}

func (m *KeyManager) changeBranch() Branch {
	if m.scheme.separateChange() {
		return BranchChange
	}
	return BranchReceive
}

// nextAvailable returns the encoding of the first available address of the
// branch, or an empty string.
func (m *KeyManager) nextAvailable(branch Branch) string {
	if addr := m.nextAvailableAddr(branch); addr != nil {
		return addr.DisplayAddress
	}
	return ""
}

// nextAvailableAddr returns the first address of the branch whose script
// hash has no info or is marked unused.
func (m *KeyManager) nextAvailableAddr(branch Branch) *Address {
	for _, addr := range m.keys.branch(branch).children {
		if !m.isUsed(addr.ScriptHash) {
			return addr
		}
	}
	return nil
}

func (m *KeyManager) isUsed(scriptHash string) bool {
	info, ok := m.infos[scriptHash]
	return ok && info.Used
}

// UpdateAddressInfo replaces the known state of the address with the given
// script hash. The manager keeps a copy. Call ScanAddresses afterwards to
// extend the address pool past newly used addresses.
func (m *KeyManager) UpdateAddressInfo(scriptHash string, info *AddressInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if info == nil {
		m.removeInfo(scriptHash)
		return
	}
	m.setInfo(scriptHash, copyInfo(info))
}

// ScanAddresses runs the gap limit scanner, deriving addresses until every
// branch has enough unused addresses past the last used one.
func (m *KeyManager) ScanAddresses() error {
	defer m.events.dispatch()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys.master.pub == nil {
		return managerError(ErrMissingKey, "manager is not loaded", nil)
	}

	return m.scan()
}

// Addresses returns a copy of the addresses derived on the branch in
// derivation order.
func (m *KeyManager) Addresses(branch Branch) []Address {
	m.mu.RLock()
	defer m.mu.RUnlock()

	children := m.keys.branch(branch).children
	addrs := make([]Address, len(children))
	for i, addr := range children {
		addrs[i] = *addr
	}
	return addrs
}

// LookupAddress returns the derived address with the given encoding.
func (m *KeyManager) LookupAddress(displayAddress string) (Address, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	addr, ok := m.addrsByDisplay[displayAddress]
	if !ok {
		return Address{}, false
	}
	return *addr, true
}

// Keys returns the serialized key tree.
func (m *KeyManager) Keys() RawKeys {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.keys.raw()
}

// DrainEvents returns and clears the events that were not delivered to a
// callback.
func (m *KeyManager) DrainEvents() []Event {
	return m.events.drain()
}

// Net returns the network profile of the manager.
func (m *KeyManager) Net() *netparams.Params {
	return m.net
}

// Scheme returns the derivation scheme of the manager.
func (m *KeyManager) Scheme() Scheme {
	return m.scheme
}

// Close clears the seed and all private keys from memory. The manager keeps
// working as a watch-only wallet afterwards.
func (m *KeyManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	zero.Bytes(m.seed)
	m.seed = nil
	for _, ring := range []*keyRing{
		&m.keys.master, &m.keys.receive, &m.keys.change,
	} {
		if ring.priv != nil {
			ring.priv.Zero()
			ring.priv = nil
		}
	}
}
