// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keycache implements a persistent store for the keys, derived
// addresses and address metadata of a key manager. It plugs into the
// manager through its configuration: the stored state warm starts a new
// manager and the manager's change notifications are written back.
package keycache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btckeymgr/internal/cfgutil"
	"github.com/btcsuite/btckeymgr/internal/snacl"
	"github.com/btcsuite/btckeymgr/internal/zero"
	"github.com/btcsuite/btckeymgr/keymgr"
	"github.com/btcsuite/btcwallet/walletdb"

	// Register the bbolt backed database driver.
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
)

const (
	// DBName is the file name of the cache inside its directory.
	DBName = "keycache.db"

	// DefaultDBTimeout is the time to wait for the database lock.
	DefaultDBTimeout = 60 * time.Second

	// LatestVersion is the most recent version of the cache layout.
	LatestVersion = 1

	dbType = "bdb"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = errors.New("corrupt record")

	// ErrAccountMismatch is returned when the cache was created for a
	// different account.
	ErrAccountMismatch = errors.New("cache belongs to another account")

	// ErrUnknownVersion is returned when the cache was written by a newer
	// version.
	ErrUnknownVersion = errors.New("unknown cache version")

	// ErrInvalidPassphrase is returned when the passphrase does not open
	// the cache's secret key.
	ErrInvalidPassphrase = errors.New("invalid passphrase")
)

var (
	metaBucketName  = []byte("meta")
	keysBucketName  = []byte("keys")
	addrsBucketName = []byte("addrs")

	versionKey   = []byte("version")
	accountKey   = []byte("account")
	cryptoKeyKey = []byte("cryptokey")

	masterKey  = []byte("master")
	receiveKey = []byte("receive")
	changeKey  = []byte("change")
)

// Store is a key cache backed by a walletdb database.
type Store struct {
	db         walletdb.DB
	publicOnly bool

	passphrase []byte
	scryptN    int
	secret     *snacl.SecretKey
}

// Option modifies the behavior of a Store.
type Option func(*Store)

// WithPublicOnly makes the store drop private keys before writing them, so
// signing needs the seed again after a restart.
func WithPublicOnly() Option {
	return func(s *Store) {
		s.publicOnly = true
	}
}

// WithPassphrase makes the store seal private keys with a key derived from
// passphrase. The first store opened with a passphrase fixes it; later opens
// must pass the same one. Without it, sealed keys are not returned.
func WithPassphrase(passphrase []byte) Option {
	return func(s *Store) {
		s.passphrase = append([]byte(nil), passphrase...)
	}
}

// Open opens the cache in dir, creating it when it does not exist yet.
func Open(dir string, timeout time.Duration, opts ...Option) (*Store,
	error) {

	dbPath := filepath.Join(dir, DBName)
	exists, err := cfgutil.FileExists(dbPath)
	if err != nil {
		return nil, err
	}

	var db walletdb.DB
	if exists {
		db, err = walletdb.Open(dbType, dbPath, true, timeout, false)
	} else {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
		db, err = walletdb.Create(dbType, dbPath, true, timeout, false)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", dbPath, err)
	}

	s := &Store{db: db, scryptN: snacl.DefaultN}
	for _, opt := range opts {
		opt(s)
	}

	err = s.init()
	zero.Bytes(s.passphrase)
	s.passphrase = nil
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Debugf("Opened key cache %s", dbPath)

	return s, nil
}

// init creates the buckets of a new cache and checks the version of an
// existing one.
func (s *Store) init() error {
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		meta := tx.ReadWriteBucket(metaBucketName)
		if meta == nil {
			var err error
			meta, err = tx.CreateTopLevelBucket(metaBucketName)
			if err != nil {
				return err
			}
			var version [4]byte
			binary.BigEndian.PutUint32(version[:], LatestVersion)
			if err := meta.Put(versionKey, version[:]); err != nil {
				return err
			}
		}

		version := meta.Get(versionKey)
		if len(version) != 4 {
			return fmt.Errorf("%w: version", ErrCorrupt)
		}
		if v := binary.BigEndian.Uint32(version); v > LatestVersion {
			return fmt.Errorf("%w %d", ErrUnknownVersion, v)
		}

		for _, name := range [][]byte{keysBucketName, addrsBucketName} {
			if tx.ReadWriteBucket(name) != nil {
				continue
			}
			if _, err := tx.CreateTopLevelBucket(name); err != nil {
				return err
			}
		}

		if len(s.passphrase) == 0 {
			return nil
		}
		return s.openSecretKey(meta)
	})
}

// openSecretKey derives the secret key from the passphrase, creating it when
// the cache has none yet.
func (s *Store) openSecretKey(meta walletdb.ReadWriteBucket) error {
	params := meta.Get(cryptoKeyKey)
	if params == nil {
		secret, err := snacl.NewSecretKey(
			s.passphrase, s.scryptN, snacl.DefaultR,
			snacl.DefaultP,
		)
		if err != nil {
			return err
		}
		s.secret = secret
		return meta.Put(cryptoKeyKey, secret.Marshal())
	}

	var secret snacl.SecretKey
	if err := secret.Unmarshal(params); err != nil {
		return fmt.Errorf("%w: secret key parameters", ErrCorrupt)
	}
	err := secret.DeriveKey(s.passphrase)
	switch {
	case errors.Is(err, snacl.ErrInvalidPassword):
		return ErrInvalidPassphrase
	case err != nil:
		return err
	}
	s.secret = &secret

	return nil
}

// Close forgets the secret key and closes the underlying database.
func (s *Store) Close() error {
	if s.secret != nil {
		s.secret.Zero()
	}
	return s.db.Close()
}

// Bind ties the cache to an account descriptor. The first call records it,
// later calls must pass the same descriptor.
func (s *Store) Bind(account string) error {
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		meta := tx.ReadWriteBucket(metaBucketName)
		stored := meta.Get(accountKey)
		if stored == nil {
			return meta.Put(accountKey, []byte(account))
		}
		if string(stored) != account {
			return fmt.Errorf("%w: %s, not %s", ErrAccountMismatch,
				stored, account)
		}
		return nil
	})
}

// PutKeys stores the key tree of a manager. A ring announced without its
// private key keeps the one already stored, unless the store is public only.
func (s *Store) PutKeys(keys keymgr.RawKeys) error {
	rings := []struct {
		name []byte
		ring keymgr.RawKeyRing
	}{
		{masterKey, keys.Master},
		{receiveKey, keys.Receive},
		{changeKey, keys.Change},
	}

	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(keysBucketName)
		for _, r := range rings {
			if r.ring == (keymgr.RawKeyRing{}) {
				continue
			}

			rec, err := s.keyRingRecord(bucket.Get(r.name), r.ring)
			if err != nil {
				return fmt.Errorf("%s keys: %w", r.name, err)
			}
			b, err := encodeKeyRing(rec)
			if err != nil {
				return err
			}
			if err := bucket.Put(r.name, b); err != nil {
				return err
			}
		}
		return nil
	})
}

// keyRingRecord builds the record stored for ring on top of the stored one.
func (s *Store) keyRingRecord(stored []byte,
	ring keymgr.RawKeyRing) (*keyRingRecord, error) {

	rec := &keyRingRecord{xpub: []byte(ring.XPub)}
	switch {
	case s.publicOnly:
		// Private keys are never written.

	case ring.XPriv == "":
		if stored == nil {
			break
		}
		old, err := decodeKeyRing(stored)
		if err != nil {
			return nil, err
		}
		rec.xpriv, rec.xprivEnc = old.xpriv, old.xprivEnc

	case s.secret != nil:
		sealed, err := s.secret.Encrypt([]byte(ring.XPriv))
		if err != nil {
			return nil, err
		}
		rec.xprivEnc = sealed

	default:
		rec.xpriv = []byte(ring.XPriv)
	}

	return rec, nil
}

// FetchKeys returns the stored key tree. ErrNotFound is returned if no key
// was stored yet. Sealed private keys are only returned when the store was
// opened with the passphrase.
func (s *Store) FetchKeys() (keymgr.RawKeys, error) {
	var keys keymgr.RawKeys
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(keysBucketName)
		rings := []struct {
			name []byte
			ring *keymgr.RawKeyRing
		}{
			{masterKey, &keys.Master},
			{receiveKey, &keys.Receive},
			{changeKey, &keys.Change},
		}

		found := false
		for _, r := range rings {
			b := bucket.Get(r.name)
			if b == nil {
				continue
			}
			rec, err := decodeKeyRing(b)
			if err != nil {
				return fmt.Errorf("%s keys: %w", r.name, err)
			}

			r.ring.XPub = string(rec.xpub)
			r.ring.XPriv = string(rec.xpriv)
			if len(rec.xprivEnc) > 0 && s.secret != nil {
				xpriv, err := s.secret.Decrypt(rec.xprivEnc)
				if err != nil {
					return fmt.Errorf("%w: %s private key: %v",
						ErrCorrupt, r.name, err)
				}
				r.ring.XPriv = string(xpriv)
				zero.Bytes(xpriv)
			}
			found = true
		}
		if !found {
			return ErrNotFound
		}
		return nil
	})

	return keys, err
}

// PutAddress records a derived address. The metadata of an address that is
// already known is kept.
func (s *Store) PutAddress(scriptHash, address, path string) error {
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(addrsBucketName)
		info := &keymgr.AddressInfo{}
		if b := bucket.Get([]byte(scriptHash)); b != nil {
			var err error
			info, err = decodeAddressInfo(b)
			if err != nil {
				return err
			}
		}
		info.DisplayAddress = address
		info.Path = path

		return putAddressInfo(bucket, scriptHash, info)
	})
}

// PutAddressInfo replaces the metadata of an address.
func (s *Store) PutAddressInfo(scriptHash string,
	info *keymgr.AddressInfo) error {

	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(addrsBucketName)
		return putAddressInfo(bucket, scriptHash, info)
	})
}

func putAddressInfo(bucket walletdb.ReadWriteBucket, scriptHash string,
	info *keymgr.AddressInfo) error {

	b, err := encodeAddressInfo(info)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(scriptHash), b)
}

// FetchAddressInfo returns the metadata of an address.
func (s *Store) FetchAddressInfo(scriptHash string) (*keymgr.AddressInfo,
	error) {

	var info *keymgr.AddressInfo
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		b := tx.ReadBucket(addrsBucketName).Get([]byte(scriptHash))
		if b == nil {
			return fmt.Errorf("%w: address %s", ErrNotFound,
				scriptHash)
		}

		var err error
		info, err = decodeAddressInfo(b)
		return err
	})

	return info, err
}

// MarkUsed sets the used flag of a known address and returns its updated
// metadata.
func (s *Store) MarkUsed(scriptHash string, used bool) (*keymgr.AddressInfo,
	error) {

	var info *keymgr.AddressInfo
	err := walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(addrsBucketName)
		b := bucket.Get([]byte(scriptHash))
		if b == nil {
			return fmt.Errorf("%w: address %s", ErrNotFound,
				scriptHash)
		}

		var err error
		info, err = decodeAddressInfo(b)
		if err != nil {
			return err
		}
		info.Used = used

		return putAddressInfo(bucket, scriptHash, info)
	})

	return info, err
}

// AddressInfos returns the metadata of every stored address keyed by script
// hash.
func (s *Store) AddressInfos() (map[string]*keymgr.AddressInfo, error) {
	infos := make(map[string]*keymgr.AddressInfo)
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(addrsBucketName)
		return bucket.ForEach(func(k, v []byte) error {
			info, err := decodeAddressInfo(v)
			if err != nil {
				return fmt.Errorf("address %s: %w", k, err)
			}
			infos[string(k)] = info
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return infos, nil
}

// OnNewKey stores the key tree announced by a manager.
func (s *Store) OnNewKey(keys keymgr.RawKeys) error {
	log.Debugf("Storing keys")
	return s.PutKeys(keys)
}

// OnNewAddress stores an address announced by a manager.
func (s *Store) OnNewAddress(scriptHash, address, path string) error {
	log.Tracef("Storing address %s (%s)", address, path)
	return s.PutAddress(scriptHash, address, path)
}

// Config returns a copy of base completed with the cached keys, the address
// metadata and the store's notification callbacks.
func (s *Store) Config(base keymgr.Config) (*keymgr.Config, error) {
	cfg := base

	keys, err := s.FetchKeys()
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, err
	default:
		cfg.RawKeys = keys
	}

	cfg.AddressInfos, err = s.AddressInfos()
	if err != nil {
		return nil, err
	}

	cfg.OnNewKey = s.OnNewKey
	cfg.OnNewAddress = s.OnNewAddress

	log.Debugf("Loaded %d cached addresses", len(cfg.AddressInfos))

	return &cfg, nil
}
