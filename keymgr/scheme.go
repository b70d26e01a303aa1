// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// Scheme is the derivation layout of a wallet.
type Scheme uint8

const (
	// SchemeBIP32 derives addresses below m/0 and uses a single branch for
	// both receive and change addresses.
	SchemeBIP32 Scheme = iota

	// SchemeBIP44 derives pay-to-pubkey-hash addresses below
	// m/44'/coin'/account'.
	SchemeBIP44

	// SchemeBIP49 derives nested pay-to-witness-pubkey-hash addresses below
	// m/49'/coin'/account'.
	SchemeBIP49
)

// String returns the scheme name as accepted by ParseScheme.
func (s Scheme) String() string {
	switch s {
	case SchemeBIP32:
		return "bip32"
	case SchemeBIP44:
		return "bip44"
	case SchemeBIP49:
		return "bip49"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ParseScheme returns the scheme with the given name.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case "bip32":
		return SchemeBIP32, nil
	case "bip44":
		return SchemeBIP44, nil
	case "bip49":
		return SchemeBIP49, nil
	default:
		str := fmt.Sprintf("unknown derivation scheme %q", name)
		return 0, managerError(ErrConfig, str, nil)
	}
}

// nested reports whether addresses of the scheme wrap a witness program in
// a pay-to-script-hash output.
func (s Scheme) nested() bool {
	return s == SchemeBIP49
}

// separateChange reports whether the scheme keeps change addresses on their
// own branch.
func (s Scheme) separateChange() bool {
	return s != SchemeBIP32
}

// masterPath returns the indexes of the account key below the root key.
func (s Scheme) masterPath(coinType, account uint32) ([]uint32, error) {
	const h = hdkeychain.HardenedKeyStart

	switch s {
	case SchemeBIP32:
		return []uint32{0}, nil
	case SchemeBIP44:
		return []uint32{44 + h, coinType + h, account + h}, nil
	case SchemeBIP49:
		return []uint32{49 + h, coinType + h, account + h}, nil
	default:
		str := fmt.Sprintf("unknown derivation scheme %d", uint8(s))
		return nil, managerError(ErrConfig, str, nil)
	}
}

// formatPath renders derivation indexes in the m/a'/b/c notation.
func formatPath(indexes []uint32) string {
	var b strings.Builder
	b.WriteString("m")
	for _, i := range indexes {
		b.WriteByte('/')
		if i >= hdkeychain.HardenedKeyStart {
			b.WriteString(strconv.FormatUint(
				uint64(i-hdkeychain.HardenedKeyStart), 10,
			))
			b.WriteByte('\'')
			continue
		}
		b.WriteString(strconv.FormatUint(uint64(i), 10))
	}

	return b.String()
}

// Branch identifies one of the two address chains below the account key.
type Branch uint32

const (
	// BranchReceive is the external chain used for receive addresses.
	BranchReceive Branch = 0

	// BranchChange is the internal chain used for change addresses.
	BranchChange Branch = 1
)

// String returns a human readable branch name.
func (b Branch) String() string {
	switch b {
	case BranchReceive:
		return "receive"
	case BranchChange:
		return "change"
	default:
		return fmt.Sprintf("branch(%d)", uint32(b))
	}
}

// parseChildPath splits the suffix of a child path below the master path
// into its branch and index. The path must have the form
// <masterPath>/<branch>/<index> with unhardened components.
func parseChildPath(masterPath, path string) (Branch, uint32, error) {
	prefix := masterPath + "/"
	if !strings.HasPrefix(path, prefix) {
		return 0, 0, fmt.Errorf("path %q is not below %q", path,
			masterPath)
	}

	parts := strings.Split(strings.TrimPrefix(path, prefix), "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("path %q is not a child address path",
			path)
	}

	branch, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid branch in %q: %w", path, err)
	}
	if Branch(branch) != BranchReceive && Branch(branch) != BranchChange {
		return 0, 0, fmt.Errorf("unknown branch %d in %q", branch, path)
	}

	index, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid index in %q: %w", path, err)
	}
	if index >= hdkeychain.HardenedKeyStart {
		return 0, 0, fmt.Errorf("hardened index in %q", path)
	}

	return Branch(branch), uint32(index), nil
}
