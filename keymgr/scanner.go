// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import "fmt"

// scan derives addresses until no branch needs another one. The change
// branch is only scanned when the scheme keeps change separate. The caller
// must hold the write lock.
func (m *KeyManager) scan() error {
	branches := []Branch{BranchReceive}
	if m.scheme.separateChange() {
		branches = append(branches, BranchChange)
	}

	for {
		derived := false
		for _, branch := range branches {
			d, err := m.deriveNextIfNeeded(branch)
			if err != nil {
				return err
			}
			derived = derived || d
		}
		if !derived {
			return nil
		}
	}
}

// deriveNextIfNeeded derives the next address of the branch when fewer than
// gapLimit addresses exist or a used address lies within gapLimit of the
// end. It reports whether an address was derived.
func (m *KeyManager) deriveNextIfNeeded(branch Branch) (bool, error) {
	ring := m.keys.branch(branch)
	if ring.pub == nil {
		if err := m.deriveBranchPub(branch); err != nil {
			return false, err
		}
	}

	n := len(ring.children)
	if n >= m.gapLimit {
		lastUsed := -1
		for i := n - 1; i >= 0; i-- {
			if m.isUsed(ring.children[i].ScriptHash) {
				lastUsed = i
				break
			}
		}
		if lastUsed < 0 || n-lastUsed > m.gapLimit {
			return false, nil
		}
	}

	addr, err := m.deriveAddress(ring.pub, branch, uint32(n))
	if err != nil {
		return false, err
	}
	m.addAddress(ring, addr)
	m.events.push(NewAddressEvent{
		ScriptHash: addr.ScriptHash,
		Address:    addr.DisplayAddress,
		Path:       addr.Path,
	})

	log.Debugf("Derived %s address %s (%s)", branch, addr.DisplayAddress,
		addr.Path)

	return true, nil
}

// deriveBranchPub derives the public key of a branch from the master public
// key.
func (m *KeyManager) deriveBranchPub(branch Branch) error {
	master := m.keys.master.pub
	if master == nil {
		return managerError(ErrMissingKey, "master public key is not "+
			"loaded", nil)
	}

	pub, err := master.Derive(uint32(branch))
	if err != nil {
		str := fmt.Sprintf("unable to derive %s branch key", branch)
		return managerError(ErrKeyChain, str, err)
	}
	m.keys.branch(branch).pub = pub
	m.queueKeys()

	return nil
}
