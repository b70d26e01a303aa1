// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// ResolvePath returns the branch and index of the address holding the given
// unspent output according to the address infos.
func (m *KeyManager) ResolvePath(op wire.OutPoint) (Branch, uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	addr, err := m.resolveOutPoint(op)
	if err != nil {
		return 0, 0, err
	}
	return addr.Branch, addr.Index, nil
}

// resolveOutPoint finds the derived address whose UTXO set contains op. The
// caller must hold the lock.
func (m *KeyManager) resolveOutPoint(op wire.OutPoint) (*Address, error) {
	scriptHash, ok := m.outPointScripts[op]
	if !ok {
		str := fmt.Sprintf("output %v is not held by any known "+
			"address", op)
		return nil, managerError(ErrUnknownAddress, str, nil)
	}

	addr, ok := m.addrsByScript[scriptHash]
	if !ok {
		str := fmt.Sprintf("output %v pays to script hash %s which "+
			"was not derived by this account", op, scriptHash)
		return nil, managerError(ErrUnknownAddress, str, nil)
	}

	return addr, nil
}
