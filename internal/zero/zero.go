// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package zero contains functions to clear seed and key material from
// memory.
package zero

// Bytes sets all bytes in the passed slice to zero.  This is used to
// explicitly clear seed material from memory.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
