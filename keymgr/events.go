// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import "sync"

// Event is a change notification emitted by the manager. The concrete types
// are NewAddressEvent and NewKeysEvent.
type Event interface {
	event()
}

// NewAddressEvent announces a freshly derived address.
type NewAddressEvent struct {
	ScriptHash string
	Address    string
	Path       string
}

func (NewAddressEvent) event() {}

// NewKeysEvent carries the complete key set after a key was materialized.
type NewKeysEvent struct {
	Keys RawKeys
}

func (NewKeysEvent) event() {}

// outbox queues events raised while the manager state is locked and hands
// them to the configured callbacks once it is released. Events without a
// matching callback stay queued until drained.
type outbox struct {
	mu      sync.Mutex
	pending []Event

	// deliverMu serializes delivery so callbacks observe events in the
	// order they were raised.
	deliverMu sync.Mutex

	onNewAddress func(scriptHash, address, path string) error
	onNewKey     func(RawKeys) error
}

func (o *outbox) push(e Event) {
	o.mu.Lock()
	o.pending = append(o.pending, e)
	o.mu.Unlock()
}

// dispatch delivers all deliverable events. Callback failures are logged and
// otherwise ignored.
func (o *outbox) dispatch() {
	if o.onNewAddress == nil && o.onNewKey == nil {
		return
	}

	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()

	o.mu.Lock()
	var deliver []Event
	kept := o.pending[:0]
	for _, e := range o.pending {
		switch e.(type) {
		case NewAddressEvent:
			if o.onNewAddress != nil {
				deliver = append(deliver, e)
				continue
			}
		case NewKeysEvent:
			if o.onNewKey != nil {
				deliver = append(deliver, e)
				continue
			}
		}
		kept = append(kept, e)
	}
	o.pending = kept
	o.mu.Unlock()

	for _, e := range deliver {
		switch e := e.(type) {
		case NewAddressEvent:
			err := o.onNewAddress(e.ScriptHash, e.Address, e.Path)
			if err != nil {
				log.Warnf("Unable to persist address %s: %v",
					e.Address, err)
			}
		case NewKeysEvent:
			if err := o.onNewKey(e.Keys); err != nil {
				log.Warnf("Unable to persist keys: %v", err)
			}
		}
	}
}

// drain removes and returns all queued events.
func (o *outbox) drain() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()

	events := o.pending
	o.pending = nil
	return events
}
