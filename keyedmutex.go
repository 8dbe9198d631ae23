// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// keyedMutex serializes tasks sharing a key while allowing parallelism
// across keys. Message intake locks on remoteJID; the post-upsert
// subscriber locks on "p-"+chatID, a deliberately disjoint key space so the
// subscriber never deadlocks against the handler that published to it.
type keyedMutex struct {
	locks *xsync.MapOf[string, *refCountedMutex]
}

type refCountedMutex struct {
	mu       sync.Mutex
	refCount int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: xsync.NewMapOf[string, *refCountedMutex]()}
}

// Lock acquires the mutex for key, creating it on first use.
func (km *keyedMutex) Lock(key string) {
	entry, _ := km.locks.Compute(key, func(old *refCountedMutex, loaded bool) (*refCountedMutex, bool) {
		if !loaded {
			old = &refCountedMutex{}
		}
		old.refCount++
		return old, false
	})
	entry.mu.Lock()
}

// Unlock releases the mutex for key, removing it from the map once no other
// goroutine holds a reference.
func (km *keyedMutex) Unlock(key string) {
	entry, ok := km.locks.Load(key)
	if !ok {
		return
	}
	entry.mu.Unlock()
	km.locks.Compute(key, func(old *refCountedMutex, loaded bool) (*refCountedMutex, bool) {
		if !loaded {
			return nil, true
		}
		old.refCount--
		return old, old.refCount <= 0
	})
}

// WithLock runs fn while holding the mutex for key.
func (km *keyedMutex) WithLock(key string, fn func()) {
	km.Lock(key)
	defer km.Unlock(key)
	fn()
}
