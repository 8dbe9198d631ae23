// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"context"
	"sync"

	"github.com/wacore/wacore/types"
	"github.com/wacore/wacore/util/keys"
)

// MemoryDevice is an in-memory AuthState, suitable for tests and for driving
// the core pipeline without a real persistent store.
type MemoryDevice struct {
	mu sync.Mutex

	identityKey    *keys.KeyPair
	signedPreKey   *keys.PreKey
	registrationID uint32
	account        []byte
	me             types.JID

	nextPreKeyID uint32
}

// NewMemoryDevice creates an AuthState with fresh random key material.
func NewMemoryDevice(me types.JID, registrationID uint32) *MemoryDevice {
	return &MemoryDevice{
		identityKey:    keys.NewKeyPair(),
		signedPreKey:   &keys.PreKey{KeyPair: *keys.NewKeyPair(), KeyID: 1},
		registrationID: registrationID,
		account:        []byte{},
		me:             me,
		nextPreKeyID:   2,
	}
}

func (d *MemoryDevice) IdentityKeyPair() *keys.KeyPair      { return d.identityKey }
func (d *MemoryDevice) SignedPreKey() *keys.PreKey          { return d.signedPreKey }
func (d *MemoryDevice) RegistrationID() uint32              { return d.registrationID }
func (d *MemoryDevice) AccountIdentityBundle() []byte       { return d.account }
func (d *MemoryDevice) Me() types.JID                       { return d.me }

// WithTransaction holds the device mutex for the duration of fn, so key
// material is never read or written outside a transaction.
func (d *MemoryDevice) WithTransaction(ctx context.Context, fn func(tx KeyStoreTx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(memoryTx{d})
}

type memoryTx struct {
	d *MemoryDevice
}

func (tx memoryTx) GenOnePreKey(ctx context.Context) (*keys.PreKey, error) {
	id := tx.d.nextPreKeyID
	tx.d.nextPreKeyID++
	return &keys.PreKey{KeyPair: *keys.NewKeyPair(), KeyID: id}, nil
}
