// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package store defines the AuthState external collaborator: local identity
// key, signed prekey, account identity bundle, registration ID, the current
// "me" identity, the keyed transactional mutex for key-store updates, and
// the prekey generator. The Signal session/identity stores themselves stay
// further behind — this package only owns what the core pipeline needs to
// touch directly (retry-receipt prekey bundles).
package store

import (
	"context"

	"github.com/wacore/wacore/types"
	"github.com/wacore/wacore/util/keys"
)

// KeyStoreTx is the transactional handle handed to AuthState.WithTransaction.
// Exactly one fresh one-time prekey is minted per retry-receipt invocation
// that attaches a key bundle.
type KeyStoreTx interface {
	GenOnePreKey(ctx context.Context) (*keys.PreKey, error)
}

// KeyStoreTxError wraps a failure inside a WithTransaction callback.
type KeyStoreTxError struct {
	Err error
}

func (e *KeyStoreTxError) Error() string { return "key store transaction failed: " + e.Err.Error() }
func (e *KeyStoreTxError) Unwrap() error { return e.Err }

// AuthState is the external collaborator providing local identity material.
// All writes go through WithTransaction; the core never mutates key state
// outside a transaction.
type AuthState interface {
	WithTransaction(ctx context.Context, fn func(tx KeyStoreTx) error) error

	IdentityKeyPair() *keys.KeyPair
	SignedPreKey() *keys.PreKey
	RegistrationID() uint32
	// AccountIdentityBundle is the serialized device-identity payload
	// attached to retry-receipt key bundles.
	AccountIdentityBundle() []byte
	Me() types.JID
}
