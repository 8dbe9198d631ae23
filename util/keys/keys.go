// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package keys provides the X25519 key pair helper used for the noise
// handshake and for Signal prekey material. The double-ratchet itself lives
// behind the external SessionStore interface; this package only needs to
// mint key pairs.
package keys

import (
	"crypto/rand"

	"golang.org/x/crypto/curve25519"
)

// KeyPair is an X25519 key pair.
type KeyPair struct {
	Pub  *[32]byte
	Priv *[32]byte
}

// NewKeyPair generates a new random X25519 key pair.
func NewKeyPair() *KeyPair {
	var priv, pub [32]byte
	_, err := rand.Read(priv[:])
	if err != nil {
		panic(err)
	}
	// Clamp per RFC 7748.
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	curve25519.ScalarBaseMult(&pub, &priv)
	return &KeyPair{Pub: &pub, Priv: &priv}
}

// PreKey is a one-time prekey: an ID plus the key pair it was minted with.
type PreKey struct {
	KeyPair
	KeyID uint32
}
