// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"errors"
	"fmt"
)

// Sentinel errors for connection-lifecycle misuse.
var (
	ErrAlreadyConnected = errors.New("websocket is already connected")
	ErrNotConnected     = errors.New("websocket not connected")
	ErrNotLoggedIn      = errors.New("the client is not logged in")

	// ErrUntrustedIdentity is returned (or wrapped) by Decryptor.Decrypt when
	// decryption failed because the sender's identity key changed and isn't
	// yet trusted.
	ErrUntrustedIdentity = errors.New("untrusted identity")
)

// ElementMissingError reports a stanza missing a required child element.
type ElementMissingError struct {
	Tag string
	In  string
}

func (e *ElementMissingError) Error() string {
	return fmt.Sprintf("missing <%s> element in %s", e.Tag, e.In)
}

// InvalidCallerArgError surfaces caller misuse of the outbound API.
type InvalidCallerArgError struct {
	Reason string
}

func (e *InvalidCallerArgError) Error() string { return "invalid argument: " + e.Reason }
