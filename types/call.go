// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package types

import "time"

// CallStatus is the lifecycle of a cached CallEvent.
type CallStatus string

const (
	CallStatusOffer     CallStatus = "offer"
	CallStatusAccept    CallStatus = "accept"
	CallStatusReject    CallStatus = "reject"
	CallStatusTimeout   CallStatus = "timeout"
	CallStatusTransport CallStatus = "transport"
)

// BasicCallMeta is shared by every call-stanza event.
type BasicCallMeta struct {
	From        JID
	Timestamp   time.Time
	CallCreator JID
	CallID      string
}

// CallRemoteMeta carries the remote peer's platform/version for offer-style events.
type CallRemoteMeta struct {
	RemotePlatform string
	RemoteVersion  string
}

// CallEvent is the cached, enrichable record for one call ID: inserted on
// offer, enriched as later stanzas arrive, removed on terminal status.
type CallEvent struct {
	BasicCallMeta
	CallRemoteMeta
	Status CallStatus
}
