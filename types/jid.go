// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Server name constants, matching the chat-endpoint spaces named in the glossary.
const (
	DefaultUserServer = "s.whatsapp.net"
	GroupServer       = "g.us"
	BroadcastServer   = "broadcast"
	NewsletterServer  = "newsletter"
	ConsumerServer    = "c.us"
	LegacyUserServer  = "c.us"
)

// ServerJID is the bare server JID used for server-addressed stanzas
// (prekey replenishment, logout, etc).
var ServerJID = JID{Server: DefaultUserServer}

// EmptyJID is the zero value, used as a sentinel for "not logged in".
var EmptyJID = JID{}

// JID is an opaque chat endpoint identifier of the form user[.device]@domain.
type JID struct {
	User        string
	Agent       uint8
	Device      uint16
	Integrator  uint16
	Server      string
	RawAgent    uint8
	IsNewsletter bool
}

func NewJID(user, server string) JID {
	return JID{User: user, Server: server}
}

func NewADJID(user string, agent uint8, device uint16) JID {
	return JID{User: user, Agent: agent, Device: device, Server: DefaultUserServer}
}

// ParseJID parses a string of the form "user[:agent][.device]@server". A
// string without '@' is a bare server JID (e.g. ServerJID.String()).
func ParseJID(input string) (JID, error) {
	if input == "" {
		return EmptyJID, nil
	}
	at := strings.IndexByte(input, '@')
	if at < 0 {
		return JID{Server: input}, nil
	}
	user := input[:at]
	server := input[at+1:]
	jid := JID{Server: server}
	if dot := strings.IndexByte(user, '.'); dot >= 0 {
		devicePart := user[dot+1:]
		device, err := strconv.Atoi(devicePart)
		if err != nil {
			return JID{}, fmt.Errorf("invalid device part in JID %q: %w", input, err)
		}
		jid.Device = uint16(device)
		user = user[:dot]
	}
	if colon := strings.IndexByte(user, ':'); colon >= 0 {
		agent, err := strconv.Atoi(user[colon+1:])
		if err != nil {
			return JID{}, fmt.Errorf("invalid agent part in JID %q: %w", input, err)
		}
		jid.Agent = uint8(agent)
		user = user[:colon]
	}
	jid.User = user
	return jid, nil
}

// IsEmpty reports whether this is the zero-value JID.
func (jid JID) IsEmpty() bool {
	return jid.User == "" && jid.Server == ""
}

// ToNonAD strips the device part, returning the bare user@server JID.
func (jid JID) ToNonAD() JID {
	return JID{User: jid.User, Server: jid.Server}
}

// String renders the JID back to wire form.
func (jid JID) String() string {
	if jid.User == "" {
		return jid.Server
	}
	user := jid.User
	if jid.Agent != 0 {
		user = fmt.Sprintf("%s:%d", user, jid.Agent)
	}
	if jid.Device != 0 {
		user = fmt.Sprintf("%s.%d", user, jid.Device)
	}
	return fmt.Sprintf("%s@%s", user, jid.Server)
}

// SignalAddress renders the stable per-device address string the (external)
// Signal session store keys sessions by.
func (jid JID) SignalAddress() string {
	return fmt.Sprintf("%s.%d", jid.User, jid.Device)
}

// Equal compares user+server+device, ignoring Agent/Integrator.
func (jid JID) Equal(other JID) bool {
	return jid.User == other.User && jid.Server == other.Server && jid.Device == other.Device
}

// SameUser compares just the user part, ignoring server, agent and device, as used for
// "same-user(participant, local identity)" checks in the receipt interpreter.
func (jid JID) SameUser(other JID) bool {
	return jid.User == other.User
}
