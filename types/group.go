// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package types

import "time"

// GroupInfo is the full group metadata extracted from a w:gp2 "create"
// notification or a group-info query response.
type GroupInfo struct {
	JID          JID
	OwnerJID     JID
	Name         string
	Topic        string
	Created      time.Time
	Participants []GroupParticipant
	Announce     bool
	Locked       bool
}

type GroupParticipant struct {
	JID     JID
	IsAdmin bool
}

// RecvChatDelta accumulates the chat-state delta observed for one chat
// during bulk history ingest, drained into the app-state resync request at
// debounce expiry.
type RecvChatDelta struct {
	ChatJID              JID
	ConversationTimestamp int64
	UnreadCount           int
}
