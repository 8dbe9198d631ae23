// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package events defines the high-level payloads emitted on the client's
// event bus.
package events

import (
	"time"

	"github.com/wacore/wacore/binary"
	"github.com/wacore/wacore/types"
)

// UpsertSource distinguishes a bulk/offline backfill from a live notify.
type UpsertSource string

const (
	UpsertSourceAppend UpsertSource = "append"
	UpsertSourceNotify UpsertSource = "notify"
)

// MessagesUpsert is emitted once an inbound message has been decrypted and
// cleaned and is ready for subscribers.
type MessagesUpsert struct {
	Type     UpsertSource
	Messages []*types.WebMessage
}

// MessagesUpdate reports a status change on an existing 1:1 message.
type MessagesUpdate struct {
	Key    types.MessageKey
	Status types.MessageStatus
}

// MessageReceiptUpdate reports a per-user receipt in a group chat.
type MessageReceiptUpdate struct {
	Key              types.MessageKey
	SenderJID        types.JID
	ReceiptTimestamp time.Time
	ReadTimestamp    time.Time
}

// MediaRetryUpdate carries a decoded mediaretry notification.
type MediaRetryUpdate struct {
	Key  types.MessageKey
	Data *binary.Node
}

// ChatsUpsert is emitted on group creation.
type ChatsUpsert struct {
	JID                   types.JID
	Name                  string
	ConversationTimestamp int64
}

// GroupsUpsert carries full group metadata observed on group creation.
type GroupsUpsert struct {
	Info types.GroupInfo
}

// ContactUpdate queues a pushName-derived contact-name update.
type ContactUpdate struct {
	JID      types.JID
	PushName string
}

// CredsUpdate signals that locally stored credentials changed (consumed
// prekey index, own push name, etc).
type CredsUpdate struct {
	Reason string
}

// Call events mirror the lifecycle of a single call-stanza exchange.
type CallOffer struct {
	types.BasicCallMeta
	types.CallRemoteMeta
	Data *binary.Node
}

type CallOfferNotice struct {
	types.BasicCallMeta
	Media string
	Type  string
	Data  *binary.Node
}

type CallRelayLatency struct {
	types.BasicCallMeta
	Data *binary.Node
}

type CallAccept struct {
	types.BasicCallMeta
	types.CallRemoteMeta
	Data *binary.Node
}

type CallPreAccept struct {
	types.BasicCallMeta
	types.CallRemoteMeta
	Data *binary.Node
}

type CallTransport struct {
	types.BasicCallMeta
	types.CallRemoteMeta
	Data *binary.Node
}

type CallTerminate struct {
	types.BasicCallMeta
	Reason string
	Data   *binary.Node
}

type UnknownCallEvent struct {
	Node *binary.Node
}

// IdentityChange is emitted when a peer's Signal identity key changed,
// implicitly (auto-trust on decryption failure) or explicitly.
type IdentityChange struct {
	JID       types.JID
	Timestamp time.Time
	Implicit  bool
}

// UndecryptableMessage is emitted whenever the decryption task fails. A
// CIPHERTEXT stub WebMessage is upserted as well only when
// TreatCiphertextMessagesAsReal is set on the client.
type UndecryptableMessage struct {
	Info          types.MessageInfo
	IsUnavailable bool
}

// HistorySync is emitted once history-sync payloads are downloaded and
// decoded by the (external) app-state collaborator.
type HistorySync struct {
	BatchID string
}

// Disconnected reports that the transport dropped unexpectedly. Nothing in
// this module emits it.
type Disconnected struct{}
