// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package types

import "time"

// MessageID is an opaque stanza identifier generated by either peer.
type MessageID = string

// MessageKey identifies a message within a chat.
//
// Invariant: FromMe implies Participant is a device of the local identity,
// or absent for 1:1 chats.
type MessageKey struct {
	RemoteJID   JID
	ID          MessageID
	FromMe      bool
	Participant JID // present iff RemoteJID is a group
}

// MessageStatus advances monotonically: Pending -> ServerAck -> DeliveryAck -> Read -> Played.
type MessageStatus int

const (
	MessageStatusPending MessageStatus = iota
	MessageStatusServerAck
	MessageStatusDeliveryAck
	MessageStatusRead
	MessageStatusPlayed
)

func (s MessageStatus) String() string {
	switch s {
	case MessageStatusPending:
		return "PENDING"
	case MessageStatusServerAck:
		return "SERVER_ACK"
	case MessageStatusDeliveryAck:
		return "DELIVERY_ACK"
	case MessageStatusRead:
		return "READ"
	case MessageStatusPlayed:
		return "PLAYED"
	default:
		return "UNKNOWN"
	}
}

// MessageStubType encodes system events: group membership changes, missed
// calls, the ciphertext placeholder, ephemeral setting changes, etc.
type MessageStubType string

const (
	StubCiphertext                  MessageStubType = "CIPHERTEXT"
	StubGroupCreate                 MessageStubType = "GROUP_CREATE"
	StubGroupParticipantAdd         MessageStubType = "GROUP_PARTICIPANT_ADD"
	StubGroupParticipantRemove      MessageStubType = "GROUP_PARTICIPANT_REMOVE"
	StubGroupParticipantPromote     MessageStubType = "GROUP_PARTICIPANT_PROMOTE"
	StubGroupParticipantDemote      MessageStubType = "GROUP_PARTICIPANT_DEMOTE"
	StubGroupParticipantLeave       MessageStubType = "GROUP_PARTICIPANT_LEAVE"
	StubGroupChangeSubject          MessageStubType = "GROUP_CHANGE_SUBJECT"
	StubGroupChangeAnnounce         MessageStubType = "GROUP_CHANGE_ANNOUNCE"
	StubGroupChangeRestrict         MessageStubType = "GROUP_CHANGE_RESTRICT"
	StubEphemeralSetting            MessageStubType = "EPHEMERAL_SETTING"
)

// ContextInfo carries quoted-message metadata, attached to outbound messages
// that reply to another message.
type ContextInfo struct {
	Participant   JID
	StanzaID      MessageID
	QuotedMessage *MessageContent
	RemoteJID     JID // set when the quoted stanza came from a group
}

// DeviceSentMeta carries the unwrap metadata for messages WhatsApp fans out
// to the sender's own other devices.
type DeviceSentMeta struct {
	DestinationJID string
	Phash          string
}

// MessageContent is the polymorphic wire payload: a tagged variant with one
// arm per protocol message type. Exactly one field should be set; callers
// tell the variant apart by which field is non-empty.
type MessageContent struct {
	Conversation         string
	ExtendedText         *ExtendedTextMessage
	Image                *MediaMessage
	Video                *MediaMessage
	Audio                *MediaMessage
	Document              *MediaMessage
	Sticker              *MediaMessage
	Location             *LocationMessage
	Contact              *ContactMessage
	Protocol             *ProtocolMessage
	SenderKeyDistribution []byte
}

type ExtendedTextMessage struct {
	Text    string
	Context *ContextInfo
}

// MediaMessage is the shared shape for image/video/audio/document/sticker
// content, matching the fields the outbound media preparation path produces.
type MediaMessage struct {
	URL           string
	MimeType      string
	Caption       string
	FileSHA256    []byte
	FileEncSHA256 []byte
	MediaKey      []byte
	FileLength    uint64
	GIFPlayback   bool
	Thumbnail     []byte
	Context       *ContextInfo
}

type LocationMessage struct {
	Latitude, Longitude float64
}

type ContactMessage struct {
	DisplayName string
	VCard       string
}

// ProtocolMessage carries system-level payloads: history sync notifications,
// app-state key shares, and ephemeral-setting changes.
type ProtocolMessage struct {
	Type                     string
	HistorySyncNotification  *HistorySyncNotification
	AppStateSyncKeyShare     *AppStateSyncKeyShare
	EphemeralExpiration      uint32
}

type HistorySyncNotification struct {
	BatchID string
}

type AppStateSyncKeyShare struct {
	KeyIDs [][]byte
}

// MessageSource identifies who sent a message and in what chat.
type MessageSource struct {
	Chat                JID
	Sender              JID
	IsFromMe            bool
	IsGroup             bool
	BroadcastListOwner  JID
}

// MessageInfo is the envelope metadata parsed off an inbound message stanza
// before decryption.
type MessageInfo struct {
	MessageSource
	ID             MessageID
	PushName       string
	Timestamp      time.Time
	Category       string
	Offline        bool
	DeviceSentMeta *DeviceSentMeta
}

// WebMessage is the canonical mutable record for one message as seen by the
// subscriber-facing event bus.
type WebMessage struct {
	Key                    MessageKey
	MessageTimestamp       int64
	PushName               string
	Status                 MessageStatus
	Message                *MessageContent
	MessageStubType        MessageStubType
	MessageStubParameters  []string
}
