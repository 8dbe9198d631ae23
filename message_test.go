// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wacore/wacore/binary"
	"github.com/wacore/wacore/types"
	"github.com/wacore/wacore/types/events"
)

type fakeDecryptor struct {
	content *types.MessageContent
	err     error
}

func (f *fakeDecryptor) Decrypt(ctx context.Context, node *binary.Node, info *types.MessageInfo) (*types.MessageContent, error) {
	return f.content, f.err
}

func plainMessageNode(id, from string) *binary.Node {
	return &binary.Node{
		Tag: "message",
		Attrs: binary.Attrs{
			"id":   id,
			"from": from,
			"t":    int64(1700000100),
		},
		Content: []binary.Node{{Tag: "enc", Attrs: binary.Attrs{"type": "msg"}}},
	}
}

func TestHandleEncryptedMessageSuccessPathAcksReceiptsAndUpserts(t *testing.T) {
	cli, transport := newTestClient(t)
	cli.Decrypt = &fakeDecryptor{content: &types.MessageContent{Conversation: "hello"}}

	var upsert *events.MessagesUpsert
	cli.AddEventHandler(func(evt interface{}) {
		if e, ok := evt.(*events.MessagesUpsert); ok {
			upsert = e
		}
	})

	cli.handleEncryptedMessage(plainMessageNode("m1", "2222@s.whatsapp.net"))

	if transport.count() != 2 {
		t.Fatalf("expected an ack and a receipt to be sent, got %d stanzas", transport.count())
	}
	var sawAck, sawReceipt bool
	for _, n := range transport.sentTags() {
		switch n {
		case "ack":
			sawAck = true
		case "receipt":
			sawReceipt = true
		}
	}
	if !sawAck || !sawReceipt {
		t.Fatalf("expected both an ack and a receipt, got tags %v", transport.sentTags())
	}
	if upsert == nil || upsert.Messages[0].Message.Conversation != "hello" {
		t.Fatalf("expected a messages.upsert carrying the decrypted content")
	}
	if upsert.Type != events.UpsertSourceNotify {
		t.Fatalf("expected upsert type notify for a live (non-offline) message")
	}
}

func TestHandleEncryptedMessageOfflineUsesAppendUpsert(t *testing.T) {
	cli, _ := newTestClient(t)
	cli.Decrypt = &fakeDecryptor{content: &types.MessageContent{Conversation: "hi"}}

	var upsert *events.MessagesUpsert
	cli.AddEventHandler(func(evt interface{}) {
		if e, ok := evt.(*events.MessagesUpsert); ok {
			upsert = e
		}
	})

	node := plainMessageNode("m2", "2222@s.whatsapp.net")
	node.Attrs["offline"] = "1"
	cli.handleEncryptedMessage(node)

	if upsert == nil || upsert.Type != events.UpsertSourceAppend {
		t.Fatalf("expected upsert type append for an offline message")
	}
}

func TestHandleEncryptedMessageDecryptionFailureRetries(t *testing.T) {
	cli, transport := newTestClient(t)
	cli.Decrypt = &fakeDecryptor{err: errors.New("boom")}

	var undecryptable *events.UndecryptableMessage
	cli.AddEventHandler(func(evt interface{}) {
		if e, ok := evt.(*events.UndecryptableMessage); ok {
			undecryptable = e
		}
	})

	cli.handleEncryptedMessage(plainMessageNode("m3", "2222@s.whatsapp.net"))

	if undecryptable == nil {
		t.Fatalf("expected an undecryptable-message event")
	}
	var sawRetryReceipt bool
	for _, n := range transport.sentTagsWithAttr("type", "retry") {
		if n == "receipt" {
			sawRetryReceipt = true
		}
	}
	if !sawRetryReceipt {
		t.Fatalf("expected a retry receipt to be sent after a decryption failure")
	}
}

func TestHandleEncryptedMessageUnavailableSkipsStraightToRetry(t *testing.T) {
	cli, transport := newTestClient(t)
	cli.Decrypt = &fakeDecryptor{content: &types.MessageContent{Conversation: "should not be reached"}}

	node := &binary.Node{
		Tag:     "message",
		Attrs:   binary.Attrs{"id": "m4", "from": "2222@s.whatsapp.net", "t": int64(1700000101)},
		Content: []binary.Node{{Tag: "unavailable"}},
	}
	var undecryptable *events.UndecryptableMessage
	cli.AddEventHandler(func(evt interface{}) {
		if e, ok := evt.(*events.UndecryptableMessage); ok {
			undecryptable = e
		}
	})
	cli.handleEncryptedMessage(node)

	if undecryptable == nil || !undecryptable.IsUnavailable {
		t.Fatalf("expected an undecryptable-message event flagged as unavailable")
	}
	var sawRetryWithKeys bool
	for _, n := range transport.sentTagsWithAttr("type", "retry") {
		if n == "receipt" {
			sawRetryWithKeys = true
		}
	}
	if !sawRetryWithKeys {
		t.Fatalf("expected a retry receipt even for an unavailable message")
	}
}

func TestSendMessageReceiptPeerCategoryOverridesEverything(t *testing.T) {
	cli, transport := newTestClient(t)
	info := &types.MessageInfo{
		MessageSource: types.MessageSource{Chat: types.NewJID("2222", types.DefaultUserServer), Sender: types.NewJID("2222", types.DefaultUserServer)},
		ID:            "peer1",
		Category:      "peer",
	}
	node := &binary.Node{Tag: "message", Attrs: binary.Attrs{}}
	cli.sendMessageReceipt(node, info)

	sent, ok := transport.lastSent()
	if !ok || sent.Attrs["type"] != "peer_msg" {
		t.Fatalf("expected a peer_msg receipt, got %+v", sent)
	}
}

func TestHandleDecryptionFailureEmitsIdentityChangeWhenAutoTrusted(t *testing.T) {
	cli, _ := newTestClient(t)
	cli.Decrypt = &fakeDecryptor{err: ErrUntrustedIdentity}
	cli.AutoTrustIdentity = true

	var identityChange *events.IdentityChange
	cli.AddEventHandler(func(evt interface{}) {
		if e, ok := evt.(*events.IdentityChange); ok {
			identityChange = e
		}
	})
	cli.handleEncryptedMessage(plainMessageNode("m5", "2222@s.whatsapp.net"))

	if identityChange == nil || !identityChange.Implicit {
		t.Fatalf("expected an implicit identity-change event for an untrusted identity failure")
	}
}

func TestHandleDecryptionFailureSkipsIdentityChangeWhenNotAutoTrusted(t *testing.T) {
	cli, _ := newTestClient(t)
	cli.Decrypt = &fakeDecryptor{err: ErrUntrustedIdentity}
	cli.AutoTrustIdentity = false

	var sawIdentityChange bool
	cli.AddEventHandler(func(evt interface{}) {
		if _, ok := evt.(*events.IdentityChange); ok {
			sawIdentityChange = true
		}
	})
	cli.handleEncryptedMessage(plainMessageNode("m6", "2222@s.whatsapp.net"))

	if sawIdentityChange {
		t.Fatalf("expected no identity-change event when AutoTrustIdentity is disabled")
	}
}

func TestRecordHistorySyncChatAccumulatesAcrossMessagesAndDedupesByID(t *testing.T) {
	cli, _ := newTestClient(t)
	chat := types.NewJID("2222", types.DefaultUserServer)
	info1 := &types.MessageInfo{
		MessageSource: types.MessageSource{Chat: chat, Sender: chat},
		ID:            "hs10",
		Timestamp:     time.Unix(1700000200, 0),
	}
	info2 := &types.MessageInfo{
		MessageSource: types.MessageSource{Chat: chat, Sender: chat},
		ID:            "hs11",
		Timestamp:     time.Unix(1700000300, 0),
	}
	cli.recordHistorySyncChat(info1)
	cli.recordHistorySyncChat(info2)
	cli.recordHistorySyncChat(info2) // redelivery of the same stanza id

	delta := cli.recvChats[chat.String()]
	if delta.UnreadCount != 2 {
		t.Fatalf("expected redelivery of the same message id not to double-count, got UnreadCount=%d", delta.UnreadCount)
	}
	if delta.ConversationTimestamp != 1700000300 {
		t.Fatalf("expected the latest timestamp to win, got %d", delta.ConversationTimestamp)
	}
}

func TestPostUpsertRestartsHistorySyncOnNotification(t *testing.T) {
	cli, transport := newTestClient(t)
	cli.DownloadHistory = true
	info := &types.MessageInfo{
		MessageSource: types.MessageSource{Chat: types.NewJID("2222", types.DefaultUserServer), Sender: types.NewJID("2222", types.DefaultUserServer)},
		ID:            "hs1",
	}
	content := &types.MessageContent{Protocol: &types.ProtocolMessage{
		Type:                    "HISTORY_SYNC_NOTIFICATION",
		HistorySyncNotification: &types.HistorySyncNotification{BatchID: "b1"},
	}}
	cli.postUpsert(info, content)

	if cli.historyTimer == nil {
		t.Fatalf("expected the history-sync debounce timer to be armed")
	}
	found := false
	for _, n := range transport.sentTagsWithAttr("type", "hist_sync") {
		if n == "receipt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a hist_sync protocol receipt to be sent")
	}
}
