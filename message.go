// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wacore/wacore/binary"
	"github.com/wacore/wacore/types"
	"github.com/wacore/wacore/types/events"
)

// handleEncryptedMessage runs the message intake state machine for one
// inbound message stanza: RECEIVED -> ACKED -> DECRYPTING ->
// {DECRYPTED | FAILED} -> ... -> terminal.
func (cli *Client) handleEncryptedMessage(node *binary.Node) {
	info, err := cli.parseMessageInfo(node)
	if err != nil {
		cli.Log.Warnf("Failed to parse message: %v", err)
		return
	}

	cli.ordering.WithLock(info.Chat.String(), func() {
		cli.sendAck(node)

		upsertType := events.UpsertSourceNotify
		if _, offline := node.Attrs["offline"]; offline {
			upsertType = events.UpsertSourceAppend
		}

		content, decErr := cli.decryptMessageNode(node, info)

		if decErr != nil {
			cli.handleDecryptionFailure(node, info, decErr)
			if cli.TreatCiphertextMessagesAsReal {
				cli.dispatchEvent(&events.MessagesUpsert{Type: upsertType, Messages: []*types.WebMessage{cleanMessage(info, nil)}})
			}
			return
		}

		cli.sendMessageReceipt(node, info)

		webMsg := cleanMessage(info, content)
		cli.dispatchEvent(&events.MessagesUpsert{Type: upsertType, Messages: []*types.WebMessage{webMsg}})

		cli.postUpsert(info, content)
	})
}

// parseMessageInfo decodes the stanza envelope into the chat/sender
// attribution a decrypted message will need.
func (cli *Client) parseMessageInfo(node *binary.Node) (*types.MessageInfo, error) {
	ag := node.AttrGetter()
	from := ag.JID("from")
	id := ag.String("id")
	timestamp := ag.UnixTime("t")
	if !ag.OK() {
		return nil, ag.Error()
	}

	var info types.MessageInfo
	info.ID = id
	info.Timestamp = timestamp
	info.PushName = ag.OptionalString("notify")
	info.Category = ag.OptionalString("category")
	_, info.Offline = node.Attrs["offline"]

	ownJID := cli.getOwnJID()
	switch {
	case from.Server == types.GroupServer || from.Server == types.BroadcastServer:
		info.IsGroup = true
		info.Chat = from
		participant := ag.JID("participant")
		info.Sender = participant
		if participant.SameUser(ownJID) {
			info.IsFromMe = true
		}
		if from.Server == types.BroadcastServer {
			info.BroadcastListOwner = ag.OptionalJID("recipient")
		}
	case from.SameUser(ownJID):
		info.IsFromMe = true
		info.Sender = from
		recipient := ag.OptionalJID("recipient")
		if recipient.IsEmpty() {
			info.Chat = from.ToNonAD()
		} else {
			info.Chat = recipient
		}
	default:
		info.Chat = from.ToNonAD()
		info.Sender = from
	}
	return &info, nil
}

// decryptMessageNode hands the stanza to the externally-supplied decryption
// collaborator. An unavailable-message stanza (all children are
// <unavailable/>) skips straight to the retry path the same way a real
// decryption failure does.
func (cli *Client) decryptMessageNode(node *binary.Node, info *types.MessageInfo) (*types.MessageContent, error) {
	if len(node.GetChildrenByTag("unavailable")) == len(node.GetChildren()) && len(node.GetChildren()) > 0 {
		return nil, fmt.Errorf("message unavailable")
	}
	if cli.Decrypt == nil {
		return nil, fmt.Errorf("no decryptor configured")
	}
	return cli.Decrypt.Decrypt(context.Background(), node, info)
}

// handleDecryptionFailure logs and surfaces the failure, then enters the
// global retry mutex and, if the transport is still open, sends a retry
// receipt.
func (cli *Client) handleDecryptionFailure(node *binary.Node, info *types.MessageInfo, decErr error) {
	cli.Log.Warnf("Failed to decrypt message %s from %s: %v", info.ID, info.Sender, decErr)
	cli.dispatchEvent(&events.UndecryptableMessage{Info: *info, IsUnavailable: decErr.Error() == "message unavailable"})

	if cli.AutoTrustIdentity && errors.Is(decErr, ErrUntrustedIdentity) {
		cli.dispatchEvent(&events.IdentityChange{JID: info.Sender, Timestamp: time.Now(), Implicit: true})
	}

	cli.retryMu.Lock()
	defer cli.retryMu.Unlock()
	if !cli.IsConnected() {
		return
	}
	cli.sendRetryReceipt(node, decErr.Error() == "message unavailable")
	if cli.RetryRequestDelayMs > 0 {
		time.Sleep(time.Duration(cli.RetryRequestDelayMs) * time.Millisecond)
	}
}

// sendMessageReceipt computes and emits the outbound receipt type for a
// successfully decrypted message.
func (cli *Client) sendMessageReceipt(node *binary.Node, info *types.MessageInfo) {
	ag := node.AttrGetter()
	participant := ag.OptionalJID("participant")

	var receiptType string
	switch {
	case info.Category == "peer":
		receiptType = "peer_msg"
	case info.IsFromMe:
		receiptType = "sender"
		if !info.IsGroup {
			participant = info.Sender
		}
	case !cli.sendActiveReceiptsEnabled():
		receiptType = "inactive"
	}

	attrs := binary.Attrs{
		"to": info.Chat,
		"id": info.ID,
	}
	if !participant.IsEmpty() {
		attrs["participant"] = participant
	}
	if receiptType != "" {
		attrs["type"] = receiptType
	}
	if err := cli.sendNode(binary.Node{Tag: "receipt", Attrs: attrs}); err != nil {
		cli.Log.Warnf("Failed to send receipt for %s: %v", info.ID, err)
	}
}

// cleanMessage builds the subscriber-facing WebMessage from the parsed
// envelope and the decrypted content. The content is passed through as is:
// no fields are stripped and no device-sent envelope is unwrapped. A nil
// content yields a CIPHERTEXT stub.
func cleanMessage(info *types.MessageInfo, content *types.MessageContent) *types.WebMessage {
	msg := &types.WebMessage{
		Key: types.MessageKey{
			RemoteJID: info.Chat,
			ID:        info.ID,
			FromMe:    info.IsFromMe,
		},
		MessageTimestamp: info.Timestamp.Unix(),
		PushName:         info.PushName,
		Status:           types.MessageStatusDeliveryAck,
		Message:          content,
	}
	if info.IsGroup {
		msg.Key.Participant = info.Sender
	}
	if content == nil {
		msg.MessageStubType = types.StubCiphertext
		msg.Status = types.MessageStatusPending
	}
	return msg
}

// postUpsert is the subscriber on messages.upsert: contact-name propagation,
// history-sync delta accumulation and debounce restart, and the
// 'p-'+chatId processing mutex.
func (cli *Client) postUpsert(info *types.MessageInfo, content *types.MessageContent) {
	if info.PushName != "" {
		cli.dispatchEvent(&events.ContactUpdate{JID: info.Sender, PushName: info.PushName})
		if info.IsFromMe {
			cli.dispatchEvent(&events.CredsUpdate{Reason: "own push name observed on outgoing message"})
		}
	}

	normalizedChat := strings.ToLower(info.Chat.String())
	cli.ordering.WithLock("p-"+normalizedChat, func() {
		if content != nil && content.Protocol != nil && content.Protocol.HistorySyncNotification != nil {
			cli.recordHistorySyncChat(info)
			cli.restartHistorySyncTimer()
			cli.sendProtocolReceipt(info, "hist_sync")
		}
	})
}

// recordHistorySyncChat folds one history-carrying message into the pending
// recvChats delta for its chat, deduplicating by message ID via
// historyCache so a redelivered notification doesn't double-count the
// chat's unread total.
func (cli *Client) recordHistorySyncChat(info *types.MessageInfo) {
	cli.historyMu.Lock()
	defer cli.historyMu.Unlock()
	if _, seen := cli.historyCache[info.ID]; seen {
		return
	}
	cli.historyCache[info.ID] = struct{}{}

	chatKey := info.Chat.String()
	delta := cli.recvChats[chatKey]
	delta.ChatJID = info.Chat
	if ts := info.Timestamp.Unix(); ts > delta.ConversationTimestamp {
		delta.ConversationTimestamp = ts
	}
	if !info.IsFromMe {
		delta.UnreadCount++
	}
	cli.recvChats[chatKey] = delta
}

// sendProtocolReceipt emits a protocol-level receipt addressed to the
// sender's consumer-domain JID.
func (cli *Client) sendProtocolReceipt(info *types.MessageInfo, receiptType string) {
	if info.ID == "" {
		return
	}
	to := types.NewJID(info.Sender.User, types.ConsumerServer)
	err := cli.sendNode(binary.Node{
		Tag: "receipt",
		Attrs: binary.Attrs{
			"id":   info.ID,
			"type": receiptType,
			"to":   to,
		},
	})
	if err != nil {
		cli.Log.Warnf("Failed to send %s receipt for %s: %v", receiptType, info.ID, err)
	}
}
