// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"context"

	"github.com/wacore/wacore/binary"
	"github.com/wacore/wacore/types"
	"github.com/wacore/wacore/types/events"
)

// handleReceipt interprets an inbound receipt stanza: delivery/read/played
// status updates dispatch as events, retry receipts additionally drive the
// resend path.
func (cli *Client) handleReceipt(node *binary.Node) {
	ag := node.AttrGetter()
	id := ag.String("id")
	from := ag.JID("from")
	participant := ag.OptionalJID("participant")
	recipient := ag.OptionalJID("recipient")
	receiptType := ag.OptionalString("type")
	timestamp := ag.UnixTime("t")
	if !ag.OK() {
		cli.Log.Warnf("Failed to parse receipt: %v", ag.Error())
		return
	}

	isNodeFromMe := false
	if !participant.IsEmpty() {
		isNodeFromMe = participant.SameUser(cli.getOwnJID())
	} else {
		isNodeFromMe = from.SameUser(cli.getOwnJID())
	}

	remoteJID := from
	if !isNodeFromMe || from.Server == types.GroupServer {
		remoteJID = from
	} else {
		remoteJID = recipient
	}

	fromMe := recipient.IsEmpty() || (receiptType == "retry" && isNodeFromMe)

	ids := []string{id}
	for _, item := range node.GetChildrenByTag("item") {
		if itemID, ok := item.Attrs["id"].(string); ok {
			ids = append(ids, itemID)
		}
	}

	suppressAck := false
	cli.ordering.WithLock(remoteJID.String(), func() {
		status, handled := receiptStatus(receiptType)
		if handled && (status > types.MessageStatusDeliveryAck || !isNodeFromMe) {
			for _, msgID := range ids {
				key := types.MessageKey{RemoteJID: remoteJID, ID: msgID, FromMe: fromMe, Participant: participant}
				if remoteJID.Server == types.GroupServer {
					evt := &events.MessageReceiptUpdate{Key: key, SenderJID: participant}
					if status == types.MessageStatusDeliveryAck {
						evt.ReceiptTimestamp = timestamp
					} else {
						evt.ReadTimestamp = timestamp
					}
					cli.dispatchEvent(evt)
				} else {
					cli.dispatchEvent(&events.MessagesUpdate{Key: key, Status: status})
				}
			}
		}

		if receiptType == "retry" {
			if count, ok := cli.RetryCounters.Get(ids[0]); !ok || count < types.MaxRetryCount {
				if err := cli.handleRetryReceiptResend(node, remoteJID, participant, ids, fromMe); err != nil {
					cli.Log.Warnf("Failed to resend messages for retry receipt from %s: %v", from, err)
					suppressAck = true
				}
			}
		}
	})

	if !suppressAck {
		cli.sendAck(node)
	}
}

// receiptStatus maps a receipt's type attribute to a MessageStatus.
func receiptStatus(receiptType string) (status types.MessageStatus, handled bool) {
	switch receiptType {
	case "":
		return types.MessageStatusDeliveryAck, true
	case "read", "read-self":
		return types.MessageStatusRead, true
	case "played":
		return types.MessageStatusPlayed, true
	case "retry":
		return 0, false
	default:
		return 0, false
	}
}

// handleRetryReceiptResend handles a retry receipt for one of our own
// outgoing messages by re-asserting sessions, bumping the retry counter, and
// relaying the message again; for messages from others it's log-only.
func (cli *Client) handleRetryReceiptResend(node *binary.Node, remoteJID, participant types.JID, ids []string, fromMe bool) error {
	if !fromMe {
		cli.Log.Debugf("Received retry receipt for a message not from us in %s, ignoring", remoteJID)
		return nil
	}
	if participant.IsEmpty() {
		participant = remoteJID
	}
	ctx := context.Background()
	if cli.Sessions != nil {
		if err := cli.Sessions.AssertSessions(ctx, []types.JID{participant}, true); err != nil {
			return err
		}
		if remoteJID.Server == types.GroupServer {
			cli.Sessions.InvalidateSenderKey(remoteJID, participant)
		}
	}
	for _, msgID := range ids {
		count, _ := cli.RetryCounters.Get(msgID)
		cli.RetryCounters.Set(msgID, count+1)

		if cli.GetMessage == nil || cli.Relay == nil {
			continue
		}
		msg, err := cli.GetMessage(ctx, types.MessageKey{RemoteJID: remoteJID, ID: msgID, FromMe: true})
		if err != nil || msg == nil || msg.Message == nil {
			continue
		}
		if err := cli.Relay.RelayMessage(ctx, remoteJID, msg.Message, msgID, participant); err != nil {
			return err
		}
	}
	return nil
}
