// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"github.com/wacore/wacore/binary"
	"github.com/wacore/wacore/types"
	"github.com/wacore/wacore/types/events"
)

// handleCallEvent dispatches one <call> stanza's single child to a typed
// events.Call* payload, always preceded by an ack (F.4.1 call signaling
// passthrough). The CallOffer cache is inserted on offer, enriched on
// transport/preaccept, and removed on accept/terminate.
func (cli *Client) handleCallEvent(node *binary.Node) {
	cli.sendAck(node)

	if len(node.GetChildren()) != 1 {
		cli.dispatchEvent(&events.UnknownCallEvent{Node: node})
		return
	}
	ag := node.AttrGetter()
	child := node.GetChildren()[0]
	cag := child.AttrGetter()
	basicMeta := types.BasicCallMeta{
		From:        ag.JID("from"),
		Timestamp:   ag.UnixTime("t"),
		CallCreator: cag.JID("call-creator"),
		CallID:      cag.String("call-id"),
	}
	remoteMeta := types.CallRemoteMeta{
		RemotePlatform: ag.OptionalString("platform"),
		RemoteVersion:  ag.OptionalString("version"),
	}

	switch child.Tag {
	case "offer":
		cli.callOffers.Store(basicMeta.CallID, &types.CallEvent{BasicCallMeta: basicMeta, CallRemoteMeta: remoteMeta, Status: types.CallStatusOffer})
		cli.dispatchEvent(&events.CallOffer{BasicCallMeta: basicMeta, CallRemoteMeta: remoteMeta, Data: &child})
	case "offer_notice":
		cli.dispatchEvent(&events.CallOfferNotice{
			BasicCallMeta: basicMeta,
			Media:         cag.OptionalString("media"),
			Type:          cag.OptionalString("type"),
			Data:          &child,
		})
	case "relaylatency":
		cli.dispatchEvent(&events.CallRelayLatency{BasicCallMeta: basicMeta, Data: &child})
	case "accept":
		cli.callOffers.Delete(basicMeta.CallID)
		cli.dispatchEvent(&events.CallAccept{BasicCallMeta: basicMeta, CallRemoteMeta: remoteMeta, Data: &child})
	case "preaccept":
		cli.enrichCallOffer(basicMeta.CallID, types.CallStatusAccept, remoteMeta)
		cli.dispatchEvent(&events.CallPreAccept{BasicCallMeta: basicMeta, CallRemoteMeta: remoteMeta, Data: &child})
	case "transport":
		cli.enrichCallOffer(basicMeta.CallID, types.CallStatusTransport, remoteMeta)
		cli.dispatchEvent(&events.CallTransport{BasicCallMeta: basicMeta, CallRemoteMeta: remoteMeta, Data: &child})
	case "terminate":
		cli.callOffers.Delete(basicMeta.CallID)
		cli.dispatchEvent(&events.CallTerminate{BasicCallMeta: basicMeta, Reason: cag.OptionalString("reason"), Data: &child})
	default:
		cli.dispatchEvent(&events.UnknownCallEvent{Node: node})
	}
}

func (cli *Client) enrichCallOffer(callID string, status types.CallStatus, remote types.CallRemoteMeta) {
	cli.callOffers.Compute(callID, func(old *types.CallEvent, loaded bool) (*types.CallEvent, bool) {
		if !loaded {
			return old, true
		}
		old.Status = status
		if remote.RemotePlatform != "" {
			old.CallRemoteMeta = remote
		}
		return old, false
	})
}

// RejectCall sends the one outbound call primitive the core exposes
// alongside receive-side call handling.
func (cli *Client) RejectCall(callID string, callFrom types.JID, messageID types.MessageID) error {
	clientID := cli.getOwnJID()
	if clientID.IsEmpty() {
		return ErrNotLoggedIn
	}
	if messageID == "" {
		messageID = cli.GenerateMessageID()
	}
	clientID = clientID.ToNonAD()
	callFrom = callFrom.ToNonAD()

	return cli.sendNode(binary.Node{
		Tag: "call",
		Attrs: binary.Attrs{
			"id":   messageID,
			"from": clientID,
			"to":   callFrom,
		},
		Content: []binary.Node{
			{
				Tag: "reject",
				Attrs: binary.Attrs{
					"call-id":      callID,
					"call-creator": callFrom,
					"count":        "0",
				},
			},
		},
	})
}
