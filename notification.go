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

// MinPreKeyCount is the low-water mark below which an "encrypt" notification
// from the server triggers a prekey top-up.
const MinPreKeyCount = 5

// handleNotification dispatches on attrs.type. Every notification is acked
// before interpretation, so a parse error never blocks protocol flow.
func (cli *Client) handleNotification(node *binary.Node) {
	cli.sendAck(node)

	ag := node.AttrGetter()
	notifType := ag.String("type")
	if !ag.OK() {
		cli.Log.Warnf("Notification missing type attribute")
		return
	}

	switch notifType {
	case "w:gp2":
		cli.handleGroupNotification(node)
	case "mediaretry":
		cli.handleMediaRetryNotification(node)
	case "encrypt":
		cli.handleEncryptNotification(node)
	case "devices":
		cli.handleDevicesNotification(node)
	default:
		cli.Log.Debugf("Unhandled notification type %s", notifType)
	}
}

func (cli *Client) handleGroupNotification(node *binary.Node) {
	children := node.GetChildren()
	if len(children) == 0 {
		return
	}
	child := children[0]
	ag := node.AttrGetter()
	from := ag.JID("from")

	switch child.Tag {
	case "create":
		cag := child.AttrGetter()
		subject := cag.OptionalString("subject")
		owner := cag.OptionalJID("creator")
		created := cag.UnixTime("creation")
		var participants []types.GroupParticipant
		for _, p := range child.GetChildrenByTag("participant") {
			pag := p.AttrGetter()
			participants = append(participants, types.GroupParticipant{
				JID:     pag.JID("jid"),
				IsAdmin: pag.OptionalString("type") == "admin",
			})
		}
		info := types.GroupInfo{
			JID:          from,
			OwnerJID:     owner,
			Name:         subject,
			Created:      created,
			Participants: participants,
		}
		cli.dispatchEvent(&events.ChatsUpsert{JID: from, Name: subject, ConversationTimestamp: created.Unix()})
		cli.dispatchEvent(&events.GroupsUpsert{Info: info})
		cli.dispatchEvent(&events.MessagesUpsert{
			Type: events.UpsertSourceNotify,
			Messages: []*types.WebMessage{{
				Key:                   types.MessageKey{RemoteJID: from, Participant: owner},
				MessageStubType:       types.StubGroupCreate,
				MessageStubParameters: []string{subject},
			}},
		})

	case "ephemeral", "not_ephemeral":
		cag := child.AttrGetter()
		expiration := uint32(cag.OptionalInt("expiration"))
		cli.dispatchEvent(&events.MessagesUpsert{
			Type: events.UpsertSourceNotify,
			Messages: []*types.WebMessage{{
				Key:             types.MessageKey{RemoteJID: from},
				MessageStubType: types.StubEphemeralSetting,
				Message:         &types.MessageContent{Protocol: &types.ProtocolMessage{Type: "EPHEMERAL_SETTING", EphemeralExpiration: expiration}},
			}},
		})

	case "promote", "demote", "remove", "add", "leave":
		var participants []string
		for _, p := range child.GetChildrenByTag("participant") {
			participants = append(participants, p.AttrGetter().JID("jid").String())
		}
		stub := map[string]types.MessageStubType{
			"promote": types.StubGroupParticipantPromote,
			"demote":  types.StubGroupParticipantDemote,
			"remove":  types.StubGroupParticipantRemove,
			"add":     types.StubGroupParticipantAdd,
			"leave":   types.StubGroupParticipantLeave,
		}[child.Tag]
		// A lone participant removing themselves is a leave, not a kick.
		if child.Tag == "remove" && len(participants) == 1 {
			selfParticipant := node.AttrGetter().OptionalJID("participant")
			if participants[0] == selfParticipant.String() && !selfParticipant.IsEmpty() {
				stub = types.StubGroupParticipantLeave
			}
		}
		cli.dispatchEvent(&events.MessagesUpsert{
			Type: events.UpsertSourceNotify,
			Messages: []*types.WebMessage{{
				Key:                   types.MessageKey{RemoteJID: from},
				MessageStubType:       stub,
				MessageStubParameters: participants,
			}},
		})

	case "subject":
		cag := child.AttrGetter()
		cli.dispatchEvent(&events.MessagesUpsert{
			Type: events.UpsertSourceNotify,
			Messages: []*types.WebMessage{{
				Key:                   types.MessageKey{RemoteJID: from},
				MessageStubType:       types.StubGroupChangeSubject,
				MessageStubParameters: []string{cag.OptionalString("subject")},
			}},
		})

	case "announcement", "not_announcement":
		cli.emitToggleStub(from, types.StubGroupChangeAnnounce, child.Tag == "announcement")
	case "locked", "unlocked":
		cli.emitToggleStub(from, types.StubGroupChangeRestrict, child.Tag == "locked")
	}
}

func (cli *Client) emitToggleStub(chat types.JID, stub types.MessageStubType, on bool) {
	value := "off"
	if on {
		value = "on"
	}
	cli.dispatchEvent(&events.MessagesUpsert{
		Type: events.UpsertSourceNotify,
		Messages: []*types.WebMessage{{
			Key:                   types.MessageKey{RemoteJID: chat},
			MessageStubType:       stub,
			MessageStubParameters: []string{value},
		}},
	})
}

func (cli *Client) handleMediaRetryNotification(node *binary.Node) {
	ag := node.AttrGetter()
	key := types.MessageKey{
		RemoteJID: ag.JID("from"),
		ID:        ag.String("id"),
	}
	if !ag.OK() {
		cli.Log.Warnf("Failed to parse mediaretry notification: %v", ag.Error())
		return
	}
	cli.dispatchEvent(&events.MediaRetryUpdate{Key: key, Data: node})
}

func (cli *Client) handleEncryptNotification(node *binary.Node) {
	from := node.AttrGetter().JID("from")
	if !from.Equal(types.ServerJID) {
		cli.Log.Debugf("Ignoring encrypt notification from non-server JID %s", from)
		return
	}
	countNode, ok := node.GetOptionalChildByTag("count")
	if !ok {
		cli.Log.Debugf("Encrypt notification without a count child, ignoring")
		return
	}
	count := countNode.AttrGetter().Int("value")
	if count >= MinPreKeyCount {
		return
	}
	if cli.PreKeys == nil {
		cli.Log.Warnf("Prekey count %d below minimum but no PreKeyUploader configured", count)
		return
	}
	if err := cli.PreKeys.UploadPreKeys(context.Background()); err != nil {
		cli.Log.Errorf("Failed to upload prekeys after low-count notification: %v", err)
	}
}

func (cli *Client) handleDevicesNotification(node *binary.Node) {
	deviceNode, ok := node.GetOptionalChildByTag("devices")
	if !ok {
		return
	}
	jid := deviceNode.AttrGetter().OptionalJID("jid")
	if !jid.Equal(cli.getOwnJID().ToNonAD()) {
		return
	}
	cli.Log.Debugf("Received own device list update")
}
