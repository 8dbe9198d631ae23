// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"context"
	"testing"

	"github.com/wacore/wacore/binary"
	"github.com/wacore/wacore/types"
	"github.com/wacore/wacore/types/events"
)

func TestGroupParticipantRemoveAsLeave(t *testing.T) {
	cli, _ := newTestClient(t)
	var upsert *events.MessagesUpsert
	cli.AddEventHandler(func(evt interface{}) {
		if e, ok := evt.(*events.MessagesUpsert); ok {
			upsert = e
		}
	})

	node := &binary.Node{
		Tag: "notification",
		Attrs: binary.Attrs{
			"type":        "w:gp2",
			"from":        "1111@g.us",
			"participant": "2222@s.whatsapp.net",
		},
		Content: []binary.Node{
			{
				Tag: "remove",
				Content: []binary.Node{
					{Tag: "participant", Attrs: binary.Attrs{"jid": "2222@s.whatsapp.net"}},
				},
			},
		},
	}
	cli.handleNotification(node)

	if upsert == nil || len(upsert.Messages) != 1 {
		t.Fatalf("expected exactly one upsert message")
	}
	if upsert.Messages[0].MessageStubType != types.StubGroupParticipantLeave {
		t.Fatalf("expected self-removal to be reclassified as a leave, got %s", upsert.Messages[0].MessageStubType)
	}
}

func TestGroupParticipantRemoveOfOthersStaysRemove(t *testing.T) {
	cli, _ := newTestClient(t)
	var upsert *events.MessagesUpsert
	cli.AddEventHandler(func(evt interface{}) {
		if e, ok := evt.(*events.MessagesUpsert); ok {
			upsert = e
		}
	})

	node := &binary.Node{
		Tag: "notification",
		Attrs: binary.Attrs{
			"type":        "w:gp2",
			"from":        "1111@g.us",
			"participant": "9999@s.whatsapp.net",
		},
		Content: []binary.Node{
			{
				Tag: "remove",
				Content: []binary.Node{
					{Tag: "participant", Attrs: binary.Attrs{"jid": "2222@s.whatsapp.net"}},
				},
			},
		},
	}
	cli.handleNotification(node)

	if upsert == nil || upsert.Messages[0].MessageStubType != types.StubGroupParticipantRemove {
		t.Fatalf("expected a kick by someone else to stay REMOVE")
	}
}

func TestGroupCreateEmitsChatsAndGroupsUpsert(t *testing.T) {
	cli, _ := newTestClient(t)
	var gotChats *events.ChatsUpsert
	var gotGroups *events.GroupsUpsert
	cli.AddEventHandler(func(evt interface{}) {
		switch e := evt.(type) {
		case *events.ChatsUpsert:
			gotChats = e
		case *events.GroupsUpsert:
			gotGroups = e
		}
	})

	node := &binary.Node{
		Tag:   "notification",
		Attrs: binary.Attrs{"type": "w:gp2", "from": "4444@g.us"},
		Content: []binary.Node{
			{
				Tag:   "create",
				Attrs: binary.Attrs{"subject": "Book Club", "creator": "5555@s.whatsapp.net", "creation": int64(1700000010)},
			},
		},
	}
	cli.handleNotification(node)

	if gotChats == nil || gotChats.Name != "Book Club" {
		t.Fatalf("expected a chats.upsert with the group subject")
	}
	if gotGroups == nil || gotGroups.Info.Name != "Book Club" {
		t.Fatalf("expected a groups.upsert with the full group metadata")
	}
}

func TestEncryptNotificationTriggersUploadBelowThreshold(t *testing.T) {
	cli, _ := newTestClient(t)
	uploader := &fakePreKeyUploader{}
	cli.PreKeys = uploader

	node := &binary.Node{
		Tag:   "notification",
		Attrs: binary.Attrs{"type": "encrypt", "from": types.ServerJID.String()},
		Content: []binary.Node{
			{Tag: "count", Attrs: binary.Attrs{"value": 2}},
		},
	}
	cli.handleNotification(node)

	if !uploader.called {
		t.Fatalf("expected prekeys to be uploaded when count is below the minimum")
	}
}

func TestEncryptNotificationSkipsUploadAboveThreshold(t *testing.T) {
	cli, _ := newTestClient(t)
	uploader := &fakePreKeyUploader{}
	cli.PreKeys = uploader

	node := &binary.Node{
		Tag:   "notification",
		Attrs: binary.Attrs{"type": "encrypt", "from": types.ServerJID.String()},
		Content: []binary.Node{
			{Tag: "count", Attrs: binary.Attrs{"value": 50}},
		},
	}
	cli.handleNotification(node)

	if uploader.called {
		t.Fatalf("expected no prekey upload when count is above the minimum")
	}
}

type fakePreKeyUploader struct{ called bool }

func (f *fakePreKeyUploader) UploadPreKeys(ctx context.Context) error {
	f.called = true
	return nil
}
