// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/wacore/wacore/binary"
	"github.com/wacore/wacore/store"
	"github.com/wacore/wacore/types"
	waLog "github.com/wacore/wacore/util/log"
)

// recordingTransport is a test double that records every node it's asked to
// send and can be toggled closed to exercise the "transport closed" error
// kind.
type recordingTransport struct {
	mu   sync.Mutex
	open bool
	sent []binary.Node
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{open: true}
}

func (t *recordingTransport) SendNode(ctx context.Context, node binary.Node) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, node)
	return nil
}

func (t *recordingTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *recordingTransport) setOpen(open bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = open
}

func (t *recordingTransport) lastSent() (binary.Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sent) == 0 {
		return binary.Node{}, false
	}
	return t.sent[len(t.sent)-1], true
}

func (t *recordingTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func (t *recordingTransport) sentTags() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	tags := make([]string, len(t.sent))
	for i, n := range t.sent {
		tags[i] = n.Tag
	}
	return tags
}

// sentTagsWithAttr returns the tags of sent nodes whose attrs[key] == value.
func (t *recordingTransport) sentTagsWithAttr(key, value string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var tags []string
	for _, n := range t.sent {
		if v, ok := n.Attrs[key]; ok && fmt.Sprint(v) == value {
			tags = append(tags, n.Tag)
		}
	}
	return tags
}

func newTestClient(t *testing.T) (*Client, *recordingTransport) {
	t.Helper()
	me := types.NewADJID("15555550100", 0, 1)
	device := store.NewMemoryDevice(me, 1)
	cli := NewClient(device, waLog.Stdout())
	transport := newRecordingTransport()
	cli.SetTransport(transport)
	return cli, transport
}

func TestSendAckPropagatesParticipantAndType(t *testing.T) {
	cli, transport := newTestClient(t)
	node := &binary.Node{
		Tag: "notification",
		Attrs: binary.Attrs{
			"id":          "abc123",
			"from":        "1111@g.us",
			"participant": "2222@s.whatsapp.net",
			"type":        "w:gp2",
		},
	}
	cli.sendAck(node)

	sent, ok := transport.lastSent()
	if !ok {
		t.Fatalf("expected an ack to be sent")
	}
	if sent.Tag != "ack" {
		t.Fatalf("expected tag ack, got %s", sent.Tag)
	}
	if sent.Attrs["participant"] != "2222@s.whatsapp.net" {
		t.Fatalf("expected participant to be propagated")
	}
	if sent.Attrs["type"] != "w:gp2" {
		t.Fatalf("expected type to be propagated for non-message stanza")
	}
	if sent.Attrs["class"] != "notification" {
		t.Fatalf("expected class to mirror the inbound tag")
	}
}

func TestSendAckDropsTypeForMessageStanzas(t *testing.T) {
	cli, transport := newTestClient(t)
	node := &binary.Node{
		Tag: "message",
		Attrs: binary.Attrs{
			"id":   "m1",
			"from": "1111@s.whatsapp.net",
			"type": "text",
		},
	}
	cli.sendAck(node)
	sent, _ := transport.lastSent()
	if _, hasType := sent.Attrs["type"]; hasType {
		t.Fatalf("expected type to be omitted for message-tag acks")
	}
}

func TestSendNodeDropsWriteWhenTransportClosed(t *testing.T) {
	cli, transport := newTestClient(t)
	transport.setOpen(false)
	err := cli.sendNode(binary.Node{Tag: "iq"})
	if err != nil {
		t.Fatalf("expected sendNode to swallow the error, got %v", err)
	}
	if transport.count() != 0 {
		t.Fatalf("expected no write to reach a closed transport")
	}
}
