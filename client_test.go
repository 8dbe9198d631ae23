// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"context"
	"testing"
	"time"

	"github.com/wacore/wacore/binary"
)

func TestGenerateMessageIDIsUniquePerCall(t *testing.T) {
	cli, _ := newTestClient(t)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := cli.GenerateMessageID()
		if seen[id] {
			t.Fatalf("duplicate message ID %s", id)
		}
		seen[id] = true
	}
}

func TestAddAndRemoveEventHandler(t *testing.T) {
	cli, _ := newTestClient(t)
	calls := 0
	id := cli.AddEventHandler(func(evt interface{}) { calls++ })
	cli.dispatchEvent("one")
	if calls != 1 {
		t.Fatalf("expected handler to fire once, got %d", calls)
	}
	if !cli.RemoveEventHandler(id) {
		t.Fatalf("expected RemoveEventHandler to report success")
	}
	cli.dispatchEvent("two")
	if calls != 1 {
		t.Fatalf("expected the removed handler to not fire again, got %d calls", calls)
	}
	if cli.RemoveEventHandler(id) {
		t.Fatalf("expected removing an already-removed handler to report failure")
	}
}

func TestSendActiveReceiptsToggle(t *testing.T) {
	cli, _ := newTestClient(t)
	if cli.sendActiveReceiptsEnabled() {
		t.Fatalf("expected active receipts to default to disabled")
	}
	cli.SetSendActiveReceipts(true)
	if !cli.sendActiveReceiptsEnabled() {
		t.Fatalf("expected active receipts to be enabled after toggling on")
	}
	cli.SetSendActiveReceipts(false)
	if cli.sendActiveReceiptsEnabled() {
		t.Fatalf("expected active receipts to be disabled after toggling off")
	}
}

func TestIsConnectedReflectsTransportState(t *testing.T) {
	cli, transport := newTestClient(t)
	if !cli.IsConnected() {
		t.Fatalf("expected a freshly attached open transport to report connected")
	}
	transport.setOpen(false)
	if cli.IsConnected() {
		t.Fatalf("expected a closed transport to report disconnected")
	}
}

func TestHandleFrameRoutesKnownTagsThroughQueue(t *testing.T) {
	cli, transport := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cli.HandlerQueueLoop(ctx)

	cli.HandleFrame(&binary.Node{
		Tag:   "receipt",
		Attrs: binary.Attrs{"id": "q1", "from": "2222@s.whatsapp.net", "t": int64(1700000300)},
	})

	deadline := time.After(time.Second)
	for {
		if transport.count() > 0 {
			sent, _ := transport.lastSent()
			if sent.Tag != "ack" {
				t.Fatalf("expected the queued receipt to produce an ack, got %s", sent.Tag)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for the handler queue to process the frame")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestHandleFrameIgnoresUnknownTags(t *testing.T) {
	cli, transport := newTestClient(t)
	cli.HandleFrame(&binary.Node{Tag: "totally-unknown-tag"})
	time.Sleep(10 * time.Millisecond)
	if transport.count() != 0 {
		t.Fatalf("expected no stanza to be sent for an unrouted tag")
	}
}

func TestHandlerQueueLoopStopsOnContextCancel(t *testing.T) {
	cli, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cli.HandlerQueueLoop(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected HandlerQueueLoop to return promptly after context cancellation")
	}
}
