// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"testing"

	"github.com/wacore/wacore/binary"
	"github.com/wacore/wacore/types"
)

func inboundNode(id string) *binary.Node {
	return &binary.Node{
		Tag: "message",
		Attrs: binary.Attrs{
			"id":   id,
			"from": "1111@s.whatsapp.net",
			"t":    int64(1700000000),
		},
		Content: []binary.Node{{Tag: "enc", Attrs: binary.Attrs{"type": "msg"}}},
	}
}

func TestSendRetryReceiptFirstAttemptOmitsKeys(t *testing.T) {
	cli, transport := newTestClient(t)
	cli.sendRetryReceipt(inboundNode("msg-1"), false)

	sent, ok := transport.lastSent()
	if !ok {
		t.Fatalf("expected a retry receipt to be sent")
	}
	if sent.Tag != "receipt" || sent.Attrs["type"] != "retry" {
		t.Fatalf("unexpected stanza: %+v", sent)
	}
	for _, child := range sent.GetChildren() {
		if child.Tag == "keys" {
			t.Fatalf("first retry attempt should not attach a keys bundle")
		}
	}
	// The stored counter is one ahead of the emitted count: after the first
	// retry receipt (count="1"), a second failure for the same id should
	// emit count="2".
	count, ok := cli.RetryCounters.Get("msg-1")
	if !ok || count != 2 {
		t.Fatalf("expected retry counter 2, got %d (ok=%v)", count, ok)
	}
}

func TestSendRetryReceiptSecondAttemptAttachesKeys(t *testing.T) {
	cli, transport := newTestClient(t)
	node := inboundNode("msg-2")
	cli.sendRetryReceipt(node, false)
	cli.sendRetryReceipt(node, false)

	sent, _ := transport.lastSent()
	found := false
	for _, child := range sent.GetChildren() {
		if child.Tag == "keys" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected keys bundle to be attached on the second retry attempt")
	}
	count, _ := cli.RetryCounters.Get("msg-2")
	if count != 3 {
		t.Fatalf("expected retry counter 3, got %d", count)
	}
}

func TestSendRetryReceiptStopsAtCap(t *testing.T) {
	cli, transport := newTestClient(t)
	node := inboundNode("msg-3")
	// The counter reaches MaxRetryCount on the MaxRetryCount-th call, at
	// which point the entry is deleted and that call sends nothing; the
	// first MaxRetryCount-1 calls do send.
	for i := 0; i < types.MaxRetryCount; i++ {
		cli.sendRetryReceipt(node, false)
	}
	if transport.count() != types.MaxRetryCount-1 {
		t.Fatalf("expected exactly %d retry receipts to be sent, got %d", types.MaxRetryCount-1, transport.count())
	}
	if _, ok := cli.RetryCounters.Get("msg-3"); ok {
		t.Fatalf("expected retry counter to be cleared once the cap is reached")
	}
}

func TestSendRetryReceiptForceIncludeIdentityOnFirstAttempt(t *testing.T) {
	cli, transport := newTestClient(t)
	cli.sendRetryReceipt(inboundNode("msg-4"), true)

	sent, _ := transport.lastSent()
	found := false
	for _, child := range sent.GetChildren() {
		if child.Tag == "keys" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected forceIncludeIdentity to attach a keys bundle on the first attempt")
	}
}
