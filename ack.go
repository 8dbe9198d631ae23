// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"github.com/wacore/wacore/binary"
)

// sendAck emits exactly one ack per inbound stanza, regardless of whether
// interpretation succeeds. participant is propagated iff present on the
// input; type is propagated iff the input tag isn't "message" and the
// caller didn't override it via extra.
func (cli *Client) sendAck(node *binary.Node, extra ...binary.Attrs) {
	id, _ := node.Attrs["id"].(string)
	from, _ := node.Attrs["from"]
	attrs := binary.Attrs{
		"class": node.Tag,
		"id":    id,
		"to":    from,
	}
	if participant, ok := node.Attrs["participant"]; ok {
		attrs["participant"] = participant
	}
	if node.Tag != "message" {
		if t, ok := node.Attrs["type"]; ok {
			attrs["type"] = t
		}
	}
	for _, override := range extra {
		for k, v := range override {
			attrs[k] = v
		}
	}
	err := cli.sendNode(binary.Node{Tag: "ack", Attrs: attrs})
	if err != nil {
		cli.Log.Warnf("Failed to send ack for %s %s: %v", node.Tag, id, err)
	}
}
