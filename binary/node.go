// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package binary implements the stanza representation used to talk to the
// WhatsApp web multidevice socket. It intentionally does not implement the
// real binary-XML wire format byte-for-byte (that's the job of an external
// stanza codec) — Marshal/Unmarshal here are a minimal, self-consistent
// framing good enough to drive the core pipeline.
package binary

import (
	"fmt"
	"strings"
)

// Attrs is the attribute bag of a Node. Values are untyped the same way the
// real binary codec leaves them untyped after parsing; AttrGetter narrows them.
type Attrs map[string]interface{}

// Node is one protocol frame: a tagged node with string attributes and
// nested child nodes or a byte-string body.
type Node struct {
	Tag     string
	Attrs   Attrs
	Content interface{} // []Node, []byte, or nil
}

// GetChildren returns the child node list, or nil if Content isn't a node list.
func (n *Node) GetChildren() []Node {
	children, ok := n.Content.([]Node)
	if !ok {
		return nil
	}
	return children
}

// GetChildrenByTag returns all direct children with the given tag.
func (n *Node) GetChildrenByTag(tag string) []Node {
	var out []Node
	for _, child := range n.GetChildren() {
		if child.Tag == tag {
			out = append(out, child)
		}
	}
	return out
}

// GetOptionalChildByTag descends through a chain of tags, returning the last
// matching node and whether the full chain was found.
func (n *Node) GetOptionalChildByTag(tags ...string) (Node, bool) {
	current := n
	for _, tag := range tags {
		children := current.GetChildren()
		found := false
		for i := range children {
			if children[i].Tag == tag {
				current = &children[i]
				found = true
				break
			}
		}
		if !found {
			return Node{}, false
		}
	}
	if current == n {
		return Node{}, false
	}
	return *current, true
}

// GetChildByTag is GetOptionalChildByTag without the ok return; missing
// children come back as a Node with an empty Tag.
func (n *Node) GetChildByTag(tags ...string) Node {
	node, _ := n.GetOptionalChildByTag(tags...)
	return node
}

// AttrGetter returns a typed attribute reader that accumulates errors instead
// of returning them from every call: ag.String("id"); ag.Int("count"); ...;
// if !ag.OK() { return ag.Error() }.
func (n *Node) AttrGetter() *AttrGetter {
	return &AttrGetter{attrs: n.Attrs, tag: n.Tag}
}

// XMLString renders a debug-friendly approximation of the node for logging.
func (n *Node) XMLString() string {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(n.Tag)
	for k, v := range n.Attrs {
		fmt.Fprintf(&sb, " %s=%q", k, fmt.Sprint(v))
	}
	switch content := n.Content.(type) {
	case nil:
		sb.WriteString("/>")
	case []byte:
		fmt.Fprintf(&sb, ">%d bytes</%s>", len(content), n.Tag)
	case []Node:
		sb.WriteByte('>')
		for _, child := range content {
			sb.WriteString(child.XMLString())
		}
		sb.WriteString("</")
		sb.WriteString(n.Tag)
		sb.WriteByte('>')
	default:
		sb.WriteString("/>")
	}
	return sb.String()
}
