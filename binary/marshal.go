// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package binary

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// wireNode is the gob-friendly mirror of Node; Content is split into its two
// possible concrete shapes because gob can't encode an unregistered
// interface{} field portably.
type wireNode struct {
	Tag        string
	Attrs      map[string]string
	Bytes      []byte
	Children   []wireNode
	HasBytes   bool
	HasChildren bool
}

func toWire(n Node) wireNode {
	w := wireNode{Tag: n.Tag, Attrs: make(map[string]string, len(n.Attrs))}
	for k, v := range n.Attrs {
		w.Attrs[k] = fmt.Sprint(v)
	}
	switch content := n.Content.(type) {
	case []byte:
		w.Bytes = content
		w.HasBytes = true
	case []Node:
		w.HasChildren = true
		w.Children = make([]wireNode, len(content))
		for i, child := range content {
			w.Children[i] = toWire(child)
		}
	}
	return w
}

func fromWire(w wireNode) Node {
	n := Node{Tag: w.Tag, Attrs: Attrs{}}
	for k, v := range w.Attrs {
		n.Attrs[k] = v
	}
	if w.HasChildren {
		children := make([]Node, len(w.Children))
		for i, child := range w.Children {
			children[i] = fromWire(child)
		}
		n.Content = children
	} else if w.HasBytes {
		n.Content = w.Bytes
	}
	return n
}

// Marshal serializes a Node to a transport-ready frame. This is not the real
// binary-XML wire format (that codec is an external collaborator) — it's a
// minimal, self-consistent framing sufficient to drive the core pipeline.
func Marshal(node Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(toWire(node)); err != nil {
		return nil, fmt.Errorf("failed to marshal node: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal is the inverse of Marshal.
func Unmarshal(data []byte) (Node, error) {
	var w wireNode
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return Node{}, fmt.Errorf("failed to unmarshal node: %w", err)
	}
	return fromWire(w), nil
}
