// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package socket implements the persistent bidirectional websocket
// transport the core pipeline sends stanzas over. The noise-protocol
// handshake and auth state live further out — this package only owns frame
// transport and the open/closed state the core needs to detect a closed
// transport.
package socket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/wacore/wacore/binary"
)

// Proxy mirrors net/http's proxy function signature so callers can reuse
// http.ProxyFromEnvironment or a custom dialer.
type Proxy = func(*http.Request) (*url.URL, error)

// ErrNotOpen is returned by SendNode when the transport has been closed.
var ErrNotOpen = errors.New("transport is not open")

// Transport is the abstract bidirectional socket the core pipeline writes
// stanzas to and receives frames from.
type Transport interface {
	SendNode(ctx context.Context, node binary.Node) error
	IsOpen() bool
}

// FrameSocket is a Transport backed by a concrete frame writer (the
// production implementation wraps a gorilla/websocket connection).
type FrameSocket struct {
	mu     sync.RWMutex
	open   bool
	writer FrameWriter
}

// FrameWriter is the narrow write side of a websocket connection.
type FrameWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// NewFrameSocket wraps a FrameWriter (e.g. a *websocket.Conn) as a Transport.
func NewFrameSocket(writer FrameWriter) *FrameSocket {
	return &FrameSocket{writer: writer, open: true}
}

// SendNode marshals node and writes it as a binary websocket frame. A write
// attempted after Close is not retried or silently dropped here — SendNode
// returns ErrNotOpen so direct callers can distinguish the case; callers
// that already check IsOpen treat it as a no-op.
func (fs *FrameSocket) SendNode(ctx context.Context, node binary.Node) error {
	fs.mu.RLock()
	open := fs.open
	fs.mu.RUnlock()
	if !open {
		return ErrNotOpen
	}
	payload, err := binary.Marshal(node)
	if err != nil {
		return err
	}
	const binaryMessage = 2 // websocket.BinaryMessage, duplicated to avoid importing gorilla here
	return fs.writer.WriteMessage(binaryMessage, payload)
}

// IsOpen reports whether the socket is still usable.
func (fs *FrameSocket) IsOpen() bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.open
}

// Close marks the socket closed; subsequent SendNode calls return ErrNotOpen.
func (fs *FrameSocket) Close() {
	fs.mu.Lock()
	fs.open = false
	fs.mu.Unlock()
}
