// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package socket

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// WAConnHeader is sent as part of the websocket dial.
var WAConnHeader = http.Header{"Origin": []string{"https://web.whatsapp.com"}}

// DialWebsocket opens a real gorilla/websocket connection and wraps it as a
// Transport. The noise handshake that must follow before any stanza is
// trusted is an external collaborator; callers drive it themselves before
// handing the resulting Transport to the core Client.
func DialWebsocket(url string, proxy Proxy) (*FrameSocket, error) {
	dialer := websocket.Dialer{Proxy: proxy}
	conn, _, err := dialer.Dial(url, WAConnHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}
	return NewFrameSocket(conn), nil
}
