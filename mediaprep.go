// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"context"
	"time"

	"github.com/wacore/wacore/mediaprep"
	"github.com/wacore/wacore/types"
)

// PrepareMedia runs the outbound media pipeline: encrypt, request an upload
// slot, upload, and assemble the media content object. This is a thin
// wrapper so callers only ever depend on the Client.
func (cli *Client) PrepareMedia(ctx context.Context, in mediaprep.PrepareInput) (*types.MediaMessage, error) {
	if cli.Uploader == nil {
		return nil, &InvalidCallerArgError{Reason: "no media upload slot requester configured"}
	}
	return mediaprep.Prepare(ctx, cli.HTTPClient, cli.Uploader, in)
}

// ComposeOutboundMessage wraps prepared content in the envelope returned to
// the caller for relay, stamping the current time unless the caller already
// supplied one.
func (cli *Client) ComposeOutboundMessage(remoteJID types.JID, content *types.MessageContent, timestamp int64) *types.WebMessage {
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}
	msg := mediaprep.ComposeOutboundMessage(remoteJID, content, timestamp)
	msg.Key.ID = cli.GenerateMessageID()
	return msg
}
