// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mediaprep

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/wacore/wacore/types"
)

// PrepareInput bundles everything the outbound media API needs.
type PrepareInput struct {
	Buffer    []byte
	MediaType MediaType
	Options   Options
	Quoted    *types.WebMessage
	QuotedFromGroup bool
	Timestamp int64
}

// validate enforces the caller-argument constraints and rewrites image/gif
// to video/mp4 with GIF playback, returning the effective mimetype and
// gifPlayback flag.
func validate(in PrepareInput) (mimetype string, gifPlayback bool, err error) {
	mimetype = in.Options.MimeType
	if in.MediaType == MediaDocument && mimetype == "" {
		return "", false, &InvalidCallerArg{Reason: "document media requires an explicit mimetype"}
	}
	if in.MediaType == MediaSticker && in.Options.Caption != "" {
		return "", false, &InvalidCallerArg{Reason: "sticker media cannot carry a caption"}
	}
	if mimetype == "image/gif" {
		return "video/mp4", true, nil
	}
	return mimetype, false, nil
}

// Prepare runs the full outbound media pipeline: encrypt, request an upload
// slot, upload, and assemble the media content object.
func Prepare(ctx context.Context, httpClient *http.Client, slots SlotRequester, in PrepareInput) (*types.MediaMessage, error) {
	mimetype, gifPlayback, err := validate(in)
	if err != nil {
		return nil, err
	}

	enc, err := Encrypt(in.Buffer, in.MediaType)
	if err != nil {
		return nil, err
	}

	slot, err := slots.RequestUploadSlot(ctx, enc.FileEncSHA256[:], in.MediaType)
	if err != nil {
		return nil, &MediaUploadFailed{Reason: err.Error()}
	}
	uploadURL, err := BuildUploadURL(slot, in.MediaType, enc.FileEncSHA256)
	if err != nil {
		return nil, err
	}
	cdnURL, err := Upload(ctx, httpClient, uploadURL, enc.Body)
	if err != nil {
		return nil, err
	}

	content := &types.MediaMessage{
		URL:           cdnURL,
		MimeType:      mimetype,
		Caption:       in.Options.Caption,
		FileSHA256:    enc.FileSHA256[:],
		FileEncSHA256: enc.FileEncSHA256[:],
		MediaKey:      enc.MediaKey[:],
		FileLength:    uint64(len(in.Buffer)),
		GIFPlayback:   gifPlayback,
		Thumbnail:     in.Options.Thumbnail,
	}
	if in.Quoted != nil {
		content.Context = buildContextInfo(in.Quoted, in.QuotedFromGroup)
	}
	return content, nil
}

func buildContextInfo(quoted *types.WebMessage, fromGroup bool) *types.ContextInfo {
	ctx := &types.ContextInfo{
		Participant: quoted.Key.Participant,
		StanzaID:    quoted.Key.ID,
		QuotedMessage: quoted.Message,
	}
	if fromGroup {
		ctx.RemoteJID = quoted.Key.RemoteJID
	}
	return ctx
}

// ComposeOutboundMessage wraps prepared content in the {key, message,
// messageTimestamp} envelope returned to the caller for relay.
func ComposeOutboundMessage(remoteJID types.JID, content *types.MessageContent, timestamp int64) *types.WebMessage {
	return &types.WebMessage{
		Key: types.MessageKey{
			RemoteJID: remoteJID,
			ID:        GenerateMessageID(),
			FromMe:    true,
		},
		MessageTimestamp: timestamp,
		Message:          content,
		Status:           types.MessageStatusPending,
	}
}

// GenerateMessageID mints a fresh opaque stanza ID for an outbound message.
func GenerateMessageID() types.MessageID {
	return uuid.NewString()
}
