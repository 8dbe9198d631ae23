// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mediaprep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// UploadSlot is the response to an upload-slot request: the auth token and
// candidate hosts the caller uploads the encrypted body to.
type UploadSlot struct {
	Auth  string
	Hosts []string
}

// SlotRequester is the external collaborator that negotiates an upload slot
// with WhatsApp's media servers.
type SlotRequester interface {
	RequestUploadSlot(ctx context.Context, fileEncSHA256 []byte, mediaType MediaType) (UploadSlot, error)
}

// MediaUploadFailed surfaces upload problems to the caller.
type MediaUploadFailed struct {
	Reason string
}

func (e *MediaUploadFailed) Error() string { return "media upload failed: " + e.Reason }

var mediaPathSegment = map[MediaType]string{
	MediaImage:    "mms/image",
	MediaVideo:    "mms/video",
	MediaAudio:    "mms/audio",
	MediaDocument: "mms/document",
	MediaSticker:  "mms/image",
}

// BuildUploadURL composes the upload URL: the encrypted file's SHA-256,
// base64url-unpadded, used both as a path segment and as the dedup token
// query parameter.
func BuildUploadURL(slot UploadSlot, mediaType MediaType, fileEncSHA256 [32]byte) (string, error) {
	if len(slot.Hosts) == 0 {
		return "", &MediaUploadFailed{Reason: "upload slot has no hosts"}
	}
	token := B64URLUnpadded(fileEncSHA256[:])
	path, ok := mediaPathSegment[mediaType]
	if !ok {
		return "", &MediaUploadFailed{Reason: fmt.Sprintf("unknown media type %q", mediaType)}
	}
	return fmt.Sprintf("https://%s/%s/%s?auth=%s&token=%s", slot.Hosts[0], path, token, slot.Auth, token), nil
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload POSTs the encrypted body to the upload URL and returns the final
// CDN URL WhatsApp assigns to it.
func Upload(ctx context.Context, httpClient *http.Client, uploadURL string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Origin", "https://web.whatsapp.com")
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Upload-Request-Id", uuid.NewString())

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", &MediaUploadFailed{Reason: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &MediaUploadFailed{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &MediaUploadFailed{Reason: "response was not valid JSON: " + err.Error()}
	}
	if parsed.URL == "" {
		return "", &MediaUploadFailed{Reason: "response did not contain a url"}
	}
	return parsed.URL, nil
}
