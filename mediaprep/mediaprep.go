// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mediaprep implements the outbound media preparation path:
// symmetric encryption of a media buffer with HKDF-derived key material for
// signed-URL upload, thumbnailing delegation, and assembly of the
// relay-ready message envelope.
package mediaprep

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MediaType selects the HKDF info string and upload path segment.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaAudio    MediaType = "audio"
	MediaDocument MediaType = "document"
	MediaSticker  MediaType = "sticker"
)

// hkdfInfo is the media-type-specific HKDF info string.
var hkdfInfo = map[MediaType]string{
	MediaImage:    "WhatsApp Image Keys",
	MediaVideo:    "WhatsApp Video Keys",
	MediaAudio:    "WhatsApp Audio Keys",
	MediaDocument: "WhatsApp Document Keys",
	MediaSticker:  "WhatsApp Image Keys", // stickers are encrypted like images on the wire
}

// InvalidCallerArg is returned for caller-side misuse of the media API.
type InvalidCallerArg struct {
	Reason string
}

func (e *InvalidCallerArg) Error() string { return "invalid media arguments: " + e.Reason }

// Options mirrors the outbound media API's caller-supplied surface.
type Options struct {
	MimeType  string
	Caption   string
	Thumbnail []byte
}

// EncryptedMedia is the output of Encrypt: everything needed to upload the
// body and later let a recipient decrypt it.
type EncryptedMedia struct {
	MediaKey      [32]byte
	IV            [16]byte
	CipherKey     [32]byte
	MacKey        [32]byte
	RefKey        [32]byte
	Body          []byte // enc || mac, ready to upload
	FileSHA256    [32]byte
	FileEncSHA256 [32]byte
}

// randomMediaKey generates the random 32-byte media key.
func randomMediaKey() ([32]byte, error) {
	var key [32]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return key, fmt.Errorf("failed to generate media key: %w", err)
	}
	return key, nil
}

// deriveKeys runs HKDF-SHA256 over the media key with the media-type info
// string, splitting the 112-byte expansion into {iv, cipherKey, macKey, refKey}.
func deriveKeys(mediaKey [32]byte, mediaType MediaType) (iv [16]byte, cipherKey, macKey, refKey [32]byte, err error) {
	info, ok := hkdfInfo[mediaType]
	if !ok {
		err = fmt.Errorf("unknown media type %q", mediaType)
		return
	}
	reader := hkdf.New(sha256.New, mediaKey[:], nil, []byte(info))
	var expanded [112]byte
	if _, err = io.ReadFull(reader, expanded[:]); err != nil {
		err = fmt.Errorf("failed to expand media key: %w", err)
		return
	}
	copy(iv[:], expanded[0:16])
	copy(cipherKey[:], expanded[16:48])
	copy(macKey[:], expanded[48:80])
	copy(refKey[:], expanded[80:112])
	return iv, cipherKey, macKey, refKey, nil
}

// Encrypt runs the full key-derivation, AES-CBC encryption, and HMAC
// algorithm over a plaintext buffer.
func Encrypt(buffer []byte, mediaType MediaType) (*EncryptedMedia, error) {
	mediaKey, err := randomMediaKey()
	if err != nil {
		return nil, err
	}
	iv, cipherKey, macKey, refKey, err := deriveKeys(mediaKey, mediaType)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cipherKey[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	padded := pkcs7Pad(buffer, aes.BlockSize)
	enc := make([]byte, len(padded))
	cbc := cipher.NewCBCEncrypter(block, iv[:])
	cbc.CryptBlocks(enc, padded)

	mac := hmac.New(sha256.New, macKey[:])
	mac.Write(iv[:])
	mac.Write(enc)
	macSum := mac.Sum(nil)[:10]

	body := make([]byte, 0, len(enc)+len(macSum))
	body = append(body, enc...)
	body = append(body, macSum...)

	fileSHA256 := sha256.Sum256(buffer)
	fileEncSHA256 := sha256.Sum256(body)

	return &EncryptedMedia{
		MediaKey:      mediaKey,
		IV:            iv,
		CipherKey:     cipherKey,
		MacKey:        macKey,
		RefKey:        refKey,
		Body:          body,
		FileSHA256:    fileSHA256,
		FileEncSHA256: fileEncSHA256,
	}, nil
}

// Decrypt reverses Encrypt: it validates the MAC, decrypts, and strips
// padding back to fileLength. Used by round-trip tests.
func Decrypt(body []byte, cipherKey, macKey [32]byte, iv [16]byte, fileLength int) ([]byte, error) {
	if len(body) < 10 {
		return nil, fmt.Errorf("body too short to contain MAC")
	}
	enc, mac := body[:len(body)-10], body[len(body)-10:]
	expectedMAC := hmac.New(sha256.New, macKey[:])
	expectedMAC.Write(iv[:])
	expectedMAC.Write(enc)
	if !hmac.Equal(mac, expectedMAC.Sum(nil)[:10]) {
		return nil, fmt.Errorf("MAC mismatch")
	}
	block, err := aes.NewCipher(cipherKey[:])
	if err != nil {
		return nil, err
	}
	if len(enc)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of the block size")
	}
	plaintext := make([]byte, len(enc))
	cbc := cipher.NewCBCDecrypter(block, iv[:])
	cbc.CryptBlocks(plaintext, enc)
	plaintext = pkcs7Unpad(plaintext)
	if fileLength >= 0 && fileLength <= len(plaintext) {
		plaintext = plaintext[:fileLength]
	}
	return plaintext, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	padLen := int(data[len(data)-1])
	if padLen <= 0 || padLen > len(data) {
		return data
	}
	return data[:len(data)-padLen]
}

// B64URLUnpadded renders a byte slice as URL-safe base64 without padding,
// the encoding the upload API expects for media references.
func B64URLUnpadded(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}
