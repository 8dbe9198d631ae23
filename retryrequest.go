// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"context"
	"encoding/binary"

	"go.mau.fi/libsignal/ecc"

	wabinary "github.com/wacore/wacore/binary"
	"github.com/wacore/wacore/store"
	"github.com/wacore/wacore/types"
	"github.com/wacore/wacore/types/events"
)

// sendRetryReceipt sends a retry receipt for an inbound message that failed
// to decrypt. forceIncludeIdentity additionally attaches the key bundle even
// on the first attempt, used for unavailable messages.
//
// The counter stored for an id is always one ahead of the count just
// emitted: after the first retry receipt (count="1") the stored counter
// reads 2, so a second failure for the same id emits count="2".
func (cli *Client) sendRetryReceipt(node *wabinary.Node, forceIncludeIdentity bool) {
	id, _ := node.Attrs["id"].(string)

	retryCount, ok := cli.RetryCounters.Get(id)
	if !ok {
		retryCount = 1
	}
	if retryCount >= types.MaxRetryCount {
		cli.RetryCounters.Delete(id)
		cli.Log.Warnf("Not sending any more retry receipts for %s", id)
		return
	}
	cli.RetryCounters.Set(id, retryCount+1)

	var registrationIDBytes [4]byte
	binary.BigEndian.PutUint32(registrationIDBytes[:], cli.Store.RegistrationID())

	attrs := wabinary.Attrs{
		"id":   id,
		"type": "retry",
		"to":   node.Attrs["from"],
	}
	if recipient, ok := node.Attrs["recipient"]; ok {
		attrs["recipient"] = recipient
	}
	if participant, ok := node.Attrs["participant"]; ok {
		attrs["participant"] = participant
	}
	payload := wabinary.Node{
		Tag:   "receipt",
		Attrs: attrs,
		Content: []wabinary.Node{
			{Tag: "retry", Attrs: wabinary.Attrs{
				"count": retryCount,
				"id":    id,
				"t":     node.Attrs["t"],
				"v":     1,
			}},
			{Tag: "registration", Content: registrationIDBytes[:]},
		},
	}

	if retryCount > 1 || forceIncludeIdentity {
		err := cli.Store.WithTransaction(context.Background(), func(tx store.KeyStoreTx) error {
			preKey, err := tx.GenOnePreKey(context.Background())
			if err != nil {
				return err
			}
			identity := cli.Store.IdentityKeyPair()
			signed := cli.Store.SignedPreKey()
			payload.Content = append(payload.GetChildren(), wabinary.Node{
				Tag: "keys",
				Content: []wabinary.Node{
					{Tag: "type", Content: []byte{ecc.DjbType}},
					{Tag: "identity", Content: identity.Pub[:]},
					{Tag: "key", Attrs: wabinary.Attrs{"id": preKey.KeyID}, Content: preKey.Pub[:]},
					{Tag: "skey", Attrs: wabinary.Attrs{"id": signed.KeyID}, Content: signed.Pub[:]},
					{Tag: "device-identity", Content: cli.Store.AccountIdentityBundle()},
				},
			})
			return nil
		})
		if err != nil {
			cli.Log.Errorf("Failed to get prekey for retry receipt: %v", err)
			return
		}
		cli.dispatchEvent(&events.CredsUpdate{Reason: "consumed one-time prekey for retry receipt"})
	}

	if err := cli.sendNode(payload); err != nil {
		cli.Log.Errorf("Failed to send retry receipt for %s: %v", id, err)
	}
}
