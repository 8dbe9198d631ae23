// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package appstate represents the external app-state (chat-metadata) resync
// engine. The history-sync debounce gate only needs a single entry point
// into it.
package appstate

import (
	"context"

	"github.com/wacore/wacore/types"
)

// Resyncer is the external collaborator that bulk-pulls chat metadata after
// the History Sync Gate's debounce window fires.
type Resyncer interface {
	ResyncMainAppState(ctx context.Context, recvChats map[string]types.RecvChatDelta) error
}

// NoopResyncer satisfies Resyncer without doing anything; useful for tests
// and for callers that haven't wired a real app-state engine yet.
type NoopResyncer struct{}

func (NoopResyncer) ResyncMainAppState(context.Context, map[string]types.RecvChatDelta) error {
	return nil
}
