// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"context"
	"time"

	"github.com/wacore/wacore/types"
)

// restartHistorySyncTimer is the history-sync debounce gate: a debounced
// timer with a 6-second quiet period, restarted by every history-carrying
// message.
func (cli *Client) restartHistorySyncTimer() {
	if !cli.DownloadHistory {
		return
	}
	cli.historyMu.Lock()
	defer cli.historyMu.Unlock()
	if cli.historyTimer != nil {
		cli.historyTimer.Stop()
	}
	cli.historyTimer = time.AfterFunc(HistoryDebounceWindow, cli.fireHistorySync)
}

// fireHistorySync runs when the debounce window elapses with no further
// history-carrying messages. Errors are reported through OnUnexpectedError
// and do not re-arm the timer.
func (cli *Client) fireHistorySync() {
	cli.historyMu.Lock()
	recvChats := cli.recvChats
	cli.recvChats = make(map[string]types.RecvChatDelta)
	cli.historyCache = make(map[string]struct{})
	cli.historyMu.Unlock()

	if !cli.IsConnected() {
		return
	}
	if cli.AppState == nil {
		return
	}
	if err := cli.AppState.ResyncMainAppState(context.Background(), recvChats); err != nil {
		cli.OnUnexpectedError(err, "history sync resync")
	}
}
