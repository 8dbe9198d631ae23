// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wacore

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/wacore/wacore/types"
)

// memoryRetryCounterStore is the default RetryCounterStore, used when a host
// doesn't need counters to survive a restart.
type memoryRetryCounterStore struct {
	counts *xsync.MapOf[types.MessageID, int]
}

func newMemoryRetryCounterStore() *memoryRetryCounterStore {
	return &memoryRetryCounterStore{counts: xsync.NewMapOf[types.MessageID, int]()}
}

func (s *memoryRetryCounterStore) Get(id types.MessageID) (int, bool) {
	return s.counts.Load(id)
}

func (s *memoryRetryCounterStore) Set(id types.MessageID, count int) {
	s.counts.Store(id, count)
}

func (s *memoryRetryCounterStore) Delete(id types.MessageID) {
	s.counts.Delete(id)
}
