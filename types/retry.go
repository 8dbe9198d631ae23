// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package types

// MaxRetryCount caps how many retry receipts a single message ID gets: once
// an id's count reaches this, the entry is removed and no further retry
// stanza is emitted for it.
const MaxRetryCount = 5
