// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package binary

import (
	"fmt"
	"strconv"
	"time"

	"github.com/wacore/wacore/types"
)

// AttrGetter reads typed values out of a Node's Attrs, collecting errors
// instead of returning them eagerly so callers can read a handful of
// attributes and check for failures once at the end.
type AttrGetter struct {
	attrs  Attrs
	tag    string
	Errors []error
}

func (ag *AttrGetter) fail(key, expected string) {
	ag.Errors = append(ag.Errors, fmt.Errorf("missing or invalid %s attribute %q in <%s>", expected, key, ag.tag))
}

// OK reports whether every attribute read so far succeeded.
func (ag *AttrGetter) OK() bool {
	return len(ag.Errors) == 0
}

// Error returns the error of the first failed read, or nil if OK.
func (ag *AttrGetter) Error() error {
	if ag.OK() {
		return nil
	}
	return ag.Errors[0]
}

func (ag *AttrGetter) String(key string) string {
	val, ok := ag.attrs[key].(string)
	if !ok {
		ag.fail(key, "string")
	}
	return val
}

func (ag *AttrGetter) OptionalString(key string) string {
	val, _ := ag.attrs[key].(string)
	return val
}

func (ag *AttrGetter) Int(key string) int {
	switch v := ag.attrs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			ag.fail(key, "int")
		}
		return n
	}
	ag.fail(key, "int")
	return 0
}

func (ag *AttrGetter) OptionalInt(key string) int {
	switch v := ag.attrs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func (ag *AttrGetter) Int64(key string) int64 {
	switch v := ag.attrs[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			ag.fail(key, "int64")
		}
		return n
	}
	ag.fail(key, "int64")
	return 0
}

// UnixTime reads a decimal unix-seconds timestamp attribute, matching the
// server's "t" attribute convention.
func (ag *AttrGetter) UnixTime(key string) time.Time {
	return time.Unix(ag.Int64(key), 0)
}

// JID parses a JID-valued attribute (e.g. "from", "participant").
func (ag *AttrGetter) JID(key string) types.JID {
	raw, ok := ag.attrs[key].(string)
	if !ok {
		ag.fail(key, "jid")
		return types.EmptyJID
	}
	jid, err := types.ParseJID(raw)
	if err != nil {
		ag.fail(key, "jid")
		return types.EmptyJID
	}
	return jid
}

// OptionalJID is JID without recording a failure when the attribute is absent.
func (ag *AttrGetter) OptionalJID(key string) types.JID {
	raw, ok := ag.attrs[key].(string)
	if !ok {
		return types.EmptyJID
	}
	jid, _ := types.ParseJID(raw)
	return jid
}

func (ag *AttrGetter) Bool(key string) bool {
	switch v := ag.attrs[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}
