// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package waLog

import "github.com/rs/zerolog"

// Zerolog adapts a zerolog.Logger to the waLog.Logger interface.
type Zerolog struct {
	zl     zerolog.Logger
	module string
}

// NewZerolog wraps an existing zerolog.Logger.
func NewZerolog(zl zerolog.Logger) Logger {
	return Zerolog{zl: zl}
}

func (z Zerolog) withModule() zerolog.Logger {
	if z.module == "" {
		return z.zl
	}
	return z.zl.With().Str("module", z.module).Logger()
}

func (z Zerolog) Errorf(msg string, args ...interface{}) {
	z.withModule().Error().Msgf(msg, args...)
}
func (z Zerolog) Warnf(msg string, args ...interface{}) {
	z.withModule().Warn().Msgf(msg, args...)
}
func (z Zerolog) Infof(msg string, args ...interface{}) {
	z.withModule().Info().Msgf(msg, args...)
}
func (z Zerolog) Debugf(msg string, args ...interface{}) {
	z.withModule().Debug().Msgf(msg, args...)
}
func (z Zerolog) Sub(module string) Logger {
	if z.module != "" {
		module = z.module + "/" + module
	}
	return Zerolog{zl: z.zl, module: module}
}
