// Copyright (c) 2021 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package waLog provides the structured logger interface used throughout
// wacore, plus a no-op default and a zerolog-backed implementation.
package waLog

import "fmt"

// Logger is the structured logger interface threaded through the client.
// Sub returns a child logger scoped to a named module (cli.Log.Sub("Socket")).
type Logger interface {
	Errorf(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Debugf(msg string, args ...interface{})
	Sub(module string) Logger
}

// Noop discards everything. It's the default when NewClient is given a nil logger.
var Noop Logger = noopLogger{}

type noopLogger struct{}

func (noopLogger) Errorf(string, ...interface{}) {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Sub(string) Logger             { return Noop }

// stdoutLogger is a minimal fmt.Printf-based fallback kept for completeness;
// production use goes through Zerolog.
type stdoutLogger struct{ module string }

func (s stdoutLogger) prefix() string {
	if s.module == "" {
		return ""
	}
	return "[" + s.module + "] "
}

func (s stdoutLogger) Errorf(msg string, args ...interface{}) {
	fmt.Printf("ERROR "+s.prefix()+msg+"\n", args...)
}
func (s stdoutLogger) Warnf(msg string, args ...interface{}) {
	fmt.Printf("WARN  "+s.prefix()+msg+"\n", args...)
}
func (s stdoutLogger) Infof(msg string, args ...interface{}) {
	fmt.Printf("INFO  "+s.prefix()+msg+"\n", args...)
}
func (s stdoutLogger) Debugf(msg string, args ...interface{}) {
	fmt.Printf("DEBUG "+s.prefix()+msg+"\n", args...)
}
func (s stdoutLogger) Sub(module string) Logger {
	if s.module != "" {
		module = s.module + "/" + module
	}
	return stdoutLogger{module: module}
}

// Stdout is a dependency-free logger, useful in tests that don't want to pull
// in zerolog formatting.
func Stdout() Logger { return stdoutLogger{} }
