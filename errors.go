// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package tsloader

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// ConfigError reports a broken alias configuration. It is not recoverable:
// callers are expected to print it and stop.
type ConfigError struct {
	Path string // Offending configuration file
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tsloader: invalid configuration %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// CompileError reports a source file the compiler rejected.
type CompileError struct {
	URL      string
	Messages []api.Message
}

func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tsloader: failed to compile %s", e.URL)
	for _, msg := range e.Messages {
		b.WriteString("\n  ")
		if msg.Location != nil {
			fmt.Fprintf(&b, "%s:%d:%d: ", msg.Location.File, msg.Location.Line, msg.Location.Column)
		}
		b.WriteString(msg.Text)
	}
	return b.String()
}
