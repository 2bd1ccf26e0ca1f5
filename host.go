// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package tsloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrModuleNotFound is returned by DefaultResolve when a specifier names no file.
var ErrModuleNotFound = errors.New("module not found")

// DefaultResolve is the terminal link of a resolve chain: it joins relative
// and absolute specifiers against the parent URL and checks the file exists.
// Bare package specifiers are not supported.
func DefaultResolve(ctx context.Context, specifier string, rctx ResolveContext) (*ResolveResult, error) {
	parent := rctx.ParentURL
	if parent == "" {
		parent = PathToFileURL(cwdOrRoot(), true)
	}

	ref := specifier
	switch {
	case strings.HasPrefix(specifier, "file:"):
	case isRelative(specifier):
	case filepath.IsAbs(specifier):
		ref = PathToFileURL(specifier, false)
	default:
		return nil, fmt.Errorf("%w: %s imported from %s", ErrModuleNotFound, specifier, parent)
	}

	u, ok := joinURL(parent, ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s imported from %s", ErrModuleNotFound, specifier, parent)
	}
	p, ok := FileURLToPath(u)
	if !ok || !fileExists(p) {
		return nil, fmt.Errorf("%w: %s imported from %s", ErrModuleNotFound, specifier, parent)
	}
	return &ResolveResult{URL: u, Format: formatOf(u)}, nil
}

// DefaultLoad is the terminal link of a load chain: it reads file URLs from disk.
func DefaultLoad(ctx context.Context, moduleURL string, lctx LoadContext) (*LoadResult, error) {
	p, ok := FileURLToPath(stripQuery(moduleURL))
	if !ok {
		return nil, fmt.Errorf("unsupported URL scheme: %s", moduleURL)
	}
	source, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	format := lctx.Format
	if format == "" {
		format = formatOf(moduleURL)
	}
	return &LoadResult{Format: format, Source: source}, nil
}

func formatOf(u string) Format {
	switch path.Ext(stripQuery(u)) {
	case ".json":
		return FormatJSON
	case ".cjs":
		return FormatCommonJS
	default:
		return FormatModule
	}
}

func cwdOrRoot() string {
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return string(filepath.Separator)
}
