// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package tsloader

import (
	"net/url"
	"path/filepath"
	"strings"
)

// toPosixPath converts Windows-style paths to POSIX-style paths.
func toPosixPath(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

// PathToFileURL converts an absolute file system path to a file URL.
// Directories get a trailing slash so relative references resolve inside them.
func PathToFileURL(path string, isDir bool) string {
	p := toPosixPath(filepath.Clean(path))
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if isDir && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}

// FileURLToPath converts a file URL back to a file system path.
// Returns false for URLs with any other scheme.
func FileURLToPath(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	p := u.Path
	// file:///C:/dir on Windows
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p), true
}

// joinURL resolves ref against base using standard URL reference semantics.
func joinURL(base, ref string) (string, bool) {
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	return b.ResolveReference(r).String(), true
}

// stripQuery drops the query and fragment of a URL string.
func stripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
