// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package tsloader

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// decodeSource returns source text as UTF-8 without a byte order mark.
// UTF-16 files are recognized by their BOM and converted.
func decodeSource(b []byte) (string, error) {
	if utf8.Valid(b) {
		return string(bytes.TrimPrefix(b, utf8BOM)), nil
	}

	encoding, name, _ := charset.DetermineEncoding(b, "")
	out, _, err := transform.Bytes(encoding.NewDecoder(), b)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s source: %w", name, err)
	}
	return string(bytes.TrimPrefix(out, utf8BOM)), nil
}
