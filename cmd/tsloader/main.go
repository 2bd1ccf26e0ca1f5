// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Command tsloader resolves, compiles and bundles TypeScript modules with
// the same rules the runtime loader hook applies.
package main

import "github.com/buke/esbuild-plugin-tsloader-go/cmd/tsloader/commands"

func main() {
	commands.Execute()
}
