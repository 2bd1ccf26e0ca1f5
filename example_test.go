// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package tsloader_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tsloader "github.com/buke/esbuild-plugin-tsloader-go"
)

// Example demonstrates the runtime hook workflow: resolve an aliased
// specifier, then load the file it points to.
func Example() {
	// 1. Prepare a project with a path alias.
	dir, _ := os.MkdirTemp("", "tsloader-example")
	defer os.RemoveAll(dir)
	os.MkdirAll(filepath.Join(dir, "packages", "app", "src"), 0755)
	os.WriteFile(filepath.Join(dir, "tsconfig.json"), []byte(`{
		"compilerOptions": {"baseUrl": ".", "paths": {"@app/*": ["packages/app/src/*"]}}
	}`), 0644)
	os.WriteFile(filepath.Join(dir, "packages", "app", "src", "greet.ts"),
		[]byte("export const greet = (name: string): string => `hello ${name}`;\n"), 0644)

	// 2. Create the resolver and loader.
	resolver, err := tsloader.NewResolver(tsloader.WithCwd(dir))
	if err != nil {
		panic(err)
	}
	loader, err := tsloader.NewLoader(tsloader.WithCache(false))
	if err != nil {
		panic(err)
	}

	// 3. Resolve the specifier and load the module it refers to.
	ctx := context.Background()
	res, err := resolver.Resolve(ctx, "@app/greet", tsloader.ResolveContext{}, tsloader.DefaultResolve)
	if err != nil {
		panic(err)
	}
	mod, err := loader.Load(ctx, res.URL, tsloader.LoadContext{}, tsloader.DefaultLoad)
	if err != nil {
		panic(err)
	}

	fmt.Println(strings.HasSuffix(res.URL, "/packages/app/src/greet.ts"), res.Format)
	fmt.Println(strings.Contains(string(mod.Source), "export const greet = (name) =>"))

	// Output:
	// true module
	// true
}
