// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package tsloader

import (
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// compilerTsconfig pins the compiler settings so output does not depend on
// the project's own tsconfig or the host environment.
const compilerTsconfig = `{
  "compilerOptions": {
    "esModuleInterop": true,
    "jsx": "react-jsx",
    "module": "NodeNext",
    "moduleResolution": "NodeNext",
    "target": "ES2022"
  }
}`

// compileTarget is fixed rather than detected from the running runtime.
const compileTarget = api.ES2022

// isJSXPath reports whether the file extension carries JSX syntax.
func isJSXPath(p string) bool {
	return strings.HasSuffix(path.Ext(p), "x")
}

// compileSource transpiles TypeScript to an ES module with an inline source map.
// sourcefile names the original file in the source map and in error messages.
func compileSource(source, sourcefile, moduleURL string) (string, error) {
	loader := api.LoaderTS
	if isJSXPath(sourcefile) {
		loader = api.LoaderTSX
	}

	result := api.Transform(source, api.TransformOptions{
		Loader:      loader,
		Format:      api.FormatESModule,
		Target:      compileTarget,
		Platform:    api.PlatformNode,
		JSX:         api.JSXAutomatic,
		Sourcemap:   api.SourceMapInline,
		Sourcefile:  sourcefile,
		TsconfigRaw: compilerTsconfig,
		LogLevel:    api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", &CompileError{URL: moduleURL, Messages: result.Errors}
	}
	return string(result.Code), nil
}
