// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package tsloader

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// NewPlugin creates an esbuild plugin that resolves and compiles modules
// exactly like Resolver and Loader do for a runtime hook, so bundles and
// unbundled runs agree on what an import refers to.
//
// Example usage:
//
//	plugin, err := NewPlugin(
//	  WithCwd("/path/to/project"),
//	  WithCache(true),
//	)
//
// A broken tsconfig is reported as a *ConfigError.
func NewPlugin(optsFunc ...OptionFunc) (api.Plugin, error) {
	opts := buildOptions(optsFunc)

	resolver, err := newResolver(opts)
	if err != nil {
		return api.Plugin{}, err
	}
	loader, err := newLoader(opts)
	if err != nil {
		return api.Plugin{}, err
	}

	return api.Plugin{
		Name: opts.name,
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				for _, processor := range opts.onStartProcessors {
					if err := processor(build.InitialOptions); err != nil {
						opts.logger.Error("Start processor failed", "error", err)
						return api.OnStartResult{}, err
					}
				}
				return api.OnStartResult{}, nil
			})

			registerResolveHandler(resolver, &build)
			registerLoadHandler(opts, loader, &build)

			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				for _, processor := range opts.onEndProcessors {
					if err := processor(result, build.InitialOptions); err != nil {
						opts.logger.Error("End processor failed", "error", err)
						return api.OnEndResult{}, err
					}
				}
				return api.OnEndResult{}, nil
			})
		},
	}, nil
}

// registerResolveHandler routes every file import through the resolver.
// When the resolver declines, esbuild's own resolution runs.
func registerResolveHandler(resolver *Resolver, build *api.PluginBuild) {
	build.OnResolve(api.OnResolveOptions{Filter: `.*`, Namespace: "file"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
		parent := PathToFileURL(args.ResolveDir, true)
		if args.Importer != "" && filepath.IsAbs(args.Importer) {
			parent = PathToFileURL(args.Importer, false)
		}

		res, err := resolver.Resolve(context.Background(), args.Path, ResolveContext{ParentURL: parent}, nil)
		if err != nil || res == nil {
			return api.OnResolveResult{}, err
		}
		p, ok := FileURLToPath(res.URL)
		if !ok {
			return api.OnResolveResult{}, nil
		}
		return api.OnResolveResult{Path: p}, nil
	})
}

// registerLoadHandler compiles source files through the loader, including its cache.
func registerLoadHandler(opts *Options, loader *Loader, build *api.PluginBuild) {
	build.OnLoad(api.OnLoadOptions{Filter: extensionFilter(opts.extensions), Namespace: "file"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		res, err := loader.Load(context.Background(), PathToFileURL(args.Path, false), LoadContext{}, DefaultLoad)
		if err != nil {
			return api.OnLoadResult{
				Errors: []api.Message{{
					Text:     err.Error(),
					Location: &api.Location{File: args.Path},
				}},
			}, err
		}

		contents := string(res.Source)
		return api.OnLoadResult{
			Contents:   &contents,
			Loader:     api.LoaderJS,
			ResolveDir: filepath.Dir(args.Path),
		}, nil
	})
}

// extensionFilter builds the esbuild filter matching any of the extensions.
func extensionFilter(extensions []string) string {
	quoted := make([]string, len(extensions))
	for i, ext := range extensions {
		quoted[i] = regexp.QuoteMeta(ext)
	}
	return `(` + strings.Join(quoted, "|") + `)$`
}
