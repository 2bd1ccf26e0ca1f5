// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package tsloader

import (
	"context"
	"log/slog"
	"path"
	"strings"
)

// Format is the module format reported to the host runtime.
type Format string

const (
	FormatModule   Format = "module"
	FormatJSON     Format = "json"
	FormatCommonJS Format = "commonjs"
)

// ResolveContext carries the importing module of a resolve call.
type ResolveContext struct {
	ParentURL  string
	Conditions []string
}

// ResolveResult is a resolved module. ShortCircuit tells the host that no
// further resolver in its chain should run.
type ResolveResult struct {
	URL          string
	Format       Format
	ShortCircuit bool
}

// NextResolve is the next resolver in the host chain.
type NextResolve func(ctx context.Context, specifier string, rctx ResolveContext) (*ResolveResult, error)

// compiledExtensions are the runtime extensions a source file may be imported under.
var compiledExtensions = map[string]bool{".js": true, ".jsx": true}

// Resolver maps import specifiers to source files. It is immutable after
// construction and safe for concurrent use.
type Resolver struct {
	aliases    []AliasRule
	extensions []string
	exists     func(path string) bool
	logger     *slog.Logger
}

// NewResolver creates a resolver. Unless WithAliases is given, the alias
// table is read from the configured tsconfig; a broken configuration is
// returned as a *ConfigError.
func NewResolver(optsFunc ...OptionFunc) (*Resolver, error) {
	return newResolver(buildOptions(optsFunc))
}

func newResolver(opts *Options) (*Resolver, error) {
	aliases := opts.aliases
	if !opts.hasAliases {
		var err error
		aliases, err = loadAliases(opts.cwd, opts.configFile, opts.logger)
		if err != nil {
			return nil, err
		}
	}
	return &Resolver{
		aliases:    aliases,
		extensions: opts.extensions,
		exists:     opts.exists,
		logger:     opts.logger,
	}, nil
}

// Aliases returns the resolver's alias table.
func (r *Resolver) Aliases() []AliasRule {
	return r.aliases
}

// Resolve tries, in order: an explicit source extension, a JSON file, a
// compiled extension standing in for a source file, an extensionless
// relative path and finally the alias table. When nothing matches, the
// call is handed unchanged to next.
func (r *Resolver) Resolve(ctx context.Context, specifier string, rctx ResolveContext, next NextResolve) (*ResolveResult, error) {
	parent := rctx.ParentURL
	if parent == "" {
		parent = PathToFileURL(cwdOrRoot(), true)
	}

	if res := r.resolveLocal(specifier, parent); res != nil {
		return res, nil
	}
	if res := r.resolveAlias(specifier); res != nil {
		r.logger.Debug("Resolved path alias", "specifier", specifier, "url", res.URL)
		return res, nil
	}
	if next == nil {
		return nil, nil
	}
	return next(ctx, specifier, rctx)
}

// resolveLocal runs every rule that does not involve the alias table.
func (r *Resolver) resolveLocal(specifier, parent string) *ResolveResult {
	rules := []func(string, string) *ResolveResult{
		r.resolveExtSource,
		r.resolveExtJSON,
		r.resolveExtRemap,
		r.resolveExtBare,
	}
	for _, rule := range rules {
		if res := rule(specifier, parent); res != nil {
			return res
		}
	}
	return nil
}

// resolveExtSource matches specifiers that already carry a source extension.
// The match is purely syntactic.
func (r *Resolver) resolveExtSource(specifier, parent string) *ResolveResult {
	if !r.isSourcePath(specifier) {
		return nil
	}
	u, ok := joinURL(parent, specifier)
	if !ok {
		return nil
	}
	return &ResolveResult{URL: u, Format: FormatModule, ShortCircuit: true}
}

func (r *Resolver) resolveExtJSON(specifier, parent string) *ResolveResult {
	if !isRelative(specifier) || path.Ext(stripQuery(specifier)) != ".json" {
		return nil
	}
	u, ok := joinURL(parent, specifier)
	if !ok {
		return nil
	}
	return &ResolveResult{URL: u, Format: FormatJSON, ShortCircuit: true}
}

// resolveExtRemap maps "./x.js" to "./x.ts" when only the source file exists.
func (r *Resolver) resolveExtRemap(specifier, parent string) *ResolveResult {
	if !isRelative(specifier) {
		return nil
	}
	ext := path.Ext(specifier)
	if !compiledExtensions[ext] {
		return nil
	}
	literal, ok := joinURL(parent, specifier)
	if !ok || r.urlExists(literal) {
		return nil
	}
	base := strings.TrimSuffix(specifier, ext)
	candidates := make([]string, 0, len(r.extensions))
	for _, srcExt := range r.extensions {
		candidates = append(candidates, base+srcExt)
	}
	return r.firstExisting(parent, candidates)
}

// resolveExtBare handles relative specifiers without an extension,
// including "." and directories with an index file.
func (r *Resolver) resolveExtBare(specifier, parent string) *ResolveResult {
	if !isRelative(specifier) || bareExt(specifier) != "" {
		return nil
	}
	if specifier == "." {
		candidates := make([]string, 0, len(r.extensions))
		for _, ext := range r.extensions {
			candidates = append(candidates, "./index"+ext)
		}
		if res := r.firstExisting(parent, candidates); res != nil {
			return res
		}
		// The parent itself may be missing its extension, as with an alias
		// substituted to a file path.
		trimmed := strings.TrimSuffix(parent, "/")
		for _, ext := range r.extensions {
			if r.urlExists(trimmed + ext) {
				return &ResolveResult{URL: trimmed + ext, Format: FormatModule, ShortCircuit: true}
			}
		}
		return nil
	}

	dir := strings.TrimSuffix(specifier, "/")
	candidates := make([]string, 0, 2*len(r.extensions))
	if path.Base(dir) != ".." {
		for _, ext := range r.extensions {
			candidates = append(candidates, dir+ext)
		}
	}
	for _, ext := range r.extensions {
		candidates = append(candidates, dir+"/index"+ext)
	}
	return r.firstExisting(parent, candidates)
}

// resolveAlias rewrites specifier with the first matching alias rule and
// resolves the result against the rule's base directory. Aliases are not
// applied again to the substituted specifier.
func (r *Resolver) resolveAlias(specifier string) *ResolveResult {
	rule, rest, ok := matchAlias(r.aliases, specifier)
	if !ok {
		return nil
	}
	return r.resolveLocal(rule.substitute(rest), rule.BaseURL)
}

func (r *Resolver) firstExisting(parent string, candidates []string) *ResolveResult {
	for _, candidate := range candidates {
		u, ok := joinURL(parent, candidate)
		if ok && r.urlExists(u) {
			return &ResolveResult{URL: u, Format: FormatModule, ShortCircuit: true}
		}
	}
	return nil
}

func (r *Resolver) urlExists(u string) bool {
	p, ok := FileURLToPath(u)
	return ok && r.exists(p)
}

func (r *Resolver) isSourcePath(specifier string) bool {
	return hasExtension(stripQuery(specifier), r.extensions)
}

func hasExtension(p string, extensions []string) bool {
	ext := path.Ext(p)
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// bareExt is the extension of the last segment; "." and ".." have none.
func bareExt(specifier string) string {
	base := path.Base(specifier)
	if base == "." || base == ".." {
		return ""
	}
	return path.Ext(base)
}

func isRelative(specifier string) bool {
	return strings.HasPrefix(specifier, ".")
}
