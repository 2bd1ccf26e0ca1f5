// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package tsloader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/xid"
)

// sourceHashPrefix starts the digest trailer of every cached file.
const sourceHashPrefix = "//# sourceHash="

// compiledExtension replaces the source extension of cached files.
const compiledExtension = ".js"

// LoadContext carries the format hint of a load call.
type LoadContext struct {
	Format           Format
	ImportAttributes map[string]string
}

// LoadResult is the module text handed to the host runtime.
type LoadResult struct {
	Format       Format
	Source       []byte
	ShortCircuit bool
}

// NextLoad is the next loader in the host chain.
type NextLoad func(ctx context.Context, moduleURL string, lctx LoadContext) (*LoadResult, error)

// Loader compiles TypeScript modules on load. With caching enabled the
// compiled output is persisted next to the package and reused for as long
// as the source digest matches.
type Loader struct {
	extensions []string
	cache      bool
	cacheDir   string
	processors []OnLoadProcessor
	memo       *lru.Cache[uint64, string]
	logger     *slog.Logger
}

// NewLoader creates a loader from the given options.
func NewLoader(optsFunc ...OptionFunc) (*Loader, error) {
	return newLoader(buildOptions(optsFunc))
}

func newLoader(opts *Options) (*Loader, error) {
	l := &Loader{
		extensions: opts.extensions,
		cache:      opts.cache,
		cacheDir:   opts.cacheDir,
		processors: opts.onLoadProcessors,
		logger:     opts.logger,
	}
	if opts.memoSize > 0 {
		memo, err := lru.New[uint64, string](opts.memoSize)
		if err != nil {
			return nil, err
		}
		l.memo = memo
	}
	return l, nil
}

// CacheEnabled reports whether compiled output is persisted.
func (l *Loader) CacheEnabled() bool {
	return l.cache
}

// Load compiles moduleURL when it names a source file and delegates to next otherwise.
// The original text is obtained from next with the format forced to module.
func (l *Loader) Load(ctx context.Context, moduleURL string, lctx LoadContext, next NextLoad) (*LoadResult, error) {
	if !hasExtension(stripQuery(moduleURL), l.extensions) {
		return next(ctx, moduleURL, lctx)
	}

	id := xid.New().String()
	raw, err := next(ctx, moduleURL, LoadContext{Format: FormatModule, ImportAttributes: lctx.ImportAttributes})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("no source returned for %s", moduleURL)
	}

	source, err := l.readSource(raw.Source, moduleURL)
	if err != nil {
		return nil, err
	}
	digest := sourceDigest(source)

	outPath, cacheable := l.CachePath(moduleURL)
	cacheable = cacheable && l.cache
	if cacheable {
		if compiled, ok := readCached(outPath, digest); ok {
			l.logger.Debug("Using cached module", "id", id, "url", moduleURL, "file", outPath)
			return moduleResult(compiled), nil
		}
	}

	var memoKey uint64
	if l.memo != nil {
		memoKey = xxhash.Sum64String(moduleURL + "\x00" + source)
		if compiled, ok := l.memo.Get(memoKey); ok {
			return moduleResult(compiled), nil
		}
	}

	sourcefile := moduleURL
	if p, ok := FileURLToPath(stripQuery(moduleURL)); ok {
		sourcefile = p
	}
	compiled, err := compileSource(source, sourcefile, moduleURL)
	if err != nil {
		l.logger.Error("Failed to compile module", "id", id, "error", err, "file", sourcefile)
		return nil, err
	}

	if cacheable {
		if err := writeCached(outPath, compiled, digest); err != nil {
			l.logger.Error("Failed to write compiled module", "id", id, "error", err, "file", outPath)
			return nil, err
		}
	}
	if l.memo != nil {
		l.memo.Add(memoKey, compiled)
	}

	l.logger.Debug("Compiled module", "id", id, "url", moduleURL, "cached", cacheable)
	return moduleResult(compiled), nil
}

// readSource decodes raw bytes and runs the load processor chain.
func (l *Loader) readSource(raw []byte, moduleURL string) (string, error) {
	source, err := decodeSource(raw)
	if err != nil {
		return "", err
	}
	for _, processor := range l.processors {
		source, err = processor(source, moduleURL)
		if err != nil {
			return "", fmt.Errorf("load processor failed for %s: %w", moduleURL, err)
		}
	}
	return source, nil
}

// CachePath derives where the compiled output of moduleURL is stored.
// Only files below a "src" directory have one: <pkg>/src/a/b.ts maps to
// <pkg>/<cacheDir>/a/b.js.
func (l *Loader) CachePath(moduleURL string) (string, bool) {
	p, ok := FileURLToPath(stripQuery(moduleURL))
	if !ok {
		return "", false
	}
	segs := strings.Split(filepath.ToSlash(p), "/")
	for i := len(segs) - 2; i >= 0; i-- {
		if segs[i] != "src" {
			continue
		}
		root := filepath.FromSlash(strings.Join(segs[:i], "/"))
		if root == "" {
			root = string(filepath.Separator)
		}
		rel := filepath.FromSlash(strings.Join(segs[i+1:], "/"))
		rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + compiledExtension
		return filepath.Join(root, l.cacheDir, rel), true
	}
	return "", false
}

func moduleResult(compiled string) *LoadResult {
	return &LoadResult{Format: FormatModule, Source: []byte(compiled), ShortCircuit: true}
}

// sourceDigest is the trailer line that validates a cached file.
func sourceDigest(source string) string {
	sum := sha256.Sum256([]byte(source))
	return sourceHashPrefix + hex.EncodeToString(sum[:])
}

// readCached returns the compiled text at path when its last line is digest.
func readCached(path, digest string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	idx := bytes.LastIndexByte(data, '\n')
	if idx < 0 || string(data[idx+1:]) != digest {
		return "", false
	}
	return string(data[:idx]), true
}

// writeCached stores compiled text followed by the digest trailer.
// Concurrent writers of the same file write identical bytes.
func writeCached(path, compiled, digest string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(compiled+"\n"+digest), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// CleanCache removes every compiled output directory below root.
func CleanCache(root, cacheDir string) ([]string, error) {
	if cacheDir == "" {
		cacheDir = DefaultCacheDir
	}
	var removed []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		switch d.Name() {
		case "node_modules", ".git":
			return filepath.SkipDir
		case cacheDir:
			if err := os.RemoveAll(p); err != nil {
				return err
			}
			removed = append(removed, p)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return removed, err
	}
	return removed, nil
}
