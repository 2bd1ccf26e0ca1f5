// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package tsloader

import (
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// DefaultConfigFile is the configuration file looked up in the working directory.
const DefaultConfigFile = "tsconfig.json"

// DefaultCacheDir is the directory, next to a package's src directory,
// that receives compiled output when caching is enabled.
const DefaultCacheDir = "build-tsloader"

// CacheEnv is the environment variable consulted by CacheFromEnv.
const CacheEnv = "TSLOADER_CACHE"

// OnLoadProcessor is a function type for custom source preprocessing.
// Receives the source text and the module URL, returns the (possibly transformed) source.
// Processors run before the content digest is computed, so their output is what gets cached.
type OnLoadProcessor func(source string, moduleURL string) (string, error)

// OnStartProcessor is a function type for processing logic before an esbuild build starts.
// Returns an error if the processing fails, which will abort the build.
type OnStartProcessor func(buildOptions *api.BuildOptions) error

// OnEndProcessor is a function type for processing logic after an esbuild build ends.
type OnEndProcessor func(result *api.BuildResult, buildOptions *api.BuildOptions) error

// Options holds the resolver, loader and plugin configuration.
// All fields are set once through OptionFunc values and never mutated afterwards.
type Options struct {
	name       string   // Plugin name for identification
	cwd        string   // Directory the configuration is looked up in
	configFile string   // Configuration file name, relative to cwd
	extensions []string // Recognized source extensions, in preference order

	aliases    []AliasRule // Preparsed alias table; nil means load from configFile
	hasAliases bool

	cache    bool   // Persist compiled output under cacheDir
	cacheDir string // Name of the compiled output directory
	memoSize int    // Size of the in-process compiled memo, 0 disables it

	exists func(path string) bool // File existence probe used by the resolver

	onLoadProcessors  []OnLoadProcessor
	onStartProcessors []OnStartProcessor
	onEndProcessors   []OnEndProcessor

	logger *slog.Logger
}

// OptionFunc is a function type for configuring options using the functional options pattern.
type OptionFunc func(*Options)

// newOptions creates a new options struct with default values.
func newOptions() *Options {
	cwd, _ := os.Getwd()
	return &Options{
		name:       "tsloader",
		cwd:        cwd,
		configFile: DefaultConfigFile,
		extensions: []string{".ts", ".tsx"},
		cacheDir:   DefaultCacheDir,
		exists:     fileExists,
		logger:     slog.Default(),
	}
}

func buildOptions(optsFunc []OptionFunc) *Options {
	opts := newOptions()
	for _, fn := range optsFunc {
		fn(opts)
	}
	return opts
}

// WithName sets a custom plugin name for identification in esbuild logs and error messages.
func WithName(name string) OptionFunc {
	return func(opts *Options) {
		opts.name = name
	}
}

// WithCwd sets the directory the configuration file is read from and the
// fallback base directory for alias substitution.
func WithCwd(cwd string) OptionFunc {
	return func(opts *Options) {
		opts.cwd = cwd
	}
}

// WithConfigFile sets the configuration file name, relative to the working directory.
func WithConfigFile(configFile string) OptionFunc {
	return func(opts *Options) {
		opts.configFile = configFile
	}
}

// WithAliases uses an already extracted alias table instead of reading the configuration file.
// Pass DefaultAliases() results here to share the process-wide table.
func WithAliases(aliases []AliasRule) OptionFunc {
	return func(opts *Options) {
		opts.aliases = aliases
		opts.hasAliases = true
	}
}

// WithSourceExtensions replaces the recognized source extensions.
// The order is the preference order used for extension inference.
func WithSourceExtensions(extensions ...string) OptionFunc {
	return func(opts *Options) {
		opts.extensions = extensions
	}
}

// WithCache enables or disables the on-disk compiled output cache.
func WithCache(enabled bool) OptionFunc {
	return func(opts *Options) {
		opts.cache = enabled
	}
}

// WithCacheDir sets the name of the compiled output directory.
func WithCacheDir(dir string) OptionFunc {
	return func(opts *Options) {
		opts.cacheDir = dir
	}
}

// WithMemoSize keeps the last size compiled units in memory.
func WithMemoSize(size int) OptionFunc {
	return func(opts *Options) {
		opts.memoSize = size
	}
}

// WithExists replaces the file existence probe used during resolution.
func WithExists(exists func(path string) bool) OptionFunc {
	return func(opts *Options) {
		opts.exists = exists
	}
}

// WithOnLoadProcessor adds an OnLoadProcessor to the processor chain.
func WithOnLoadProcessor(processor OnLoadProcessor) OptionFunc {
	return func(opts *Options) {
		opts.onLoadProcessors = append(opts.onLoadProcessors, processor)
	}
}

// WithOnStartProcessor adds an OnStartProcessor to the plugin's processor chain.
func WithOnStartProcessor(processor OnStartProcessor) OptionFunc {
	return func(opts *Options) {
		opts.onStartProcessors = append(opts.onStartProcessors, processor)
	}
}

// WithOnEndProcessor adds an OnEndProcessor to the plugin's processor chain.
func WithOnEndProcessor(processor OnEndProcessor) OptionFunc {
	return func(opts *Options) {
		opts.onEndProcessors = append(opts.onEndProcessors, processor)
	}
}

// WithLogger sets a custom logger.
// Defaults to slog.Default() if not specified.
func WithLogger(logger *slog.Logger) OptionFunc {
	return func(opts *Options) {
		opts.logger = logger
	}
}

// CacheFromRegistrationURL reports whether the loader was registered with
// caching requested, e.g. "file:///path/loader?cache" or "...?cache=true".
func CacheFromRegistrationURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	values := u.Query()
	if !values.Has("cache") {
		return false
	}
	return parseFlag(values.Get("cache"), true)
}

// CacheFromEnv reports whether TSLOADER_CACHE requests caching.
func CacheFromEnv() bool {
	v, ok := os.LookupEnv(CacheEnv)
	if !ok {
		return false
	}
	return parseFlag(v, false)
}

// parseFlag parses a boolean flag value; an empty value yields empty.
func parseFlag(v string, empty bool) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return empty
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
