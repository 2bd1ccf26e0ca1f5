// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package tsloader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
)

// AliasRule is one compilerOptions.paths entry, ready for segment matching.
type AliasRule struct {
	FilterSegments   []string // Key segments, without the trailing wildcard
	IsWildcard       bool     // Key ended in a "*" segment
	SubstitutionPath string   // First mapped path; further candidates are ignored
	BaseURL          string   // Directory URL SubstitutionPath is resolved against
}

// substitute builds the relative specifier a matched rule rewrites to.
func (r AliasRule) substitute(rest []string) string {
	segs := splitSegments(r.SubstitutionPath)
	if len(segs) > 0 && segs[len(segs)-1] == "*" {
		segs = segs[:len(segs)-1]
	}
	if r.IsWildcard {
		segs = append(segs, rest...)
	}
	// drop "." segments, the specifier is made relative below
	out := segs[:0:0]
	for _, s := range segs {
		if s != "." && s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return "."
	}
	if out[0] == ".." {
		return strings.Join(out, "/")
	}
	return "./" + strings.Join(out, "/")
}

// match reports the segments following the first offset at which the rule
// matches specifier segments. Every offset is considered, not only the prefix.
func (r AliasRule) match(segs []string) ([]string, bool) {
	n := len(r.FilterSegments)
	if r.IsWildcard {
		if len(segs) <= n {
			return nil, false
		}
	} else if len(segs) != n {
		return nil, false
	}
	for offset := 0; offset+n <= len(segs); offset++ {
		if !r.IsWildcard && offset != 0 {
			break
		}
		if segmentsEqual(segs[offset:offset+n], r.FilterSegments) {
			rest := segs[offset+n:]
			if r.IsWildcard && len(rest) == 0 {
				continue
			}
			return rest, true
		}
	}
	return nil, false
}

func segmentsEqual(a, b []string) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func splitSegments(p string) []string {
	return strings.Split(toPosixPath(p), "/")
}

// matchAlias returns the first rule, in configuration order, that matches specifier.
func matchAlias(rules []AliasRule, specifier string) (*AliasRule, []string, bool) {
	segs := splitSegments(specifier)
	for i := range rules {
		if rest, ok := rules[i].match(segs); ok {
			return &rules[i], rest, true
		}
	}
	return nil, nil, false
}

// extendsList accepts both the string and the array form of "extends".
type extendsList []string

func (e *extendsList) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*e = extendsList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("extends must be a string or an array of strings: %w", err)
	}
	*e = many
	return nil
}

// orderedPaths keeps the key order of compilerOptions.paths.
type orderedPaths struct {
	keys   []string
	values map[string][]string
}

func (p *orderedPaths) UnmarshalJSON(data []byte) error {
	p.values = make(map[string][]string)
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("paths must be an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var candidates []string
		if err := json.Unmarshal(raw, &candidates); err != nil {
			return fmt.Errorf("paths[%q] must be an array of strings", key)
		}
		if _, seen := p.values[key]; !seen {
			p.keys = append(p.keys, key)
		}
		p.values[key] = candidates
	}
	_, err = dec.Token()
	return err
}

// tsconfigLayer is one file of an extends chain.
type tsconfigLayer struct {
	path string
	dir  string

	Extends         extendsList `json:"extends"`
	CompilerOptions struct {
		BaseURL *string      `json:"baseUrl"`
		Paths   orderedPaths `json:"paths"`
	} `json:"compilerOptions"`
}

func readTsconfig(path string) (*tsconfigLayer, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	layer := &tsconfigLayer{path: path, dir: filepath.Dir(path)}
	if err := json.Unmarshal(jsonc.ToJSON(content), layer); err != nil {
		return nil, err
	}
	return layer, nil
}

// collectLayers returns the extends chain of path, root ancestor first.
func collectLayers(path, startDir string, visiting map[string]bool) ([]*tsconfigLayer, error) {
	if visiting[path] {
		return nil, &ConfigError{Path: path, Err: errors.New("extends cycle")}
	}
	visiting[path] = true
	defer delete(visiting, path)

	layer, err := readTsconfig(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var layers []*tsconfigLayer
	for _, ref := range layer.Extends {
		parent, err := resolveExtends(ref, layer.dir, startDir)
		if err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
		parentLayers, err := collectLayers(parent, startDir, visiting)
		if err != nil {
			return nil, err
		}
		layers = append(layers, parentLayers...)
	}
	return append(layers, layer), nil
}

// resolveExtends locates a parent configuration. References starting with
// "." are relative to the referencing file, anything else is a package
// reference under startDir/node_modules.
func resolveExtends(ref, dir, startDir string) (string, error) {
	if ref == "" {
		return "", errors.New("empty extends reference")
	}
	var candidate string
	switch {
	case strings.HasPrefix(ref, "."):
		candidate = filepath.Join(dir, ref)
	case filepath.IsAbs(ref):
		candidate = ref
	default:
		candidate = filepath.Join(startDir, "node_modules", filepath.FromSlash(ref))
	}

	if info, err := os.Stat(candidate); err == nil {
		if info.IsDir() {
			candidate = filepath.Join(candidate, DefaultConfigFile)
		}
		return candidate, nil
	}
	if !strings.HasSuffix(candidate, ".json") {
		if _, err := os.Stat(candidate + ".json"); err == nil {
			return candidate + ".json", nil
		}
	}
	return "", fmt.Errorf("cannot resolve extends %q", ref)
}

// LoadAliases extracts the alias table from startDir/configFile, following
// extends chains. Empty arguments select the working directory and tsconfig.json.
func LoadAliases(startDir, configFile string) ([]AliasRule, error) {
	return loadAliases(startDir, configFile, slog.Default())
}

func loadAliases(startDir, configFile string, logger *slog.Logger) ([]AliasRule, error) {
	if startDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, &ConfigError{Path: configFile, Err: err}
		}
		startDir = cwd
	}
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	startDir, _ = filepath.Abs(startDir)
	path := configFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(startDir, configFile)
	}

	rules, err := buildAliasRules(path, startDir)
	if err != nil {
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			err = &ConfigError{Path: path, Err: err}
		}
		logger.Error("Failed to load path aliases", "error", err, "file", path)
		return nil, err
	}
	return rules, nil
}

func buildAliasRules(path, startDir string) ([]AliasRule, error) {
	layers, err := collectLayers(path, startDir, map[string]bool{})
	if err != nil {
		return nil, err
	}

	// Fold root-first so that files closer to the leaf override their ancestors.
	baseDir := startDir
	var keys []string
	merged := make(map[string][]string)
	owner := make(map[string]string)
	for _, layer := range layers {
		if layer.CompilerOptions.BaseURL != nil {
			baseDir = filepath.Join(layer.dir, filepath.FromSlash(*layer.CompilerOptions.BaseURL))
		}
		for _, key := range layer.CompilerOptions.Paths.keys {
			if _, seen := merged[key]; !seen {
				keys = append(keys, key)
			}
			merged[key] = layer.CompilerOptions.Paths.values[key]
			owner[key] = layer.path
		}
	}

	baseURL := PathToFileURL(baseDir, true)
	rules := make([]AliasRule, 0, len(keys))
	for _, key := range keys {
		candidates := merged[key]
		if len(candidates) == 0 {
			continue
		}
		filter, wildcard, err := parseAliasPattern(key)
		if err != nil {
			return nil, &ConfigError{Path: owner[key], Err: err}
		}
		if _, _, err := parseAliasPattern(candidates[0]); err != nil {
			return nil, &ConfigError{Path: owner[key], Err: err}
		}
		rules = append(rules, AliasRule{
			FilterSegments:   filter,
			IsWildcard:       wildcard,
			SubstitutionPath: candidates[0],
			BaseURL:          baseURL,
		})
	}
	return rules, nil
}

// parseAliasPattern splits a paths key or value into segments and strips a
// trailing "*" segment. A wildcard anywhere else is rejected.
func parseAliasPattern(pattern string) ([]string, bool, error) {
	segs := splitSegments(pattern)
	for i, seg := range segs {
		if !strings.Contains(seg, "*") {
			continue
		}
		if seg != "*" || i != len(segs)-1 {
			return nil, false, fmt.Errorf("wildcard only allowed as the last segment in %q", pattern)
		}
		return segs[:i], true, nil
	}
	return segs, false, nil
}

var defaultAliases = sync.OnceValues(func() ([]AliasRule, error) {
	return LoadAliases("", "")
})

// DefaultAliases returns the alias table of the working directory's
// tsconfig.json. It is computed on first use and never recomputed.
func DefaultAliases() ([]AliasRule, error) {
	return defaultAliases()
}
