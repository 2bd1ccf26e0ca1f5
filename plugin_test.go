// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package tsloader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
)

// createTestProject writes a small project using aliases and .js imports of .ts files.
func createTestProject(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "tsconfig.json", `{
		// aliases used by the bundle test
		"compilerOptions": {"baseUrl": ".", "paths": {"@lib/*": ["packages/lib/src/*"]}}
	}`)
	writeFile(t, tmpDir, "packages/lib/src/math/add.ts", "export const add = (a: number, b: number): number => a + b;\n")
	writeFile(t, tmpDir, "packages/app/src/helper.ts", "export const label: string = 'sum';\n")
	writeFile(t, tmpDir, "packages/app/src/views/index.ts", "export const view = 'index-view';\n")
	writeFile(t, tmpDir, "packages/app/src/main.ts", `import { add } from '@lib/math/add';
import { label } from './helper.js';
import { view } from './views';
console.log(label, add(40, 2), view);
`)
	return tmpDir
}

func buildWithTestPlugin(t *testing.T, tmpDir string, options ...OptionFunc) api.BuildResult {
	t.Helper()

	plugin, err := NewPlugin(append([]OptionFunc{WithCwd(tmpDir)}, options...)...)
	if err != nil {
		t.Fatalf("Failed to create plugin: %v", err)
	}

	return api.Build(api.BuildOptions{
		EntryPoints:   []string{filepath.Join(tmpDir, "packages/app/src/main.ts")},
		Bundle:        true,
		Write:         false,
		Format:        api.FormatESModule,
		LogLevel:      api.LogLevelSilent,
		Plugins:       []api.Plugin{plugin},
		Outdir:        filepath.Join(tmpDir, "dist"),
		AbsWorkingDir: tmpDir,
	})
}

// TestNewPlugin tests plugin construction.
func TestNewPlugin(t *testing.T) {
	t.Run("default_name", func(t *testing.T) {
		plugin, err := NewPlugin(WithAliases(nil))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if plugin.Name != "tsloader" {
			t.Errorf("Expected plugin name to be 'tsloader', got '%s'", plugin.Name)
		}
		if plugin.Setup == nil {
			t.Error("Expected plugin.Setup to be non-nil")
		}
	})

	t.Run("custom_name", func(t *testing.T) {
		plugin, err := NewPlugin(WithAliases(nil), WithName("custom-ts-plugin"))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if plugin.Name != "custom-ts-plugin" {
			t.Errorf("Expected plugin name to be 'custom-ts-plugin', got '%s'", plugin.Name)
		}
	})

	t.Run("config_error", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFile(t, tmpDir, "tsconfig.json", `{"compilerOptions":{"paths":{"*/x":["y"]}}}`)
		_, err := NewPlugin(WithCwd(tmpDir))
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("Expected ConfigError, got %v", err)
		}
	})
}

// TestPluginBundle tests that a bundle resolves aliases, remapped extensions and directory indexes.
func TestPluginBundle(t *testing.T) {
	tmpDir := createTestProject(t)

	result := buildWithTestPlugin(t, tmpDir)
	if len(result.Errors) > 0 {
		t.Fatalf("Expected no build errors, got: %v", result.Errors)
	}
	if len(result.OutputFiles) != 1 {
		t.Fatalf("Expected one output file, got %d", len(result.OutputFiles))
	}

	out := string(result.OutputFiles[0].Contents)
	for _, want := range []string{"a + b", `"sum"`, `"index-view"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected bundle to contain %s, got:\n%s", want, out)
		}
	}
}

// TestPluginBundleWithCache tests that bundling warms the compiled output cache.
func TestPluginBundleWithCache(t *testing.T) {
	tmpDir := createTestProject(t)

	result := buildWithTestPlugin(t, tmpDir, WithCache(true))
	if len(result.Errors) > 0 {
		t.Fatalf("Expected no build errors, got: %v", result.Errors)
	}
	for _, cached := range []string{
		"packages/app/" + DefaultCacheDir + "/main.js",
		"packages/app/" + DefaultCacheDir + "/helper.js",
		"packages/app/" + DefaultCacheDir + "/views/index.js",
		"packages/lib/" + DefaultCacheDir + "/math/add.js",
	} {
		if _, err := os.Stat(filepath.Join(tmpDir, filepath.FromSlash(cached))); err != nil {
			t.Errorf("Expected cache file %s: %v", cached, err)
		}
	}
}

// TestPluginCompileError tests that compile errors fail the build.
func TestPluginCompileError(t *testing.T) {
	tmpDir := createTestProject(t)
	writeFile(t, tmpDir, "packages/app/src/helper.ts", "export const label: string = ;\n")

	result := buildWithTestPlugin(t, tmpDir)
	if len(result.Errors) == 0 {
		t.Fatal("Expected build errors")
	}
}

// TestPluginProcessors tests the start and end processor chains.
func TestPluginProcessors(t *testing.T) {
	tmpDir := createTestProject(t)

	t.Run("called", func(t *testing.T) {
		started, ended := false, false
		result := buildWithTestPlugin(t, tmpDir,
			WithOnStartProcessor(func(*api.BuildOptions) error {
				started = true
				return nil
			}),
			WithOnEndProcessor(func(result *api.BuildResult, _ *api.BuildOptions) error {
				ended = len(result.Errors) == 0
				return nil
			}),
		)
		if len(result.Errors) > 0 {
			t.Fatalf("Expected no build errors, got: %v", result.Errors)
		}
		if !started || !ended {
			t.Errorf("Expected both processors to run, started=%v ended=%v", started, ended)
		}
	})

	t.Run("start_error", func(t *testing.T) {
		result := buildWithTestPlugin(t, tmpDir, WithOnStartProcessor(func(*api.BuildOptions) error {
			return errors.New("start failed")
		}))
		if len(result.Errors) == 0 {
			t.Error("Expected build errors from start processor")
		}
	})

	t.Run("end_error", func(t *testing.T) {
		result := buildWithTestPlugin(t, tmpDir, WithOnEndProcessor(func(*api.BuildResult, *api.BuildOptions) error {
			return errors.New("end failed")
		}))
		if len(result.Errors) == 0 {
			t.Error("Expected build errors from end processor")
		}
	})
}

// TestExtensionFilter tests the generated esbuild filter.
func TestExtensionFilter(t *testing.T) {
	if got := extensionFilter([]string{".ts", ".tsx"}); got != `(\.ts|\.tsx)$` {
		t.Errorf("Unexpected filter %s", got)
	}
}
