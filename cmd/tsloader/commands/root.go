// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	tsloader "github.com/buke/esbuild-plugin-tsloader-go"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// ConfigEnv overrides the default configuration file name.
const ConfigEnv = "TSLOADER_CONFIG"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	cwd        string
	configFile string
	cacheDir   string
	verbose    bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "tsloader",
		Short: "Resolve and compile TypeScript modules without a build step",
		Long: `tsloader applies tsconfig path aliases, extension inference and
on-the-fly TypeScript compilation, with an optional content-addressed
cache of compiled output.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return flags.prepare(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.cwd, "cwd", "", "Project directory (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Configuration file (default: TSLOADER_CONFIG env var or tsconfig.json)")
	rootCmd.PersistentFlags().StringVar(&flags.cacheDir, "cache-dir", tsloader.DefaultCacheDir, "Name of the compiled output directory")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newResolveCmd(flags),
		newCompileCmd(flags),
		newBundleCmd(flags),
		newCleanCmd(flags),
	)
	return rootCmd
}

// Execute runs the command tree and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError reports configuration errors with the offending file first.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	var cfgErr *tsloader.ConfigError
	if errors.As(err, &cfgErr) {
		red.Fprintf(w, "configuration error in %s\n", cfgErr.Path)
		fmt.Fprintln(w, cfgErr.Err)
		return
	}
	red.Fprintln(w, err)
}

// prepare loads .env from the project directory and fills defaults.
func (f *globalFlags) prepare(stderr io.Writer) error {
	if f.cwd == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		f.cwd = cwd
	}
	abs, err := filepath.Abs(f.cwd)
	if err != nil {
		return err
	}
	f.cwd = abs

	if err := godotenv.Load(filepath.Join(f.cwd, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	if f.configFile == "" {
		f.configFile = os.Getenv(ConfigEnv)
	}
	if f.configFile == "" {
		f.configFile = tsloader.DefaultConfigFile
	}

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// options translates the global flags into library options.
func (f *globalFlags) options(extra ...tsloader.OptionFunc) []tsloader.OptionFunc {
	opts := []tsloader.OptionFunc{
		tsloader.WithCwd(f.cwd),
		tsloader.WithConfigFile(f.configFile),
		tsloader.WithCacheDir(f.cacheDir),
		tsloader.WithLogger(slog.Default()),
	}
	return append(opts, extra...)
}
