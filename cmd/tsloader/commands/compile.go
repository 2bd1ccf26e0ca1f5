// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"path/filepath"

	tsloader "github.com/buke/esbuild-plugin-tsloader-go"
	"github.com/spf13/cobra"
)

func newCompileCmd(flags *globalFlags) *cobra.Command {
	var cache bool

	cmd := &cobra.Command{
		Use:   "compile <file...>",
		Short: "Compile source files and print the resulting modules",
		Long: `compile runs files through the loader. With --cache (or TSLOADER_CACHE=true)
files under a src directory are written to the compiled output directory,
which warms the cache for later runs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("cache") {
				cache = tsloader.CacheFromEnv()
			}
			loader, err := tsloader.NewLoader(flags.options(tsloader.WithCache(cache))...)
			if err != nil {
				return err
			}

			for _, file := range args {
				if !filepath.IsAbs(file) {
					file = filepath.Join(flags.cwd, file)
				}
				res, err := loader.Load(cmd.Context(), tsloader.PathToFileURL(file, false), tsloader.LoadContext{}, tsloader.DefaultLoad)
				if err != nil {
					return err
				}
				if _, err := cmd.OutOrStdout().Write(res.Source); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cache, "cache", false, "Persist compiled output")
	return cmd
}
