// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"strings"

	tsloader "github.com/buke/esbuild-plugin-tsloader-go"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/cobra"
)

func newBundleCmd(flags *globalFlags) *cobra.Command {
	var (
		outfile  string
		platform string
		minify   bool
	)

	cmd := &cobra.Command{
		Use:   "bundle <entry>",
		Short: "Bundle an entry point with esbuild using the same resolution rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plugin, err := tsloader.NewPlugin(flags.options(tsloader.WithCache(tsloader.CacheFromEnv()))...)
			if err != nil {
				return err
			}

			buildPlatform := api.PlatformNode
			switch platform {
			case "node":
			case "browser":
				buildPlatform = api.PlatformBrowser
			case "neutral":
				buildPlatform = api.PlatformNeutral
			default:
				return fmt.Errorf("unknown platform %q", platform)
			}

			result := api.Build(api.BuildOptions{
				EntryPoints:       args,
				AbsWorkingDir:     flags.cwd,
				Bundle:            true,
				Outfile:           outfile,
				Write:             outfile != "",
				Format:            api.FormatESModule,
				Platform:          buildPlatform,
				Target:            api.ES2022,
				Sourcemap:         api.SourceMapInline,
				MinifyWhitespace:  minify,
				MinifyIdentifiers: minify,
				MinifySyntax:      minify,
				LogLevel:          api.LogLevelSilent,
				Plugins:           []api.Plugin{plugin},
			})

			if len(result.Errors) > 0 {
				formatted := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
				return errors.New(strings.Join(formatted, ""))
			}
			if outfile == "" {
				for _, file := range result.OutputFiles {
					if _, err := cmd.OutOrStdout().Write(file.Contents); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outfile, "outfile", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&platform, "platform", "node", "Target platform: node, browser or neutral")
	cmd.Flags().BoolVar(&minify, "minify", false, "Minify the output")
	return cmd
}
