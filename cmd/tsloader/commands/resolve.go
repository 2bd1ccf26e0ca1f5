// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	tsloader "github.com/buke/esbuild-plugin-tsloader-go"
	"github.com/spf13/cobra"
)

func newResolveCmd(flags *globalFlags) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "resolve <specifier...>",
		Short: "Print the URL and format each specifier resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := tsloader.NewResolver(flags.options()...)
			if err != nil {
				return err
			}
			if parent == "" {
				parent = tsloader.PathToFileURL(flags.cwd, true)
			}

			for _, specifier := range args {
				res, err := resolver.Resolve(cmd.Context(), specifier, tsloader.ResolveContext{ParentURL: parent}, tsloader.DefaultResolve)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", res.URL, res.Format)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&parent, "parent", "p", "", "URL of the importing module (default: the project directory)")
	return cmd
}
